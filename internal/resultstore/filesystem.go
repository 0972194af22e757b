package resultstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"server/internal/domain"
)

// Filesystem persists artifact records as JSON files on local disk. It is
// intended for development and test environments where PostgreSQL is not
// available.
type Filesystem struct {
	basePath string
}

type fileRecord struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	ArtifactRef string         `json:"artifact_ref"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	SavedAt     time.Time      `json:"saved_at"`
}

// NewFilesystem initializes a filesystem result store rooted at basePath.
func NewFilesystem(basePath string) (*Filesystem, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("resultstore: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("resultstore: ensure base path: %w", err)
	}
	return &Filesystem{basePath: basePath}, nil
}

// BasePath returns the configured root directory.
func (s *Filesystem) BasePath() string {
	return s.basePath
}

func (s *Filesystem) Save(ctx context.Context, userID, artifactRef string, metadata map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if artifactRef == "" {
		return "", errors.New("resultstore: artifact ref is required")
	}
	id := uuid.NewString()
	key, err := sanitizeKey(filepath.Join("results", userID, id+".json"))
	if err != nil {
		return "", err
	}
	record := fileRecord{
		ID:          id,
		UserID:      userID,
		ArtifactRef: artifactRef,
		Metadata:    metadata,
		SavedAt:     time.Now().UTC(),
	}
	raw, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("resultstore: encode record: %w", err)
	}
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("resultstore: ensure directory: %w", err)
	}
	if err := os.WriteFile(fullPath, raw, 0o644); err != nil {
		return "", fmt.Errorf("resultstore: write record: %w", err)
	}
	return id, nil
}

// sanitizeKey normalizes a relative key and prevents escaping the store root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("resultstore: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("resultstore: invalid key")
	}
	return cleaned, nil
}

var _ domain.ResultStore = (*Filesystem)(nil)
