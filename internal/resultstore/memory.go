package resultstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"server/internal/domain"
)

// Record is one saved artifact reference.
type Record struct {
	ID          string
	UserID      string
	ArtifactRef string
	Metadata    map[string]any
	SavedAt     time.Time
}

// Memory keeps saved results in process memory. Tests can inject a Save
// failure through FailWith to exercise the persistence-warning path.
type Memory struct {
	mu       sync.Mutex
	records  map[string]Record
	failWith error
}

// NewMemory returns an empty in-memory result store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

// FailWith makes every subsequent Save return err. Pass nil to heal.
func (s *Memory) FailWith(err error) {
	s.mu.Lock()
	s.failWith = err
	s.mu.Unlock()
}

func (s *Memory) Save(ctx context.Context, userID, artifactRef string, metadata map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return "", s.failWith
	}
	id := uuid.NewString()
	s.records[id] = Record{
		ID:          id,
		UserID:      userID,
		ArtifactRef: artifactRef,
		Metadata:    metadata,
		SavedAt:     time.Now(),
	}
	return id, nil
}

// Len reports how many records were saved.
func (s *Memory) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Get returns a saved record by id.
func (s *Memory) Get(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	return r, ok
}

var _ domain.ResultStore = (*Memory)(nil)
