package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"server/internal/domain"
)

// Synthetic is an in-process provider that completes jobs deterministically
// after a fixed number of status checks. It keeps the whole pipeline
// (reservation, polling, settlement, persistence) exercised in local and CI
// environments where no real provider credentials exist.
type Synthetic struct {
	name          string
	pollsToFinish int

	mu   sync.Mutex
	jobs map[string]*syntheticJob
}

type syntheticJob struct {
	polls       int
	artifactRef string
}

// NewSynthetic creates a synthetic provider that reports processing for
// pollsToFinish status checks before completing.
func NewSynthetic(name string, pollsToFinish int) *Synthetic {
	if pollsToFinish < 0 {
		pollsToFinish = 0
	}
	return &Synthetic{
		name:          name,
		pollsToFinish: pollsToFinish,
		jobs:          make(map[string]*syntheticJob),
	}
}

func (s *Synthetic) Submit(ctx context.Context, payload json.RawMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	seed := sha256.Sum256(append([]byte(s.name), payload...))
	id := hex.EncodeToString(seed[:8]) + "-" + fmt.Sprint(time.Now().UnixNano())
	s.mu.Lock()
	s.jobs[id] = &syntheticJob{
		artifactRef: fmt.Sprintf("https://cdn.example.com/%s/%s.png", s.name, hex.EncodeToString(seed[:12])),
	}
	s.mu.Unlock()
	return id, nil
}

func (s *Synthetic) FetchStatus(ctx context.Context, providerJobID string) (domain.ProviderStatus, error) {
	if err := ctx.Err(); err != nil {
		return domain.ProviderStatus{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[providerJobID]
	if !ok {
		return domain.ProviderStatus{State: domain.ProviderStateFailed, Reason: "unknown job"}, nil
	}
	job.polls++
	if job.polls <= s.pollsToFinish {
		return domain.ProviderStatus{State: domain.ProviderStateProcessing}, nil
	}
	return domain.ProviderStatus{State: domain.ProviderStateCompleted, ArtifactRef: job.artifactRef}, nil
}

var _ domain.ProviderClient = (*Synthetic)(nil)
