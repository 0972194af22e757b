package orchestrator

import (
	"context"
	"sync"
	"time"

	"server/internal/domain"
)

// Handle is the caller-facing view of an asynchronous generation job. It is
// safe for concurrent use; the orchestrator goroutine writes through it and
// HTTP handlers read snapshots from it.
type Handle struct {
	JobID     string
	CreatedAt time.Time

	mu            sync.Mutex
	state         domain.JobState
	providerJobID string
	attemptCount  int
	lastPolledAt  time.Time
	outcome       *domain.Outcome
	resolvedAt    time.Time
	done          chan struct{}
}

// Snapshot is a point-in-time copy of a job handle.
type Snapshot struct {
	JobID         string
	State         domain.JobState
	ProviderJobID string
	AttemptCount  int
	LastPolledAt  time.Time
	CreatedAt     time.Time
	Outcome       *domain.Outcome
}

func newHandle(jobID string) *Handle {
	return &Handle{
		JobID:     jobID,
		CreatedAt: time.Now(),
		done:      make(chan struct{}),
	}
}

func (h *Handle) setState(s domain.JobState) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

func (h *Handle) setProviderJobID(id string) {
	h.mu.Lock()
	h.providerJobID = id
	h.mu.Unlock()
}

func (h *Handle) notePoll(attempt int, at time.Time) {
	h.mu.Lock()
	h.attemptCount = attempt
	h.lastPolledAt = at
	h.mu.Unlock()
}

func (h *Handle) resolve(out domain.Outcome) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.outcome != nil {
		return
	}
	h.outcome = &out
	h.resolvedAt = time.Now()
	close(h.done)
}

func (h *Handle) resolvedSince() (time.Time, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.outcome == nil {
		return time.Time{}, false
	}
	return h.resolvedAt, true
}

// Done is closed once the job reaches a terminal outcome.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Outcome returns the terminal outcome, if the job has resolved.
func (h *Handle) Outcome() (domain.Outcome, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.outcome == nil {
		return domain.Outcome{}, false
	}
	return *h.outcome, true
}

// Wait blocks until the job resolves or ctx is done.
func (h *Handle) Wait(ctx context.Context) (domain.Outcome, error) {
	select {
	case <-h.done:
		out, _ := h.Outcome()
		return out, nil
	case <-ctx.Done():
		return domain.Outcome{}, ctx.Err()
	}
}

// View returns a consistent snapshot of the handle.
func (h *Handle) View() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	snap := Snapshot{
		JobID:         h.JobID,
		State:         h.state,
		ProviderJobID: h.providerJobID,
		AttemptCount:  h.attemptCount,
		LastPolledAt:  h.lastPolledAt,
		CreatedAt:     h.CreatedAt,
	}
	if h.outcome != nil {
		out := *h.outcome
		snap.Outcome = &out
	}
	return snap
}
