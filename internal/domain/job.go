package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobState enumerates the lifecycle states of a generation job.
type JobState string

const (
	JobStateReserved  JobState = "reserved"
	JobStateSubmitted JobState = "submitted"
	JobStatePolling   JobState = "polling"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
	JobStateTimedOut  JobState = "timed_out"
)

// Terminal reports whether the state admits no further transitions.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateCompleted, JobStateFailed, JobStateTimedOut:
		return true
	default:
		return false
	}
}

// GenerationRequest describes one generation to run against a provider. It is
// treated as immutable once handed to the orchestrator. CreditCost is computed
// by the caller and taken as authoritative.
type GenerationRequest struct {
	RequestorID  string
	Provider     string
	Payload      json.RawMessage
	CreditCost   int64
	MaxWait      time.Duration
	PollInterval time.Duration
}

// Job tracks a single in-flight generation from credit reservation through a
// terminal state. It is owned by the orchestrator and lives only for the
// duration of one request; durable outcome lives in the Ledger and ResultStore.
type Job struct {
	ID              string
	RequestorID     string
	Provider        string
	ProviderJobID   string
	State           JobState
	ReservationID   string
	ReservedCredits int64
	ArtifactRef     string
	ErrorDetail     string
	StartedAt       time.Time
	LastPolledAt    time.Time
	AttemptCount    int
}

// Advance moves the job to next, enforcing that transitions are monotonic and
// never leave a terminal state.
func (j *Job) Advance(next JobState) error {
	if j.State.Terminal() {
		return fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, j.State)
	}
	allowed := false
	switch j.State {
	case JobStateReserved:
		allowed = next == JobStateSubmitted || next == JobStateFailed || next == JobStateTimedOut
	case JobStateSubmitted:
		allowed = next == JobStatePolling || next == JobStateFailed || next == JobStateTimedOut
	case JobStatePolling:
		allowed = next.Terminal()
	}
	if !allowed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.State, next)
	}
	j.State = next
	return nil
}
