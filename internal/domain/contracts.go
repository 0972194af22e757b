package domain

import (
	"context"
	"encoding/json"
)

// Ledger manages prepaid credit balances. Reserve must be linearizable per
// user: concurrent reservations against the same balance never double-spend.
// A reservation is settled exactly once, by Commit or by Refund; the second
// settlement attempt fails with ErrAlreadySettled.
type Ledger interface {
	// Reserve atomically checks balance >= amount, deducts it, and returns a
	// reservation id. Fails with ErrInsufficientCredits when the balance is
	// too low.
	Reserve(ctx context.Context, userID string, amount int64) (string, error)
	// Commit finalizes a held reservation. The deduction already happened at
	// Reserve time, so the balance does not change.
	Commit(ctx context.Context, reservationID string) error
	// Refund returns the reserved amount to the user's balance.
	Refund(ctx context.Context, reservationID string) error
	// Balance reports the user's current credit balance.
	Balance(ctx context.Context, userID string) (int64, error)
}

// ProviderState classifies a provider-reported job status.
type ProviderState string

const (
	ProviderStateProcessing ProviderState = "processing"
	ProviderStateCompleted  ProviderState = "completed"
	ProviderStateFailed     ProviderState = "failed"
)

// ProviderStatus is one FetchStatus observation. ArtifactRef is set only for
// completed jobs, Reason only for failed ones.
type ProviderStatus struct {
	State       ProviderState
	ArtifactRef string
	Reason      string
}

// ProviderClient adapts one external generation provider. Both calls are
// single best-effort attempts; retry policy belongs to the poll scheduler, not
// the client. Transport errors (timeouts, 5xx) are returned as errors so the
// poller can tell "try again" apart from a business-level failed status.
type ProviderClient interface {
	Submit(ctx context.Context, payload json.RawMessage) (string, error)
	FetchStatus(ctx context.Context, providerJobID string) (ProviderStatus, error)
}

// ResultStore persists a completed artifact reference for a user. A Save
// failure after a successful generation is a secondary concern and must not
// trigger a credit refund.
type ResultStore interface {
	Save(ctx context.Context, userID, artifactRef string, metadata map[string]any) (string, error)
}
