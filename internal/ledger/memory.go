// Package ledger provides credit balance implementations of the
// domain.Ledger contract: an in-memory ledger for development and tests, and
// a PostgreSQL ledger for production.
package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"server/internal/domain"
)

const (
	reservationHeld      = "held"
	reservationCommitted = "committed"
	reservationRefunded  = "refunded"
)

type memReservation struct {
	userID string
	amount int64
	state  string
}

// Memory is an in-memory ledger. A single mutex serializes all mutations, so
// concurrent reservations against one user can never double-spend.
type Memory struct {
	mu             sync.Mutex
	defaultBalance int64
	balances       map[string]int64
	reservations   map[string]*memReservation
}

// NewMemory returns an empty in-memory ledger. Unknown users have balance 0.
func NewMemory() *Memory {
	return &Memory{
		balances:     make(map[string]int64),
		reservations: make(map[string]*memReservation),
	}
}

// NewMemoryWithDefault returns an in-memory ledger that seeds every user seen
// for the first time with the given starting balance. Used in development mode
// where no account provisioning exists.
func NewMemoryWithDefault(startingBalance int64) *Memory {
	m := NewMemory()
	m.defaultBalance = startingBalance
	return m
}

// Credit adds amount to the user's balance.
func (m *Memory) Credit(userID string, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] = m.balance(userID) + amount
}

// balance must be called with the mutex held.
func (m *Memory) balance(userID string) int64 {
	if b, ok := m.balances[userID]; ok {
		return b
	}
	m.balances[userID] = m.defaultBalance
	return m.defaultBalance
}

func (m *Memory) Reserve(ctx context.Context, userID string, amount int64) (string, error) {
	if amount < 0 {
		return "", fmt.Errorf("ledger: negative reservation amount %d", amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	bal := m.balance(userID)
	if bal < amount {
		return "", fmt.Errorf("ledger: balance %d below cost %d: %w", bal, amount, domain.ErrInsufficientCredits)
	}
	m.balances[userID] = bal - amount
	id := uuid.NewString()
	m.reservations[id] = &memReservation{userID: userID, amount: amount, state: reservationHeld}
	return id, nil
}

func (m *Memory) Commit(ctx context.Context, reservationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[reservationID]
	if !ok {
		return fmt.Errorf("ledger: reservation %s: %w", reservationID, domain.ErrNotFound)
	}
	if r.state != reservationHeld {
		return fmt.Errorf("ledger: reservation %s is %s: %w", reservationID, r.state, domain.ErrAlreadySettled)
	}
	r.state = reservationCommitted
	return nil
}

func (m *Memory) Refund(ctx context.Context, reservationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[reservationID]
	if !ok {
		return fmt.Errorf("ledger: reservation %s: %w", reservationID, domain.ErrNotFound)
	}
	if r.state != reservationHeld {
		return fmt.Errorf("ledger: reservation %s is %s: %w", reservationID, r.state, domain.ErrAlreadySettled)
	}
	r.state = reservationRefunded
	m.balances[r.userID] = m.balance(r.userID) + r.amount
	return nil
}

func (m *Memory) Balance(ctx context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance(userID), nil
}

var _ domain.Ledger = (*Memory)(nil)
