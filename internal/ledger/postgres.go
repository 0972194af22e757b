package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// Postgres implements domain.Ledger on top of a credit_accounts /
// credit_reservations pair of tables. The conditional decrement in Reserve
// makes the check-then-deduct atomic at the storage layer, so concurrent
// reservations for one user serialize on the account row.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a ledger backed by PostgreSQL.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (l *Postgres) Reserve(ctx context.Context, userID string, amount int64) (string, error) {
	if amount < 0 {
		return "", fmt.Errorf("ledger: negative reservation amount %d", amount)
	}
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("ledger: begin reserve: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
UPDATE credit_accounts
SET balance = balance - $2,
    updated_at = NOW()
WHERE user_id = $1 AND balance >= $2;
`, userID, amount)
	if err != nil {
		return "", fmt.Errorf("ledger: deduct balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return "", fmt.Errorf("ledger: user %s: %w", userID, domain.ErrInsufficientCredits)
	}

	id := uuid.NewString()
	if _, err := tx.Exec(ctx, `
INSERT INTO credit_reservations (id, user_id, amount, state)
VALUES ($1, $2, $3, 'held');
`, id, userID, amount); err != nil {
		return "", fmt.Errorf("ledger: insert reservation: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("ledger: commit reserve: %w", err)
	}
	return id, nil
}

func (l *Postgres) Commit(ctx context.Context, reservationID string) error {
	tag, err := l.pool.Exec(ctx, `
UPDATE credit_reservations
SET state = 'committed',
    settled_at = NOW()
WHERE id = $1 AND state = 'held';
`, reservationID)
	if err != nil {
		return fmt.Errorf("ledger: commit reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return l.settledOrMissing(ctx, reservationID)
	}
	return nil
}

func (l *Postgres) Refund(ctx context.Context, reservationID string) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ledger: begin refund: %w", err)
	}
	defer tx.Rollback(ctx)

	var userID string
	var amount int64
	err = tx.QueryRow(ctx, `
UPDATE credit_reservations
SET state = 'refunded',
    settled_at = NOW()
WHERE id = $1 AND state = 'held'
RETURNING user_id, amount;
`, reservationID).Scan(&userID, &amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return l.settledOrMissing(ctx, reservationID)
		}
		return fmt.Errorf("ledger: refund reservation: %w", err)
	}

	if _, err := tx.Exec(ctx, `
UPDATE credit_accounts
SET balance = balance + $2,
    updated_at = NOW()
WHERE user_id = $1;
`, userID, amount); err != nil {
		return fmt.Errorf("ledger: restore balance: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ledger: commit refund: %w", err)
	}
	return nil
}

func (l *Postgres) Balance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := l.pool.QueryRow(ctx, `
SELECT balance FROM credit_accounts WHERE user_id = $1;
`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("ledger: account %s: %w", userID, domain.ErrNotFound)
		}
		return 0, fmt.Errorf("ledger: read balance: %w", err)
	}
	return balance, nil
}

// settledOrMissing distinguishes a double settlement from an unknown
// reservation id after a guarded UPDATE matched no rows.
func (l *Postgres) settledOrMissing(ctx context.Context, reservationID string) error {
	var state string
	err := l.pool.QueryRow(ctx, `
SELECT state FROM credit_reservations WHERE id = $1;
`, reservationID).Scan(&state)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("ledger: reservation %s: %w", reservationID, domain.ErrNotFound)
		}
		return fmt.Errorf("ledger: read reservation: %w", err)
	}
	return fmt.Errorf("ledger: reservation %s is %s: %w", reservationID, state, domain.ErrAlreadySettled)
}

var _ domain.Ledger = (*Postgres)(nil)
