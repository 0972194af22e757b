// Package resultstore persists completed artifact references against users,
// implementing the domain.ResultStore contract.
package resultstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// Postgres writes artifact records into a results table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a result store backed by PostgreSQL.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) Save(ctx context.Context, userID, artifactRef string, metadata map[string]any) (string, error) {
	raw, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("resultstore: encode metadata: %w", err)
	}
	id := uuid.NewString()
	if _, err := s.pool.Exec(ctx, `
INSERT INTO generation_results (id, user_id, artifact_ref, metadata)
VALUES ($1, $2, $3, $4);
`, id, userID, artifactRef, raw); err != nil {
		return "", fmt.Errorf("resultstore: insert result: %w", err)
	}
	return id, nil
}

var _ domain.ResultStore = (*Postgres)(nil)
