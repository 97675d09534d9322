package runstate

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is the optional durable Run State Store backend, for deployments
// that need run status to survive an executor process restart (e.g. so a
// caller's status poll keeps working across a rolling deploy). It mirrors
// MemStore's semantics exactly; callers pick one at wiring time.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore wraps an already-connected pool. The caller owns the pool's
// lifetime (Close it after the store is no longer needed).
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureSchema creates the run_state table if it does not already exist.
func (s *PgStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS run_state (
			run_id TEXT PRIMARY KEY,
			status TEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("ensure run_state schema: %w", err)
	}
	return nil
}

func (s *PgStore) MarkActive(ctx context.Context, runID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO run_state (run_id, status) VALUES ($1, $2)
		ON CONFLICT (run_id) DO UPDATE SET status = EXCLUDED.status`,
		runID, string(StatusActive))
	return err
}

func (s *PgStore) MarkCancelled(ctx context.Context, runID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO run_state (run_id, status) VALUES ($1, $2)
		ON CONFLICT (run_id) DO UPDATE SET status = EXCLUDED.status`,
		runID, string(StatusCancelled))
	return err
}

func (s *PgStore) IsCancelled(ctx context.Context, runID string) (bool, error) {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM run_state WHERE run_id = $1`, runID).Scan(&status)
	if err != nil {
		return false, nil // unregistered or unknown run: not cancelled
	}
	return status == string(StatusCancelled), nil
}

func (s *PgStore) Unregister(ctx context.Context, runID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM run_state WHERE run_id = $1`, runID)
	return err
}
