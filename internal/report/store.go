package report

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SeenStore tracks which sessions have already produced a final report.
type SeenStore interface {
	// MarkFinalized records the session and reports whether this call was the
	// first to do so. Check-and-insert is atomic per session ID.
	MarkFinalized(ctx context.Context, sessionID string) (bool, error)
	Close() error
}

// NewSeenStore picks postgres when configured, otherwise in-process memory.
func NewSeenStore(ctx context.Context, databaseURL string) (SeenStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewMemoryStore(), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}

// MemoryStore keeps finalized session IDs for the lifetime of the process.
type MemoryStore struct {
	seen sync.Map
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// MarkFinalized uses LoadOrStore so distinct sessions never contend on a
// shared lock.
func (s *MemoryStore) MarkFinalized(_ context.Context, sessionID string) (bool, error) {
	_, loaded := s.seen.LoadOrStore(sessionID, struct{}{})
	return !loaded, nil
}

func (s *MemoryStore) Close() error { return nil }

// PostgresStore persists finalized session IDs in PostgreSQL, surviving
// process restarts.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS finalized_sessions (
		session_id TEXT PRIMARY KEY,
		finalized_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) MarkFinalized(ctx context.Context, sessionID string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO finalized_sessions (session_id) VALUES ($1)
		 ON CONFLICT (session_id) DO NOTHING`,
		sessionID,
	)
	if err != nil {
		return false, fmt.Errorf("mark finalized: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
