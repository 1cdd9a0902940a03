package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/oseg/krawler/internal/hosting"
)

// pgPool is the slice of pgxpool.Pool the store needs. Tests substitute a
// pgxmock pool.
type pgPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore persists checkpoints as one jsonb row per platform. It lets
// several crawler instances share resumable state.
type PostgresStore struct {
	pool   pgPool
	logger *zap.Logger
}

const createStateTable = `
CREATE TABLE IF NOT EXISTS fetcher_state (
	platform   TEXT PRIMARY KEY,
	state      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// NewPostgresStore connects to the database and ensures the state table
// exists.
func NewPostgresStore(ctx context.Context, connString string, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	store := &PostgresStore{pool: pool, logger: logger}
	if _, err := store.pool.Exec(ctx, createStateTable); err != nil {
		store.pool.Close()
		return nil, fmt.Errorf("create fetcher_state table: %w", err)
	}
	return store, nil
}

// newPostgresStoreWithPool wires an existing pool, for tests.
func newPostgresStoreWithPool(pool pgPool, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{pool: pool, logger: logger}
}

// Load implements Store.
func (s *PostgresStore) Load(ctx context.Context, platform hosting.Platform) (*State, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT state FROM fetcher_state WHERE platform = $1`,
		platform.String(),
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint for %s: %w", platform, err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode checkpoint for %s: %w", platform, err)
	}
	return &state, nil
}

// Save implements Store via an upsert, so the write is atomic on the
// database side.
func (s *PostgresStore) Save(ctx context.Context, platform hosting.Platform, state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode checkpoint for %s: %w", platform, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO fetcher_state (platform, state, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (platform)
		 DO UPDATE SET state = EXCLUDED.state, updated_at = now()`,
		platform.String(), data,
	)
	if err != nil {
		return fmt.Errorf("save checkpoint for %s: %w", platform, err)
	}
	s.logger.Debug("saved checkpoint", zap.String("platform", platform.String()))
	return nil
}

// Delete implements Store.
func (s *PostgresStore) Delete(ctx context.Context, platform hosting.Platform) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM fetcher_state WHERE platform = $1`, platform.String())
	if err != nil {
		return false, fmt.Errorf("delete checkpoint for %s: %w", platform, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
