// Package postgres implements the catalog store on PostgreSQL with the
// pgvector extension, keeping embeddings queryable in one pass.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/vitkovar/media-atlas/internal/config"
)

// Store implements catalog.Store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
	dim  int
}

// NewStore connects to PostgreSQL, verifies the connection, and applies
// the schema. The embedding dimension is fixed per database.
func NewStore(ctx context.Context, cfg *config.DatabaseConfig, dim int) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &Store{pool: pool, dim: dim}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// migrate applies the schema. Safe to run on every startup.
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("creating vector extension: %w", err)
	}

	createAssets := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS assets (
			path            TEXT PRIMARY KEY,
			kind            TEXT NOT NULL,
			embedding       vector(%d),
			ts_real         BIGINT,
			ts_inferred     BIGINT NOT NULL,
			time_confidence DOUBLE PRECISION NOT NULL DEFAULT 0.1,
			time_source     TEXT NOT NULL DEFAULT 'os',
			metadata        JSONB NOT NULL DEFAULT '{}',
			thumb_ref       TEXT NOT NULL DEFAULT '',
			x               DOUBLE PRECISION,
			y               DOUBLE PRECISION,
			z               DOUBLE PRECISION,
			cluster_id      INTEGER,
			cluster_label   TEXT NOT NULL DEFAULT '',
			captured        BOOLEAN NOT NULL DEFAULT FALSE,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`, s.dim)
	if _, err := s.pool.Exec(ctx, createAssets); err != nil {
		return fmt.Errorf("creating assets table: %w", err)
	}

	createIdentities := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS identities (
			name           TEXT PRIMARY KEY,
			prototype      vector(%d),
			face_prototype vector(%d),
			count          INTEGER NOT NULL DEFAULT 0,
			cover_path     TEXT NOT NULL DEFAULT ''
		)
	`, s.dim, s.dim)
	if _, err := s.pool.Exec(ctx, createIdentities); err != nil {
		return fmt.Errorf("creating identities table: %w", err)
	}

	createLinks := `
		CREATE TABLE IF NOT EXISTS identity_links (
			identity_name TEXT NOT NULL REFERENCES identities(name) ON DELETE CASCADE,
			asset_path    TEXT NOT NULL REFERENCES assets(path) ON DELETE CASCADE,
			PRIMARY KEY (identity_name, asset_path)
		)
	`
	if _, err := s.pool.Exec(ctx, createLinks); err != nil {
		return fmt.Errorf("creating identity_links table: %w", err)
	}

	if _, err := s.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS identity_links_asset_idx ON identity_links(asset_path)
	`); err != nil {
		return fmt.Errorf("creating link index: %w", err)
	}

	return nil
}
