package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/vitkovar/media-atlas/internal/catalog"
)

const assetColumns = `path, kind, embedding, ts_real, ts_inferred, time_confidence,
	time_source, metadata, thumb_ref, x, y, z, cluster_id, cluster_label, captured, created_at`

// vecOrNull converts an embedding slice to a nullable pgvector value.
func vecOrNull(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return pgvector.NewVector(v)
}

// InsertAsset stores a new asset row, mapping unique violations to ErrConflict.
func (s *Store) InsertAsset(ctx context.Context, a *catalog.Asset) error {
	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO assets (path, kind, embedding, ts_real, ts_inferred, time_confidence,
			time_source, metadata, thumb_ref, captured)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, a.Path, string(a.Kind), vecOrNull(a.Embedding), a.TSReal, a.TSInferred,
		a.TimeConfidence, a.TimeSource, meta, a.ThumbRef, a.Captured)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return catalog.ErrConflict
		}
		return fmt.Errorf("inserting asset: %w", err)
	}
	return nil
}

// DeleteAsset removes an asset row; links follow via ON DELETE CASCADE.
func (s *Store) DeleteAsset(ctx context.Context, path string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM assets WHERE path = $1", path)
	if err != nil {
		return fmt.Errorf("deleting asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func scanAsset(row pgx.Row) (*catalog.Asset, error) {
	var a catalog.Asset
	var kind string
	var vec *pgvector.Vector
	var meta []byte

	err := row.Scan(&a.Path, &kind, &vec, &a.TSReal, &a.TSInferred, &a.TimeConfidence,
		&a.TimeSource, &meta, &a.ThumbRef, &a.X, &a.Y, &a.Z, &a.ClusterID,
		&a.ClusterLabel, &a.Captured, &a.CreatedAt)
	if err != nil {
		return nil, err
	}

	a.Kind = catalog.Kind(kind)
	if vec != nil {
		a.Embedding = vec.Slice()
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &a.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata: %w", err)
		}
	}
	return &a, nil
}

// GetAsset returns the asset for a path.
func (s *Store) GetAsset(ctx context.Context, path string) (*catalog.Asset, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+assetColumns+" FROM assets WHERE path = $1", path)
	a, err := scanAsset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying asset: %w", err)
	}
	return a, nil
}

// ListAssetPaths returns every cataloged path.
func (s *Store) ListAssetPaths(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT path FROM assets ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("querying paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// ListAssets returns all assets matching the filter, embeddings included.
func (s *Store) ListAssets(ctx context.Context, f catalog.AssetFilter) ([]catalog.Asset, error) {
	query := "SELECT " + assetColumns + " FROM assets WHERE TRUE"
	var args []any
	if f.Kind != "" {
		args = append(args, string(f.Kind))
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	if f.RequireEmbedding {
		query += " AND embedding IS NOT NULL"
	}
	if f.ExcludeCaptured {
		query += " AND NOT captured"
	}
	query += " ORDER BY path"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying assets: %w", err)
	}
	defer rows.Close()

	var out []catalog.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// SetThumb updates the thumbnail reference for an existing asset.
func (s *Store) SetThumb(ctx context.Context, path, thumbRef string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE assets SET thumb_ref = $2 WHERE path = $1", path, thumbRef)
	if err != nil {
		return fmt.Errorf("updating thumb: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

// SetCoordinates persists projection coordinates in one batch.
func (s *Store) SetCoordinates(ctx context.Context, coords map[string]catalog.Coordinates) error {
	batch := &pgx.Batch{}
	for path, c := range coords {
		batch.Queue("UPDATE assets SET x = $2, y = $3, z = $4 WHERE path = $1",
			path, c.X, c.Y, c.Z)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("updating coordinates: %w", err)
	}
	return nil
}

// SetClusters persists cluster assignments in one batch.
func (s *Store) SetClusters(ctx context.Context, clusters map[string]catalog.ClusterAssignment) error {
	batch := &pgx.Batch{}
	for path, c := range clusters {
		batch.Queue("UPDATE assets SET cluster_id = $2, cluster_label = $3 WHERE path = $1",
			path, c.ID, c.Label)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("updating clusters: %w", err)
	}
	return nil
}

// CountAssets returns the total number of asset rows.
func (s *Store) CountAssets(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM assets").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting assets: %w", err)
	}
	return count, nil
}

// CountByKind returns asset counts grouped by kind.
func (s *Store) CountByKind(ctx context.Context) (map[catalog.Kind]int, error) {
	rows, err := s.pool.Query(ctx, "SELECT kind, COUNT(*) FROM assets GROUP BY kind")
	if err != nil {
		return nil, fmt.Errorf("counting by kind: %w", err)
	}
	defer rows.Close()

	counts := make(map[catalog.Kind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[catalog.Kind(kind)] = n
	}
	return counts, rows.Err()
}
