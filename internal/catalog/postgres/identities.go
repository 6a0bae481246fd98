package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/vitkovar/media-atlas/internal/catalog"
)

func scanIdentity(row pgx.Row) (*catalog.Identity, error) {
	var id catalog.Identity
	var proto, faceProto *pgvector.Vector

	if err := row.Scan(&id.Name, &proto, &faceProto, &id.Count, &id.CoverPath); err != nil {
		return nil, err
	}
	if proto != nil {
		id.Prototype = proto.Slice()
	}
	if faceProto != nil {
		id.FacePrototype = faceProto.Slice()
	}
	return &id, nil
}

// UpsertIdentity creates an identity shell when the name is new and
// returns the current row either way.
func (s *Store) UpsertIdentity(ctx context.Context, name string) (*catalog.Identity, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO identities (name) VALUES ($1)
		ON CONFLICT (name) DO NOTHING
	`, name)
	if err != nil {
		return nil, fmt.Errorf("upserting identity: %w", err)
	}
	return s.GetIdentity(ctx, name)
}

// GetIdentity returns the identity for a name.
func (s *Store) GetIdentity(ctx context.Context, name string) (*catalog.Identity, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT name, prototype, face_prototype, count, cover_path
		FROM identities WHERE name = $1
	`, name)
	id, err := scanIdentity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying identity: %w", err)
	}
	return id, nil
}

// SaveIdentity replaces the stored identity row in one atomic update.
func (s *Store) SaveIdentity(ctx context.Context, id *catalog.Identity) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE identities
		SET prototype = $2, face_prototype = $3, count = $4, cover_path = $5
		WHERE name = $1
	`, id.Name, vecOrNull(id.Prototype), vecOrNull(id.FacePrototype), id.Count, id.CoverPath)
	if err != nil {
		return fmt.Errorf("saving identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

// DeleteIdentity removes an identity; links follow via ON DELETE CASCADE.
func (s *Store) DeleteIdentity(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM identities WHERE name = $1", name)
	if err != nil {
		return fmt.Errorf("deleting identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

// ListIdentities returns all identities with their prototypes.
func (s *Store) ListIdentities(ctx context.Context) ([]catalog.Identity, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT name, prototype, face_prototype, count, cover_path
		FROM identities ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("querying identities: %w", err)
	}
	defer rows.Close()

	var out []catalog.Identity
	for rows.Next() {
		id, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *id)
	}
	return out, rows.Err()
}

// Link associates an identity with an asset path. Idempotent.
func (s *Store) Link(ctx context.Context, name, path string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO identity_links (identity_name, asset_path)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, name, path)
	if err != nil {
		return fmt.Errorf("linking %s to %s: %w", name, path, err)
	}
	return nil
}

// Unlink removes a link.
func (s *Store) Unlink(ctx context.Context, name, path string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM identity_links WHERE identity_name = $1 AND asset_path = $2
	`, name, path)
	if err != nil {
		return fmt.Errorf("unlinking %s from %s: %w", name, path, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

// ListLinks returns the asset paths linked to an identity.
func (s *Store) ListLinks(ctx context.Context, name string) ([]string, error) {
	if _, err := s.GetIdentity(ctx, name); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT asset_path FROM identity_links WHERE identity_name = $1 ORDER BY asset_path
	`, name)
	if err != nil {
		return nil, fmt.Errorf("querying links: %w", err)
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

// CountLinks returns the number of active links for an identity.
func (s *Store) CountLinks(ctx context.Context, name string) (int, error) {
	if _, err := s.GetIdentity(ctx, name); err != nil {
		return 0, err
	}

	var count int
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM identity_links WHERE identity_name = $1", name).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting links: %w", err)
	}
	return count, nil
}

// AssetTags returns identity names keyed by asset path in one pass.
func (s *Store) AssetTags(ctx context.Context) (map[string][]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT asset_path, identity_name FROM identity_links ORDER BY identity_name
	`)
	if err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}
	defer rows.Close()

	tags := make(map[string][]string)
	for rows.Next() {
		var path, name string
		if err := rows.Scan(&path, &name); err != nil {
			return nil, err
		}
		tags[path] = append(tags[path], name)
	}
	return tags, rows.Err()
}
