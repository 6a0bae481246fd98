package catalog

import "context"

// AssetFilter narrows ListAssets results. Zero value matches everything.
type AssetFilter struct {
	Kind             Kind // empty matches any kind
	RequireEmbedding bool // only assets with a non-nil embedding
	ExcludeCaptured  bool // skip assets in the capture pool
}

// Store is the single source of truth for assets, identities, and
// identity-asset links. Every mutation is visible to the next read from
// any component; implementations must not cache across callers.
type Store interface {
	// InsertAsset stores a new asset row. Returns ErrConflict when the
	// path already exists; rows are never overwritten by insert.
	InsertAsset(ctx context.Context, a *Asset) error
	// DeleteAsset removes an asset row and all links pointing at it.
	// Returns ErrNotFound for unknown paths.
	DeleteAsset(ctx context.Context, path string) error
	// GetAsset returns the asset for a path or ErrNotFound.
	GetAsset(ctx context.Context, path string) (*Asset, error)
	// ListAssetPaths returns every cataloged path.
	ListAssetPaths(ctx context.Context) ([]string, error)
	// ListAssets returns all assets matching the filter, embeddings
	// included, in one pass. Ranking scans the whole matching set.
	ListAssets(ctx context.Context, f AssetFilter) ([]Asset, error)
	// SetThumb updates the thumbnail reference for an existing asset.
	SetThumb(ctx context.Context, path, thumbRef string) error
	// SetCoordinates persists projection coordinates for many assets.
	SetCoordinates(ctx context.Context, coords map[string]Coordinates) error
	// SetClusters persists cluster assignments for many assets.
	SetClusters(ctx context.Context, clusters map[string]ClusterAssignment) error
	// CountAssets returns the total number of asset rows.
	CountAssets(ctx context.Context) (int, error)
	// CountByKind returns asset counts grouped by kind.
	CountByKind(ctx context.Context) (map[Kind]int, error)

	// UpsertIdentity creates an identity shell if the name is new and
	// returns the current row either way.
	UpsertIdentity(ctx context.Context, name string) (*Identity, error)
	// GetIdentity returns the identity for a name or ErrNotFound.
	GetIdentity(ctx context.Context, name string) (*Identity, error)
	// SaveIdentity replaces the stored identity row in one atomic write.
	SaveIdentity(ctx context.Context, id *Identity) error
	// DeleteIdentity removes an identity and all of its links.
	DeleteIdentity(ctx context.Context, name string) error
	// ListIdentities returns all identities with their prototypes.
	ListIdentities(ctx context.Context) ([]Identity, error)

	// Link associates an identity with an asset path. Idempotent. The
	// identity and the asset row must both exist already; callers insert
	// the asset before linking it. Returns ErrNotFound otherwise.
	Link(ctx context.Context, name, path string) error
	// Unlink removes a link. Returns ErrNotFound when the link is absent.
	Unlink(ctx context.Context, name, path string) error
	// ListLinks returns the asset paths linked to an identity.
	ListLinks(ctx context.Context, name string) ([]string, error)
	// CountLinks returns the number of active links for an identity.
	CountLinks(ctx context.Context, name string) (int, error)
	// AssetTags returns identity names keyed by asset path, for every
	// link in the catalog, in one pass.
	AssetTags(ctx context.Context) (map[string][]string, error)
}
