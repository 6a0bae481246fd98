//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/vitkovar/media-atlas/internal/catalog"
	"github.com/vitkovar/media-atlas/internal/config"
)

func setupTestStore(t *testing.T) (*Store, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil || container == nil {
		t.Skipf("Docker not available, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}

	cfg := &config.DatabaseConfig{
		URL:          fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
	}

	store, err := NewStore(ctx, cfg, 4)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	return store, func() {
		store.Close()
		_ = container.Terminate(ctx)
	}
}

func TestAssetRoundTrip(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	tsReal := int64(1700000000)
	a := &catalog.Asset{
		Path:           "trips/prague/castle.jpg",
		Kind:           catalog.KindImage,
		Embedding:      []float32{0.1, 0.2, 0.3, 0.4},
		TSReal:         &tsReal,
		TSInferred:     1710000000,
		TimeConfidence: 1.0,
		TimeSource:     "exif",
		Metadata:       map[string]string{"res": "4000x3000"},
		ThumbRef:       "trips_prague_castle.jpg",
	}
	if err := store.InsertAsset(ctx, a); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	if err := store.InsertAsset(ctx, a); !errors.Is(err, catalog.ErrConflict) {
		t.Errorf("expected ErrConflict on duplicate insert, got %v", err)
	}

	got, err := store.GetAsset(ctx, a.Path)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Kind != catalog.KindImage {
		t.Errorf("unexpected kind: %v", got.Kind)
	}
	if len(got.Embedding) != 4 {
		t.Errorf("unexpected embedding length: %d", len(got.Embedding))
	}
	if got.TSReal == nil || *got.TSReal != tsReal {
		t.Errorf("unexpected ts_real: %v", got.TSReal)
	}
	if got.Metadata["res"] != "4000x3000" {
		t.Errorf("unexpected metadata: %v", got.Metadata)
	}
	if got.HasCoordinates() {
		t.Error("new asset should have no coordinates")
	}
}

func TestNullEmbedding(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	a := &catalog.Asset{Path: "broken.jpg", Kind: catalog.KindImage, TSInferred: 1, TimeSource: "os"}
	if err := store.InsertAsset(ctx, a); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	got, err := store.GetAsset(ctx, "broken.jpg")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Embedding != nil {
		t.Errorf("expected nil embedding, got %v", got.Embedding)
	}

	embedded, err := store.ListAssets(ctx, catalog.AssetFilter{RequireEmbedding: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(embedded) != 0 {
		t.Errorf("null-vector row leaked into embedded set: %v", embedded)
	}
}

func TestCoordinatesAndClusters(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	for _, p := range []string{"a.jpg", "b.jpg"} {
		if err := store.InsertAsset(ctx, &catalog.Asset{Path: p, Kind: catalog.KindImage, TSInferred: 1, TimeSource: "os"}); err != nil {
			t.Fatal(err)
		}
	}

	err := store.SetCoordinates(ctx, map[string]catalog.Coordinates{
		"a.jpg": {X: 1, Y: 2, Z: 3},
		"b.jpg": {X: -1, Y: 0, Z: 4},
	})
	if err != nil {
		t.Fatalf("set coordinates failed: %v", err)
	}

	err = store.SetClusters(ctx, map[string]catalog.ClusterAssignment{
		"a.jpg": {ID: 0, Label: "city streets"},
	})
	if err != nil {
		t.Fatalf("set clusters failed: %v", err)
	}

	got, err := store.GetAsset(ctx, "a.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if !got.HasCoordinates() || *got.X != 1 {
		t.Errorf("coordinates not persisted: %+v", got)
	}
	if got.ClusterID == nil || *got.ClusterID != 0 || got.ClusterLabel != "city streets" {
		t.Errorf("cluster not persisted: %+v", got)
	}
}

func TestIdentityLifecycle(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.InsertAsset(ctx, &catalog.Asset{Path: "a.jpg", Kind: catalog.KindImage, TSInferred: 1, TimeSource: "os"}); err != nil {
		t.Fatal(err)
	}

	id, err := store.UpsertIdentity(ctx, "Alice")
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if id.Count != 0 || id.Prototype != nil {
		t.Errorf("new identity should be an empty shell: %+v", id)
	}

	if err := store.Link(ctx, "Alice", "a.jpg"); err != nil {
		t.Fatal(err)
	}
	// Idempotent.
	if err := store.Link(ctx, "Alice", "a.jpg"); err != nil {
		t.Fatal(err)
	}
	n, err := store.CountLinks(ctx, "Alice")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected one link, got %d", n)
	}

	id.Prototype = []float32{0, 1, 0, 0}
	id.Count = 1
	id.CoverPath = "a.jpg"
	if err := store.SaveIdentity(ctx, id); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetIdentity(ctx, "Alice")
	if err != nil {
		t.Fatal(err)
	}
	if got.Count != 1 || got.CoverPath != "a.jpg" || len(got.Prototype) != 4 {
		t.Errorf("identity not saved: %+v", got)
	}

	// Deleting the asset cascades the link but keeps the identity.
	if err := store.DeleteAsset(ctx, "a.jpg"); err != nil {
		t.Fatal(err)
	}
	n, err = store.CountLinks(ctx, "Alice")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("expected cascade to remove link, got %d", n)
	}

	if err := store.DeleteIdentity(ctx, "Alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetIdentity(ctx, "Alice"); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
