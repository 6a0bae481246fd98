package cmd

import (
	"context"
	"fmt"

	"github.com/vitkovar/media-atlas/internal/catalog"
	"github.com/vitkovar/media-atlas/internal/catalog/memory"
	"github.com/vitkovar/media-atlas/internal/catalog/postgres"
	"github.com/vitkovar/media-atlas/internal/config"
	"github.com/vitkovar/media-atlas/internal/encoder"
	"github.com/vitkovar/media-atlas/internal/identity"
	"github.com/vitkovar/media-atlas/internal/pipeline"
	"github.com/vitkovar/media-atlas/internal/projection"
	"github.com/vitkovar/media-atlas/internal/scanner"
	"github.com/vitkovar/media-atlas/internal/search"
	"github.com/vitkovar/media-atlas/internal/thumbs"
)

// components bundles everything the commands wire together.
type components struct {
	cfg        *config.Config
	store      catalog.Store
	enc        encoder.Encoder
	faces      encoder.FaceDetector
	thumbs     *thumbs.Generator
	scanner    *scanner.Scanner
	reconciler *scanner.Reconciler
	projector  *projection.Engine
	ranker     *search.Ranker
	registry   *identity.Registry
	close      func()
}

// buildComponents assembles the core from environment configuration.
// An unset DATABASE_URL selects the in-memory catalog, useful for
// one-shot CLI runs against a throwaway index.
func buildComponents(ctx context.Context) (*components, error) {
	cfg := config.Load()

	var (
		store     catalog.Store
		closeFunc = func() {}
	)
	if cfg.Database.URL == "" {
		fmt.Println("DATABASE_URL not set, using in-memory catalog")
		store = memory.NewStore()
	} else {
		pg, err := postgres.NewStore(ctx, &cfg.Database, cfg.Encoder.Dim)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		store = pg
		closeFunc = pg.Close
	}

	enc, faces, err := encoder.NewFromConfig(&cfg.Encoder)
	if err != nil {
		closeFunc()
		return nil, err
	}

	gen, err := thumbs.NewGenerator(cfg.Library.ThumbsDir)
	if err != nil {
		closeFunc()
		return nil, err
	}

	pipe := pipeline.New(store, enc, faces, gen)
	sc := scanner.New(cfg.Library.Root, cfg.Library.IgnoreDirs, cfg.Library.BatchSize, store, pipe, gen)
	proj := projection.New(store, enc, config.Vocabulary())

	return &components{
		cfg:        cfg,
		store:      store,
		enc:        enc,
		faces:      faces,
		thumbs:     gen,
		scanner:    sc,
		reconciler: scanner.NewReconciler(sc, proj),
		projector:  proj,
		ranker:     search.NewRanker(store, enc),
		registry:   identity.NewRegistry(store, enc, faces, cfg.Library.Root),
		close:      closeFunc,
	}, nil
}
