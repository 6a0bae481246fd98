package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/vitkovar/media-atlas/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	scanHandler := handlers.NewScanHandler(s.deps)
	searchHandler := handlers.NewSearchHandler(s.deps)
	identitiesHandler := handlers.NewIdentitiesHandler(s.deps)
	spatialHandler := handlers.NewSpatialHandler(s.deps)
	statsHandler := handlers.NewStatsHandler(s.deps)
	filesHandler := handlers.NewFilesHandler(s.deps)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/scan", scanHandler.Start)
		r.Get("/scan/progress", scanHandler.Progress)

		r.Get("/search", searchHandler.Search)
		r.Post("/weave", searchHandler.Weave)

		r.Get("/identities", identitiesHandler.List)
		r.Post("/identities/teach", identitiesHandler.Teach)
		r.Post("/identities/cluster-tag", identitiesHandler.ClusterTag)
		r.Delete("/identities/{name}", identitiesHandler.Delete)
		r.Delete("/identities/{name}/assets", identitiesHandler.Untag)

		r.Get("/discovery", spatialHandler.Discovery)
		r.Get("/spatial", spatialHandler.All)

		r.Get("/stats", statsHandler.Stats)
	})

	s.router.Get("/thumbs/*", filesHandler.Thumb)
	s.router.Get("/raw/*", filesHandler.Raw)
}
