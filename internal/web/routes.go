package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/photo-vault/internal/burst"
	"github.com/kozaktomas/photo-vault/internal/dedup"
	"github.com/kozaktomas/photo-vault/internal/ingest"
	"github.com/kozaktomas/photo-vault/internal/library"
	"github.com/kozaktomas/photo-vault/internal/web/handlers"
)

func (s *Server) setupRoutes(service *ingest.Service, resolver *dedup.Resolver, catalog library.Catalog, classifier *burst.Classifier) {
	photosHandler := handlers.NewPhotosHandler(service, s.pending)
	conflictsHandler := handlers.NewConflictsHandler(resolver, s.pending)
	burstsHandler := handlers.NewBurstsHandler(catalog, classifier)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Photos
		r.Post("/photos/check", photosHandler.Check)
		r.Post("/photos/ingest", photosHandler.Ingest)

		// Conflicts
		r.Get("/conflicts", conflictsHandler.List)
		r.Get("/conflicts/{id}", conflictsHandler.Get)
		r.Post("/conflicts/{id}/resolve", conflictsHandler.Resolve)

		// Bursts
		r.Post("/bursts/classify", burstsHandler.Classify)
	})
}
