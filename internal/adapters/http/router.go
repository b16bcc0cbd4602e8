// Package http provides the inbound HTTP adapter including routing and server lifecycle.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/langkit/opcore/internal/adapters/http/handlers"
)

// NewRouter creates an HTTP handler with all application routes registered.
// Middleware is applied globally in the order given.
func NewRouter(
	operationHandler *handlers.OperationHandler,
	languageHandler *handlers.LanguageHandler,
	jobHandler *handlers.JobHandler,
	cacheHandler *handlers.CacheHandler,
	healthHandler *handlers.HealthHandler,
	middlewares ...func(http.Handler) http.Handler,
) http.Handler {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	// Health endpoints (outside /api/v1 prefix).
	r.Get("/health/live", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)

	// API v1 routes.
	r.Route("/api/v1", func(r chi.Router) {
		// Operation execution.
		r.Post("/operations/execute", operationHandler.Execute)

		// Catalogue browsing.
		r.Get("/languages", languageHandler.ListLanguages)
		r.Get("/languages/{languageId}/operations", languageHandler.ListOperations)

		// Async job polling and cancellation.
		r.Get("/jobs", jobHandler.ListJobs)
		r.Delete("/jobs", jobHandler.CancelJobs)
		r.Get("/jobs/{id}", jobHandler.GetJob)
		r.Get("/jobs/{id}/result", jobHandler.GetJobResult)
		r.Delete("/jobs/{id}", jobHandler.CancelJob)

		// Document cache management.
		r.Get("/cache/stats", cacheHandler.GetStats)
		r.Delete("/cache", cacheHandler.Clear)
		r.Post("/cache/warm", cacheHandler.Warm)
	})

	return r
}
