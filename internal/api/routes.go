package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	// Burst of 100 deletes, then sustained rate of 10/second
	deleteRateLimiter := NewDeleteRateLimiter(100, 100*time.Millisecond)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Get("/health", h.Health)
		r.Get("/lessons", h.ListLessons)
		r.Post("/lessons", h.CreateLesson)

		r.Route("/vocab/{lesson}", func(r chi.Router) {
			r.Use(LessonMiddleware)
			r.Get("/", h.ListVocab)
			r.Post("/", h.CreateVocab)

			// Admin-only entry mutation
			r.Group(func(r chi.Router) {
				r.Use(AuthMiddleware(h.adminKey))
				r.Put("/{id}", h.UpdateVocab)
				r.With(deleteRateLimiter.Middleware).Delete("/{id}", h.DeleteVocab)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(AuthMiddleware(h.adminKey))
			r.Get("/export", h.Export)
			r.Post("/export", h.Export)
			r.Post("/import", h.Import)
			r.Post("/backup", h.Backup)
			r.Get("/backup/url", h.BackupURL)
			r.Post("/reinit", h.Reinit)
		})
	})

	return r
}
