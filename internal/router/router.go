package router

import (
	"net/http"

	"parcelhub-sync-agent/internal/handler"
	"parcelhub-sync-agent/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler         *handler.Handler
	ShipmentHandler *handler.ShipmentHandler
	RefDataHandler  *handler.RefDataHandler
	SyncHandler     *handler.SyncHandler
	AuthMiddleware  func(http.Handler) http.Handler
}

// New creates and configures the local agent HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "X-Agent-Key"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// PUBLIC routes (no auth required) - the UI polls these before login
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	// AUTHENTICATED routes
	r.Group(func(r chi.Router) {
		if cfg.AuthMiddleware != nil {
			r.Use(cfg.AuthMiddleware)
		}

		r.Route("/api/v1", func(r chi.Router) {
			if cfg.Handler != nil {
				r.Get("/health", cfg.Handler.Health)
			}

			if cfg.ShipmentHandler != nil {
				r.Route("/shipments", func(r chi.Router) {
					r.Post("/", cfg.ShipmentHandler.Create)
					r.Get("/offline", cfg.ShipmentHandler.ListOffline)
				})
			}

			if cfg.RefDataHandler != nil {
				r.Route("/reference/{type}", func(r chi.Router) {
					r.Get("/", cfg.RefDataHandler.Get)
					r.Post("/refresh", cfg.RefDataHandler.Refresh)
				})
			}

			if cfg.SyncHandler != nil {
				r.Route("/sync", func(r chi.Router) {
					r.Post("/", cfg.SyncHandler.Force)
					r.Get("/failures", cfg.SyncHandler.Failures)
				})
			}
		})
	})

	return r
}
