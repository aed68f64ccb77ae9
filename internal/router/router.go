package router

import (
	"net/http"

	"cellar-api/internal/handler"
	"cellar-api/internal/middleware"
	"cellar-api/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Logger          *logger.Logger
	Handler         *handler.Handler
	ItemHandler     *handler.ItemHandler
	HistoryHandler  *handler.HistoryHandler
	SettingsHandler *handler.SettingsHandler
	TransferHandler *handler.TransferHandler
	AdminHandler    *handler.AdminHandler
	AuthMiddleware  func(http.Handler) http.Handler
	AllowedOrigins  []string
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID(cfg.Logger))
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-API-Key"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// PUBLIC routes (no auth required)
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	// AUTHENTICATED routes (use Group to apply auth middleware only to these)
	r.Group(func(r chi.Router) {
		if cfg.AuthMiddleware != nil {
			r.Use(cfg.AuthMiddleware)
		}

		r.Route("/api/v1", func(r chi.Router) {
			// Health check endpoints
			if cfg.Handler != nil {
				r.Get("/health", cfg.Handler.Health)
				r.Get("/ready", cfg.Handler.Ready)
			}

			// Inventory endpoints
			if cfg.ItemHandler != nil {
				r.Route("/items", func(r chi.Router) {
					r.Get("/", cfg.ItemHandler.List)
					r.Post("/", cfg.ItemHandler.Create)
					r.Get("/grouped", cfg.ItemHandler.Grouped)
					r.Get("/suggestions", cfg.ItemHandler.Suggestions)
					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", cfg.ItemHandler.Get)
						r.Put("/", cfg.ItemHandler.Update)
						r.Delete("/", cfg.ItemHandler.Delete)
						r.Post("/consume", cfg.ItemHandler.Consume)
						r.Post("/copy", cfg.ItemHandler.Copy)
					})
				})
			}

			// History endpoints
			if cfg.HistoryHandler != nil {
				r.Route("/history", func(r chi.Router) {
					r.Get("/", cfg.HistoryHandler.List)
					r.Get("/summary", cfg.HistoryHandler.Summary)
					r.Get("/series", cfg.HistoryHandler.Series)
				})
			}

			// Settings endpoints
			if cfg.SettingsHandler != nil {
				r.Route("/settings", func(r chi.Router) {
					r.Get("/", cfg.SettingsHandler.Get)
					r.Put("/", cfg.SettingsHandler.Update)
					r.Route("/sort-orders", func(r chi.Router) {
						r.Post("/", cfg.SettingsHandler.CreateSortOrder)
						r.Put("/{id}", cfg.SettingsHandler.UpdateSortOrder)
						r.Delete("/{id}", cfg.SettingsHandler.DeleteSortOrder)
						r.Post("/{id}/select", cfg.SettingsHandler.SelectSortOrder)
					})
				})
			}

			// Export / import endpoints
			if cfg.TransferHandler != nil {
				r.Route("/export", func(r chi.Router) {
					r.Get("/", cfg.TransferHandler.Export)
					r.Get("/xlsx", cfg.TransferHandler.ExportXLSX)
					r.Get("/print", cfg.TransferHandler.Print)
				})
				r.Post("/import", cfg.TransferHandler.Import)
			}

			// Admin endpoints
			if cfg.AdminHandler != nil {
				r.Route("/admin", func(r chi.Router) {
					r.Get("/stats", cfg.AdminHandler.GetStats)
				})
			}
		})
	})

	return r
}
