package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/formgate/leadcapture/internal/http/middleware"
	"github.com/formgate/leadcapture/internal/leads"
	"github.com/formgate/leadcapture/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	LeadsHandler   *leads.Handler
	AdminHandler   *leads.AdminHandler
	MetricsHandler http.Handler

	// APIKey protects GET /leads; AdminJWTSecret signs the admin bearer
	// tokens. Leaving either empty locks the endpoints it guards.
	APIKey         string
	AdminJWTSecret string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Get("/health", cfg.LeadsHandler.HealthCheck)
	r.Post("/leads", cfg.LeadsHandler.SubmitLead)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Key-protected retrieval
	r.With(httpmiddleware.APIKeyAuth(cfg.APIKey)).Get("/leads", cfg.LeadsHandler.ListLeads)

	// Admin endpoints (JWT-protected)
	if cfg.AdminHandler != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminJWTSecret))
			admin.Get("/leads/stats", cfg.AdminHandler.Stats)
			admin.Delete("/leads/{leadID}", cfg.AdminHandler.EraseLead)
		})
	}

	return r
}
