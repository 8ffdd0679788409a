// Package server provides the HTTP server setup for Sadhana.
package server

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/Sadhana/internal/api"
	"github.com/MikeSquared-Agency/Sadhana/internal/config"
	"github.com/MikeSquared-Agency/Sadhana/internal/delivery"
	"github.com/MikeSquared-Agency/Sadhana/internal/middleware"
)

// Deps are the collaborators the HTTP layer serves.
type Deps struct {
	DB          api.Pinger
	Catalogs    api.CatalogRefresher
	Quotes      api.QuoteSource
	Recommender api.Runner
	Reports     api.ReportGenerator
	Channel     delivery.Channel     // nil disables the send endpoint
	Publisher   api.DeliveryPublisher // nil when NATS is unavailable
	Bus         api.ConnState         // nil when NATS is unavailable
	Model       api.Readiness
	Index       api.Readiness
	Audit       AuditLog // nil disables the audit trail
}

// AuditLog records and lists audited actions.
type AuditLog interface {
	api.Auditor
	api.AuditReader
}

// Server holds the router and its configuration.
type Server struct {
	Router *chi.Mux
	Config *config.Config
	Logger *slog.Logger
}

// New creates a new Server with all routes configured.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))

	// Handlers
	healthHandler := api.NewHealthHandler(deps.DB, deps.Catalogs, deps.Model, deps.Index, deps.Bus)
	quotesHandler := api.NewQuotesHandler(deps.Quotes, logger)
	catalogHandler := api.NewCatalogHandler(deps.Catalogs, logger)
	recommendHandler := api.NewRecommendHandler(deps.Recommender, deps.Reports, deps.Channel, deps.Publisher, cfg.ReportSubject, logger)

	if deps.Audit != nil {
		recommendHandler.SetAuditor(deps.Audit)
		catalogHandler.SetAuditor(deps.Audit)
	}

	recommendRL := middleware.NewRateLimiter(cfg.RecommendRateLimit, cfg.RateWindow)

	r.Handle("/metrics", promhttp.Handler())

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health (no rate limit)
		r.Get("/health", healthHandler.Health)
		r.Get("/stats", healthHandler.Stats)

		r.Get("/quotes", quotesHandler.Random)
		r.Get("/benefits", catalogHandler.Benefits)

		r.Route("/recommendations", func(r chi.Router) {
			r.Use(recommendRL.Middleware)
			r.Post("/", recommendHandler.Send)
			r.Post("/preview", recommendHandler.Preview)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.APIKeyAuth(cfg.AdminAPIKey))
			r.Post("/catalog/refresh", catalogHandler.Refresh)
			if deps.Audit != nil {
				r.Get("/audit", api.NewAuditHandler(deps.Audit).List)
			}
		})
	})

	return &Server{
		Router: r,
		Config: cfg,
		Logger: logger,
	}
}
