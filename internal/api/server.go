package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/crmkit/dispatchd/internal/config"
	"github.com/crmkit/dispatchd/internal/dispatch"
	"github.com/crmkit/dispatchd/internal/metrics"
	"github.com/crmkit/dispatchd/internal/repository"
	"github.com/crmkit/dispatchd/internal/secrets"
	"github.com/crmkit/dispatchd/internal/tracking"
)

// Server is the HTTP API server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	cfg        *config.Config
	logger     *slog.Logger
	metrics    *metrics.Metrics
	verifier   TokenVerifier

	engine      *dispatch.Engine
	campaigns   *repository.CampaignRepository
	credentials *repository.CredentialRepository
	logs        *repository.DeliveryLogRepository
	codec       *secrets.Codec
	tracker     *tracking.Tracker
}

// Deps bundles the collaborators the server needs.
type Deps struct {
	Engine      *dispatch.Engine
	Campaigns   *repository.CampaignRepository
	Credentials *repository.CredentialRepository
	Logs        *repository.DeliveryLogRepository
	Codec       *secrets.Codec
	Verifier    TokenVerifier
	Metrics     *metrics.Metrics
	Tracker     *tracking.Tracker // nil when tracking is disabled
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		cfg:         cfg,
		logger:      logger.With("component", "api"),
		metrics:     deps.Metrics,
		verifier:    deps.Verifier,
		engine:      deps.Engine,
		campaigns:   deps.Campaigns,
		credentials: deps.Credentials,
		logs:        deps.Logs,
		codec:       deps.Codec,
		tracker:     deps.Tracker,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)

	// Public endpoints
	s.router.Get("/health", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	if s.tracker != nil {
		s.router.Get("/t/o/{token}.png", s.handleTrackOpen)
		s.router.Get("/t/c/{token}", s.handleTrackClick)
	}

	// API v1 routes (auth required)
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/campaigns", s.handleCampaignCreate)
		r.Get("/campaigns", s.handleCampaignList)
		r.Get("/campaigns/{id}", s.handleCampaignGet)
		r.Put("/campaigns/{id}", s.handleCampaignUpdate)
		r.Delete("/campaigns/{id}", s.handleCampaignDelete)
		r.Post("/campaigns/{id}/dispatch", s.handleDispatch)
		r.Get("/campaigns/{id}/logs", s.handleLogs)
		r.Get("/campaigns/{id}/stats", s.handleStats)
		if s.tracker != nil {
			r.Get("/campaigns/{id}/engagement", s.handleEngagement)
		}

		r.Post("/credentials", s.handleCredentialCreate)
		r.Get("/credentials", s.handleCredentialList)
		r.Patch("/credentials/{id}/status", s.handleCredentialStatus)
		r.Delete("/credentials/{id}", s.handleCredentialDelete)
	})
}

// Handler returns the configured router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Server.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // dispatch runs synchronously
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP API server", "addr", s.cfg.Server.ListenAddr)
	if s.cfg.Server.TLS.Enabled {
		return s.httpServer.ListenAndServeTLS(s.cfg.Server.TLS.CertFile, s.cfg.Server.TLS.KeyFile)
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP API server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
