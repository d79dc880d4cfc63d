package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crmkit/dispatchd/internal/api"
	"github.com/crmkit/dispatchd/internal/config"
	"github.com/crmkit/dispatchd/internal/db"
	"github.com/crmkit/dispatchd/internal/dispatch"
	"github.com/crmkit/dispatchd/internal/metrics"
	"github.com/crmkit/dispatchd/internal/repository"
	"github.com/crmkit/dispatchd/internal/secrets"
	"github.com/crmkit/dispatchd/internal/tracking"
)

// App is the main application
type App struct {
	config        *config.Config
	db            *db.DB
	trackingStore *tracking.Store
	apiServer     *api.Server
	logger        *slog.Logger
}

// New creates a new application
func New(cfg *config.Config) (*App, error) {
	logger := setupLogger(cfg.Logging)

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	codec := secrets.NewCodec(cfg.Crypto.SharedSecret)
	m := metrics.New()

	engine := dispatch.New(database.DB, codec, m, logger, dispatch.Config{
		Concurrency: cfg.Dispatch.Concurrency,
		SendTimeout: cfg.Dispatch.SendTimeout,
	})

	var tracker *tracking.Tracker
	var trackingStore *tracking.Store
	if cfg.Tracking.Enabled {
		trackingStore, err = tracking.NewStore(cfg.Tracking.Path)
		if err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to open tracking store: %w", err)
		}
		tracker = tracking.New(trackingStore, cfg.Tracking.BaseURL, logger.With("component", "tracking"))
		engine.SetDecorator(tracker)
		logger.Info("engagement tracking enabled", "base_url", cfg.Tracking.BaseURL)
	}

	apiServer := api.NewServer(cfg, api.Deps{
		Engine:      engine,
		Campaigns:   repository.NewCampaignRepository(database.DB),
		Credentials: repository.NewCredentialRepository(database.DB),
		Logs:        repository.NewDeliveryLogRepository(database.DB),
		Codec:       codec,
		Verifier:    api.NewDBTokenVerifier(repository.NewTokenRepository(database.DB)),
		Metrics:     m,
		Tracker:     tracker,
	}, logger)

	return &App{
		config:        cfg,
		db:            database,
		trackingStore: trackingStore,
		apiServer:     apiServer,
		logger:        logger,
	}, nil
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("starting dispatchd",
		"api_addr", a.config.Server.ListenAddr,
		"concurrency", a.config.Dispatch.Concurrency,
	)

	// Create context that listens for signals
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		if err := a.apiServer.ListenAndServe(); err != nil {
			errCh <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.logger.Error("server error", "error", err)
		return err
	}

	return a.Shutdown(context.Background())
}

// Shutdown gracefully shuts down all components
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := a.apiServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("failed to shutdown API server", "error", err)
	}

	if a.trackingStore != nil {
		if err := a.trackingStore.Close(); err != nil {
			a.logger.Error("failed to close tracking store", "error", err)
		}
	}

	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", "error", err)
	}

	a.logger.Info("shutdown complete")
	return nil
}

// setupLogger creates a logger based on configuration
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
