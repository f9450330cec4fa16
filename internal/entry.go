// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/rusel95/AstroSvitla-sub001/internal/api"
	"github.com/rusel95/AstroSvitla-sub001/internal/assetstore"
	"github.com/rusel95/AstroSvitla-sub001/internal/astro"
	"github.com/rusel95/AstroSvitla-sub001/internal/chartservice"
	"github.com/rusel95/AstroSvitla-sub001/internal/chartstore"
	"github.com/rusel95/AstroSvitla-sub001/internal/connectivity"
	"github.com/rusel95/AstroSvitla-sub001/internal/events"
	"github.com/rusel95/AstroSvitla-sub001/internal/mcpserver"
	"github.com/rusel95/AstroSvitla-sub001/internal/provider"
	"github.com/rusel95/AstroSvitla-sub001/internal/ratelimit"
)

// components holds everything buildComponents wires up from the config.
type components struct {
	svc    *chartservice.Service
	db     *chartstore.DB
	assets *assetstore.FS
}

// buildComponents opens the stores and assembles the chart service.
// notify receives chart lifecycle events; nil disables them.
func buildComponents(cfg *Config, logger *slog.Logger, notify func(kind, fingerprint string)) (*components, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Cache.ChartDBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	if err := os.MkdirAll(cfg.Cache.AssetDir, 0o755); err != nil {
		return nil, fmt.Errorf("create asset dir: %w", err)
	}

	db, err := chartstore.Open(cfg.Cache.ChartDBPath)
	if err != nil {
		return nil, fmt.Errorf("init chart store: %w", err)
	}

	assets, err := assetstore.NewFS(cfg.Cache.AssetDir)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init asset store: %w", err)
	}

	limiter, err := ratelimit.New(db, ratelimit.Config{
		Window:           cfg.Quota.Window(),
		Limit:            cfg.Quota.WindowLimit,
		RequestsPerChart: cfg.Quota.RequestsPerChart,
		MonthlyCredits:   cfg.Quota.MonthlyCredits,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init rate limiter: %w", err)
	}

	client := provider.NewClient(provider.Config{
		BaseURL: cfg.Provider.BaseURL,
		UserID:  cfg.Provider.UserID,
		APIKey:  cfg.Provider.APIKey,
	}, logger)

	online, err := connectivity.NewDialChecker(cfg.Provider.BaseURL, 0)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init connectivity check: %w", err)
	}

	svc := chartservice.New(chartservice.Config{
		Charts:     db,
		Assets:     assets,
		Provider:   client,
		Limiter:    limiter,
		Online:     online,
		MaxEntries: cfg.Cache.MaxEntries,
		StaleAfter: cfg.Cache.StaleAfter(),
		Notify:     notify,
	}, logger)

	return &components{svc: svc, db: db, assets: assets}, nil
}

func newLogger(app *application) *slog.Logger {
	if app.logger != nil {
		return app.logger
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: app.config.App.LogLevel,
	}))
}

// Run starts the HTTP service with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := newLogger(app)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("chart_db", cfg.Cache.ChartDBPath),
		slog.String("asset_dir", cfg.Cache.AssetDir),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if !cfg.Provider.HasCredentials() {
		logger.Warn("provider credentials missing; cached charts will be served but generation will fail",
			slog.String("base_url", cfg.Provider.BaseURL))
	}

	// SSE broker, throttling usage updates to one per two seconds.
	broker := events.NewBroker(2 * time.Second)
	defer broker.Close()

	comps, err := buildComponents(cfg, logger, broker.PublishChartEvent)
	if err != nil {
		return err
	}
	defer comps.db.Close()

	// Align chart rows with asset files left over from previous runs.
	assetstore.Reconcile(comps.assets, comps.db, logger, nil)

	apiRouter := api.NewRouter(comps.svc,
		astro.HouseSystem(cfg.Provider.HouseSystem),
		cfg.Auth.AuthEnabled(), cfg.Auth.Token,
		broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api. The SSE stream lives inside the API
	// router so it shares the auth middleware.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Keep chart rows consistent with asset files on disk.
	g.Go(func() error {
		err := assetstore.Watch(gCtx, comps.assets, comps.db, logger, func(kind, assetID string) {
			broker.Publish(events.Event{
				Type: "asset." + kind,
				Data: map[string]string{"asset_id": assetID},
			})
		})
		if err != nil {
			return fmt.Errorf("asset watcher: %w", err)
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the chart tools over MCP stdio with the given options.
// The logger goes to stderr since stdout carries the protocol; stdio
// lifetime is managed by the MCP library, which exits on EOF or signal.
func RunMCP(_ context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}
	slog.SetDefault(logger)

	comps, err := buildComponents(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer comps.db.Close()

	assetstore.Reconcile(comps.assets, comps.db, logger, nil)

	logger.Info("MCP server starting on stdio",
		slog.String("chart_db", cfg.Cache.ChartDBPath))

	srv := mcpserver.New(comps.svc)
	if err := srv.ServeStdio(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
