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
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/doclife/internal/api"
	"github.com/starford/doclife/internal/docservice"
	"github.com/starford/doclife/internal/lifecycle"
	"github.com/starford/doclife/internal/lint"
	"github.com/starford/doclife/internal/mcpserver"
	"github.com/starford/doclife/internal/metrics"
	"github.com/starford/doclife/internal/models"
	"github.com/starford/doclife/internal/policy"
	"github.com/starford/doclife/internal/registry"
	"github.com/starford/doclife/internal/sse"
	"github.com/starford/doclife/internal/storage"
	"github.com/starford/doclife/internal/vcs"
)

// Runtime is the wired set of components shared by every entry point.
type Runtime struct {
	Config  *Config
	Logger  *slog.Logger
	Service *docservice.Service
	Indexer *registry.Indexer
	Metrics *metrics.Metrics

	gatherer prometheus.Gatherer
	db       *registry.DB
	version  string
}

// Open wires storage, the registry, the lint pipeline and the document
// service from the configured options. Close releases the registry.
func Open(opts ...Option) (*Runtime, error) {
	app := &application{version: "dev"}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config
	logger := app.logger
	if logger == nil {
		logger = NewLogger(os.Stderr, cfg.App.LogLevel, cfg.App.LogFormat)
	}
	loc := cfg.App.Location()

	logger.Debug("Configuration loaded",
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("timezone", loc.String()),
		slog.Int("retention_days", cfg.Lifecycle.RetentionDays),
		slog.Bool("auto_touch", cfg.Lifecycle.AutoTouch))

	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	classifier, err := policy.New(cfg.Policy, loc)
	if err != nil {
		return nil, fmt.Errorf("init policy: %w", err)
	}
	planner := lifecycle.NewPlanner(cfg.Layout, cfg.Lifecycle.Retention(), loc)
	checker := lint.New(classifier, planner, loc)

	db, err := registry.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init registry: %w", err)
	}

	author := cfg.App.Author
	repo, err := vcs.Open(cfg.Vault.Path)
	switch {
	case errors.Is(err, vcs.ErrNoRepository):
		logger.Debug("vault is not a git work tree; moves are plain renames")
	case err != nil:
		logger.Warn("git unavailable", slog.String("error", err.Error()))
		repo = nil
	default:
		if author == "" {
			author = repo.Author()
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	ix := registry.NewIndexer(db, store, checker, logger, registry.WithAutoTouch(cfg.Lifecycle.AutoTouch))
	svc := docservice.NewService(ix, db, vcs.NewMover(repo, store),
		docservice.WithAuthor(author),
		docservice.WithMetrics(m),
		docservice.WithLogger(logger),
		docservice.WithLocation(loc),
	)

	return &Runtime{
		Config:   cfg,
		Logger:   logger,
		Service:  svc,
		Indexer:  ix,
		Metrics:  m,
		gatherer: reg,
		db:       db,
		version:  app.version,
	}, nil
}

// Close closes the registry.
func (rt *Runtime) Close() error {
	return rt.db.Close()
}

// Run starts the vault service: HTTP API, SSE, metrics and the watcher.
func Run(ctx context.Context, opts ...Option) error {
	rt, err := Open(opts...)
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg := rt.Config
	logger := rt.Logger
	svc := rt.Service

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	rt.Indexer.SetCallback(func(ev models.Event) {
		broker.PublishDocumentEvent(ev)
		svc.RefreshMetrics()
	})

	// Initial reconcile; lint state is served from the registry.
	start := time.Now()
	if err := rt.Indexer.Sync(ctx); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	rt.Metrics.ObserveLint(time.Since(start))
	svc.RefreshMetrics()

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		if _, err := svc.Summary(context.Background()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.HandlerFor(rt.gatherer, promhttp.HandlerOpts{}))

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := rt.Indexer.Watch(gCtx); err != nil {
			return fmt.Errorf("watcher: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// ServeMCP syncs the registry and serves the MCP tools over stdio.
// Logs go to stderr so they never interleave with the protocol stream.
func ServeMCP(ctx context.Context, opts ...Option) error {
	rt, err := Open(opts...)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.Indexer.Sync(ctx); err != nil {
		rt.Logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	rt.Logger.Info("MCP server starting on stdio")
	return mcpserver.New(rt.Service, rt.version).ServeStdio()
}
