// docgate - session gate and streaming chat for a static documentation site
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/docgate/internal/api"
	"github.com/ashureev/docgate/internal/authapi"
	"github.com/ashureev/docgate/internal/chat"
	"github.com/ashureev/docgate/internal/config"
	"github.com/ashureev/docgate/internal/gate"
	"github.com/ashureev/docgate/internal/identity"
	"github.com/ashureev/docgate/internal/inference"
	"github.com/ashureev/docgate/internal/middleware"
	"github.com/ashureev/docgate/internal/observability"
	"github.com/ashureev/docgate/internal/session"
	"github.com/ashureev/docgate/internal/store"
	"github.com/ashureev/docgate/internal/widget"
	"github.com/ashureev/docgate/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "base_path", cfg.Gate.BasePath)

	// Initialize dependencies.
	repo, err := openRepository(cfg)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	site, err := web.SiteFS(cfg.SiteDir)
	if err != nil {
		slog.Error("Failed to open site", "dir", cfg.SiteDir, "error", err)
		os.Exit(1)
	}

	var metrics *observability.Metrics
	reg := prometheus.NewRegistry()
	if cfg.MetricsEnabled {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = observability.NewMetrics("docgate", reg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pools := loadPools(cfg.Chat.PoolsFile)
	if cfg.Chat.PoolsFile != "" {
		if err := chat.WatchPools(ctx, cfg.Chat.PoolsFile, pools, logger); err != nil {
			slog.Warn("Chat pools will not hot-reload", "path", cfg.Chat.PoolsFile, "error", err)
		}
	}

	sessions := session.NewManager(repo, cfg.Gate.SessionTTL)
	targets := session.NewTargets()
	g := gate.New(cfg.Gate, gate.Deps{
		Sessions:  sessions,
		Targets:   targets,
		Auth:      authapi.NewClient(cfg.Auth),
		Templates: web.Templates(),
		Metrics:   metrics,
		Logger:    logger,
	})

	streamer := inference.NewClient(cfg.Chat)
	hub := widget.NewHub(ctx, func() *chat.Controller {
		return chat.NewController(streamer, nil, chat.Config{
			Pools:    pools,
			BotName:  cfg.Chat.BotName,
			UserName: cfg.Chat.UserName,
			Metrics:  metrics,
		}, logger)
	})
	defer hub.Close()

	healthHandler := api.NewHealthHandler(repo, 5*time.Second)
	sessionHandler := api.NewSessionHandler(sessions, hub)
	wsHandler := widget.NewHandler(hub, metrics, cfg.AllowedOrigins, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Public routes.
	healthHandler.RegisterHealth(r)
	if metrics != nil {
		r.Handle("/metrics", metrics.Handler())
	}

	base := cfg.Gate.BasePath
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(cfg.IsDevelopment()))

		login := g.LoginHandler()
		r.Handle(cfg.Gate.LoginPath(), login)
		r.Handle(base+"/login", login)
		r.Post(base+"/logout/", g.LogoutHandler().ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(g.RequireSession)
			sessionHandler.RegisterRoutes(r, base)
		})

		r.Group(func(r chi.Router) {
			if cfg.Chat.RequireSession {
				r.Use(g.RequireSession)
			}
			r.Get(base+"/ws/chat", wsHandler.ServeHTTP)
		})

		// Gated static site (catch-all).
		siteHandler := g.Pages(http.StripPrefix(base, web.SiteHandler(site)))
		if base != "" {
			r.Handle(base, http.RedirectHandler(base+"/", http.StatusMovedPermanently))
		}
		r.Handle(base+"/*", siteHandler)
	})

	// Create server.
	// Note: chat sockets stream for as long as the model talks, so no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Start sweeper.
	session.StartSweeper(ctx, repo, targets, cfg.SweepInterval, cfg.RecordRetention, func(context.Context) {
		hub.PruneIdle(cfg.Chat.IdleTimeout)
		g.PruneLimiters(time.Hour)
	})

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		// Wait for shutdown signal.
		<-egCtx.Done()
		stop()

		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := eg.Wait(); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

// loadPools reads the filler pools file, falling back to the built-in pools.
func loadPools(path string) chat.Pools {
	if path == "" {
		return chat.DefaultPools(nil)
	}
	pools, err := chat.LoadPools(path, nil)
	if err != nil {
		slog.Warn("Failed to load chat pools, using built-in messages", "path", path, "error", err)
		return chat.DefaultPools(nil)
	}
	slog.Info("Chat pools loaded", "path", path, "errors", len(pools.Errors.Messages()), "pauses", len(pools.Pauses.Messages()))
	return pools
}

// openRepository picks PostgreSQL when DATABASE_URL is set, an in-process
// store for DB_PATH=:memory:, and SQLite otherwise.
func openRepository(cfg *config.Config) (store.Repository, error) {
	if cfg.DBPath == config.MemoryDBPath {
		slog.Warn("Using in-memory session store, sessions are lost on restart")
		return store.NewMemory(), nil
	}
	if cfg.DatabaseURL != "" {
		slog.Info("Using PostgreSQL session store")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return store.NewPostgres(ctx, cfg.DatabaseURL)
	}
	return store.NewSQLite(cfg.DBPath)
}
