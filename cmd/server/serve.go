package main

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

	"github.com/kiranshivaraju/resumatch/internal/ai"
	"github.com/kiranshivaraju/resumatch/internal/api"
	"github.com/kiranshivaraju/resumatch/internal/api/handler"
	mw "github.com/kiranshivaraju/resumatch/internal/api/middleware"
	"github.com/kiranshivaraju/resumatch/internal/api/response"
	"github.com/kiranshivaraju/resumatch/internal/cache"
	"github.com/kiranshivaraju/resumatch/internal/config"
	"github.com/kiranshivaraju/resumatch/internal/jobs"
	"github.com/kiranshivaraju/resumatch/internal/scrape"
	"github.com/kiranshivaraju/resumatch/internal/secret"
	"github.com/kiranshivaraju/resumatch/internal/store"
	"go.opentelemetry.io/otel"
)

const shutdownTimeout = 30 * time.Second

func run(parent context.Context, opts *rootOptions) error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)
	logger.Info("config loaded",
		"env", cfg.Server.Env,
		"auth_enabled", len(cfg.Auth.APIKeyHashes) > 0,
		"scheduler_interval", cfg.Scheduler.Interval.String())

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	logger.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, opts.migrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("redis connected")

	// 5. Domain services
	pgStore := store.NewPostgresStore(pool)

	sealer, err := secret.NewSealer(cfg.Secret.CredentialKey)
	if err != nil {
		return fmt.Errorf("create credential sealer: %w", err)
	}

	resolver := scrape.NewResolver(scrape.Options{
		Timeout:      cfg.Scrape.Timeout,
		MaxBodyBytes: cfg.Scrape.MaxBodyBytes,
		CacheTTL:     cfg.Scrape.CacheTTL,

		AllowPrivateNetworks: cfg.Scrape.AllowPrivateNetworks,
	}, redisCache, logger.With("component", "scrape"))

	gateway := ai.NewGatewayFromConfig(cfg.AI, logger.With("component", "ai"))

	svc := jobs.NewService(pgStore, redisCache, resolver, sealer, cfg.Scrape.PrefetchTimeout,
		logger.With("component", "intake"))

	// 6. Start the scheduler
	sched := jobs.NewScheduler(jobs.SchedulerDeps{
		Store:     pgStore,
		Cache:     redisCache,
		Resolver:  resolver,
		Gateway:   gateway,
		Sealer:    sealer,
		Telemetry: jobs.NewTelemetry(otel.GetMeterProvider(), otel.GetTracerProvider()),
		Logger:    logger.With("component", "scheduler"),
	}, jobs.SchedulerOptions{
		Interval:   cfg.Scheduler.Interval,
		StaleAfter: cfg.Scheduler.StaleAfter,
		BatchSize:  cfg.Scheduler.BatchSize,
	})

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		_ = sched.Run(ctx)
	}()

	// 7. Build router with dependencies
	deps := api.Dependencies{
		Auth:      mw.NewAuth(cfg.Auth.APIKeyHashes),
		RateLimit: mw.NewRateLimit(redisCache, cfg.Auth.RateLimitPerMinute),

		HealthHandler: healthHandler(pgStore, redisCache),

		UploadResume: handler.NewUploadResumeHandler(pgStore, cfg.Server.MaxUploadBytes),
		ListResumes:  handler.NewListResumesHandler(pgStore),
		GetResume:    handler.NewGetResumeHandler(pgStore),

		SubmitAnalysis:     handler.NewSubmitAnalysisHandler(svc),
		GetAnalysis:        handler.NewGetAnalysisHandler(svc),
		AnalysisStatus:     handler.NewAnalysisStatusHandler(svc),
		ListResumeAnalyses: handler.NewListResumeAnalysesHandler(svc),
	}
	if !deps.Auth.Enabled() {
		logger.Warn("API_KEY_HASHES is empty, API authentication is disabled")
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	var serveErr error
	select {
	case err := <-errCh:
		serveErr = fmt.Errorf("server error: %w", err)
		stop()
	case <-ctx.Done():
		logger.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Join(serveErr, fmt.Errorf("server shutdown: %w", err))
	}

	// The scheduler finishes its current job before returning.
	select {
	case <-schedDone:
	case <-shutdownCtx.Done():
		logger.Warn("scheduler did not stop before shutdown timeout")
	}

	if serveErr != nil {
		return serveErr
	}
	logger.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
