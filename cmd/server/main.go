// Package main is the entrypoint for the genqueue API server.
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

	"github.com/kiranshivaraju/genqueue/internal/api"
	"github.com/kiranshivaraju/genqueue/internal/api/handler"
	"github.com/kiranshivaraju/genqueue/internal/archive"
	"github.com/kiranshivaraju/genqueue/internal/config"
	"github.com/kiranshivaraju/genqueue/internal/generator"
	"github.com/kiranshivaraju/genqueue/internal/scheduler"
	"github.com/kiranshivaraju/genqueue/internal/store"
	"github.com/kiranshivaraju/genqueue/pkg/models"
)

const shutdownTimeout = 30 * time.Second

var logLevel = new(slog.LevelVar)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, failing fast on invalid values
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logLevel.Set(cfg.Server.LogLevel)
	slog.Info("config loaded",
		"env", cfg.Server.Env,
		"store", cfg.Store.Backend,
		"generator", cfg.Generator.Kind,
		"retention", cfg.Store.Retention.String(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Job store
	jobStore, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// 3. Optional archive
	jobArchive, closeArchive, err := openArchive(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeArchive()

	// 4. Generator
	gen, err := generator.New(cfg.Generator)
	if err != nil {
		return fmt.Errorf("create generator: %w", err)
	}
	slog.Info("generator initialized", "generator", gen.Name())

	// 5. Scheduler
	sched := scheduler.New(jobStore, gen,
		scheduler.WithTimeout(cfg.Generator.Timeout),
		scheduler.WithRecorder(jobArchive),
		scheduler.WithDefaultModel(cfg.Generator.DefaultModel),
	)

	// 6. Build router with dependencies
	deps := api.Dependencies{
		GenerateHandler: handler.NewGenerateHandler(sched),
		StatusHandler:   handler.NewStatusHandler(jobStore, sched),
		QueueHandler:    handler.NewQueueHandler(sched),
		HealthHandler: handler.NewHealthHandler(sched,
			healthChecks(jobStore, cfg.Database.URL != "", jobArchive, gen), time.Now),
		HistoryHandler: handler.NewHistoryHandler(jobArchive),
	}

	router := api.NewRouter(deps)

	// 7. Start HTTP server
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
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := sched.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("scheduler shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// openStore builds the configured job store. The in-memory store gets a
// background sweeper bound to ctx.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.Store.Backend {
	case config.StoreBackendRedis:
		rs, err := store.NewRedisStore(cfg.Redis.URL, cfg.Store.Retention)
		if err != nil {
			return nil, nil, fmt.Errorf("create redis store: %w", err)
		}
		if err := rs.Ping(ctx); err != nil {
			rs.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		slog.Info("redis connected")
		return rs, func() { rs.Close() }, nil
	default:
		ms := store.NewMemoryStore(cfg.Store.Retention)
		go ms.Run(ctx, cfg.Store.SweepInterval)
		return ms, func() {}, nil
	}
}

// openArchive connects the Postgres job archive when DATABASE_URL is set and
// falls back to a no-op archive otherwise.
func openArchive(ctx context.Context, cfg config.DatabaseConfig) (archive.Archive, func(), error) {
	if cfg.URL == "" {
		slog.Info("job archive disabled")
		return archive.Noop{}, func() {}, nil
	}

	pool, err := archive.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	slog.Info("database connected")

	if err := archive.RunMigrations(cfg.URL, cfg.MigrationsDir); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	return archive.NewPostgresArchive(pool), pool.Close, nil
}

// readier is implemented by generators that can report backend readiness.
type readier interface {
	Ready(ctx context.Context) error
}

// healthChecks lists the probes GET /health runs.
func healthChecks(st store.Store, archiveEnabled bool, arch archive.Archive, gen models.Generator) map[string]handler.Check {
	checks := map[string]handler.Check{
		"store": st.Ping,
	}
	if archiveEnabled {
		checks["database"] = arch.Ping
	}
	if r, ok := gen.(readier); ok {
		checks["generator"] = r.Ready
	}
	return checks
}
