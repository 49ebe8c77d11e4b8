// Package main is the entrypoint for the resumix API server.
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

	"github.com/google/uuid"
	"github.com/anupsarkar-dev/resumix/internal/ai"
	"github.com/anupsarkar-dev/resumix/internal/api"
	"github.com/anupsarkar-dev/resumix/internal/api/handler"
	mw "github.com/anupsarkar-dev/resumix/internal/api/middleware"
	"github.com/anupsarkar-dev/resumix/internal/api/response"
	"github.com/anupsarkar-dev/resumix/internal/artifact"
	"github.com/anupsarkar-dev/resumix/internal/cleanup"
	"github.com/anupsarkar-dev/resumix/internal/config"
	"github.com/anupsarkar-dev/resumix/internal/document"
	"github.com/anupsarkar-dev/resumix/internal/prompt"
	"github.com/anupsarkar-dev/resumix/internal/ratelimit"
	"github.com/anupsarkar-dev/resumix/internal/store"
	"github.com/anupsarkar-dev/resumix/internal/task"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Pick the job store: shared Postgres when configured, else in-memory
	var jobStore store.Store
	if cfg.Database.URL != "" {
		pool, err := store.Connect(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()

		if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		jobStore = store.NewPostgresStore(pool)
		slog.Info("database connected, migrations applied")
	} else {
		jobStore = store.NewMemoryStore()
		slog.Info("using in-memory job store")
	}

	// 3. Optional shared rate-limit counter
	var counter ratelimit.Counter
	if cfg.Redis.URL != "" {
		redisCounter, err := ratelimit.NewRedisCounter(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("create redis counter: %w", err)
		}
		defer redisCounter.Close()

		if err := redisCounter.Ping(ctx); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		counter = redisCounter
		slog.Info("redis rate-limit counter connected")
	}

	limiter := ratelimit.New(ratelimit.Options{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		MaxConcurrent:     cfg.RateLimit.MaxConcurrent,
		MaxDelay:          cfg.RateLimit.MaxDelay,
		Counter:           counter,
	})

	// 4. Create AI backend
	completer, err := ai.NewCompleter(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI backend: %w", err)
	}
	slog.Info("AI backend initialized", "provider", completer.Name())

	// 5. Prompt templates and upload artifacts
	registry, err := prompt.Load(cfg.Jobs.PromptsFile)
	if err != nil {
		return fmt.Errorf("load prompts: %w", err)
	}

	artifacts, err := artifact.NewStore(cfg.Uploads.Dir, cfg.Uploads.MaxTotal)
	if err != nil {
		return fmt.Errorf("create artifact store: %w", err)
	}

	// 6. Orchestration core
	mode := ratelimit.ModeBlock
	if cfg.RateLimit.FailFast {
		mode = ratelimit.ModeFailFast
	}
	runner := task.NewRunner(limiter, completer, mode)
	scheduler := task.NewScheduler(jobStore, runner, cfg.Jobs.Stagger, cfg.Jobs.UnitTimeout)
	svc := task.NewService(jobStore, scheduler, registry, document.BasicExtractor{}, artifacts)

	// 7. Retention sweep, independent of request handling
	sweeper := cleanup.New(jobStore, cfg.Jobs.Retention, cfg.Jobs.SweepInterval,
		func(id uuid.UUID) {
			if err := artifacts.Remove(id); err != nil {
				slog.Warn("remove job artifact", "job_id", id, "error", err)
			}
		},
	)
	go sweeper.Run(ctx)
	go pruneArtifacts(ctx, artifacts, cfg.Jobs.SweepInterval)

	// 8. Build router with dependencies
	deps := api.Dependencies{
		Auth: mw.NewAuth(cfg.Auth.KeyHashes),

		HealthHandler: healthHandler(jobStore),
		ExtractSingle: handler.NewExtractSingleHandler(svc, cfg.Uploads.MaxFileBytes),
		ExtractBatch:  handler.NewExtractBatchHandler(svc, cfg.Uploads.MaxFileBytes),
		Classify:      handler.NewClassifyHandler(svc, cfg.Uploads.MaxFileBytes),
		Action:        handler.NewActionHandler(svc, cfg.Uploads.MaxFileBytes),
		JobStatus:     handler.NewJobStatusHandler(jobStore),
		JobResult:     handler.NewJobResultHandler(jobStore),
	}
	router := api.NewRouter(deps)

	// 9. Start HTTP server
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

	slog.Info("server stopped gracefully")
	return nil
}

// pruneArtifacts keeps the upload directory under its byte cap,
// independent of the job retention sweep.
func pruneArtifacts(ctx context.Context, artifacts *artifact.Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			deleted, err := artifacts.PruneToSize()
			if err != nil {
				slog.Warn("prune artifact dir", "error", err)
			} else if deleted > 0 {
				slog.Info("pruned artifact dir", "deleted", deleted)
			}
		case <-ctx.Done():
			return
		}
	}
}

// healthHandler checks job store connectivity.
func healthHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.Ping(r.Context()); err != nil {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"Job store unavailable", nil)
			return
		}
		response.JSON(w, map[string]any{"status": "ok"})
	}
}
