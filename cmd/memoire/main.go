// Memoire server — long-term memory engine for conversational agents.
// Runs the HTTP API, the background worker pool, and the cron scheduler in
// one process.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/rajat1299/memoire/pkg/api"
	"github.com/rajat1299/memoire/pkg/config"
	"github.com/rajat1299/memoire/pkg/consolidate"
	"github.com/rajat1299/memoire/pkg/database"
	"github.com/rajat1299/memoire/pkg/extraction"
	"github.com/rajat1299/memoire/pkg/llm"
	"github.com/rajat1299/memoire/pkg/metrics"
	"github.com/rajat1299/memoire/pkg/models"
	"github.com/rajat1299/memoire/pkg/queue"
	"github.com/rajat1299/memoire/pkg/ratelimit"
	"github.com/rajat1299/memoire/pkg/recall"
	"github.com/rajat1299/memoire/pkg/services"
	"github.com/rajat1299/memoire/pkg/store"
	"github.com/rajat1299/memoire/pkg/version"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	slog.Info("Starting memoire", "version", version.Full(),
		"provider", cfg.LLMProvider, "http_port", cfg.HTTPPort)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database (runs migrations).
	dbClient, err := database.NewClient(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbClient.Close()
	slog.Info("Connected to PostgreSQL, schema up to date")

	// Queue pool: shares the main pool unless QUEUE_URL points elsewhere.
	queuePool := dbClient.Pool()
	if cfg.QueueDSN() != cfg.DatabaseURL {
		queuePool, err = database.NewPool(ctx, cfg.QueueDSN())
		if err != nil {
			log.Fatalf("Failed to connect to queue database: %v", err)
		}
		defer queuePool.Close()
	}

	st := store.New(dbClient.Pool())
	jobQueue := queue.New(queuePool)

	// LLM gateway: one provider for the process lifetime.
	gateway, err := llm.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize LLM gateway: %v", err)
	}

	// Background workers.
	extractor := extraction.NewWorker(st, gateway, &cfg.Facts)
	consolidator := consolidate.NewConsolidator(st, gateway, &cfg.Facts, nil)
	optimizer := consolidate.NewOptimizer(st, gateway)
	decayWorker := consolidate.NewDecayWorker(st, nil)
	sweeper := consolidate.NewSweeper(st, jobQueue, nil)

	handlers := map[models.JobKind]queue.HandlerFunc{
		models.JobExtractFacts:     instrumented(models.JobExtractFacts, extractor.HandleJob),
		models.JobConsolidateUser:  instrumented(models.JobConsolidateUser, consolidator.HandleJob),
		models.JobOptimizeUser:     instrumented(models.JobOptimizeUser, optimizer.HandleJob),
		models.JobDecayStale:       instrumented(models.JobDecayStale, decayWorker.HandleJob),
		models.JobConsolidateSweep: instrumented(models.JobConsolidateSweep, sweeper.HandleConsolidateSweep),
		models.JobOptimizeSweep:    instrumented(models.JobOptimizeSweep, sweeper.HandleOptimizeSweep),
	}

	workerPool := queue.NewWorkerPool(jobQueue, &cfg.Queue, handlers)
	workerPool.Start(ctx)

	scheduler := queue.NewScheduler(jobQueue, queue.DefaultSchedule)
	scheduler.Start(ctx)

	// Services and HTTP surface.
	authorizer := services.NewAuthorizer(st, ratelimit.New(cfg.RateLimitPerMin, nil))
	recallEngine := recall.NewEngine(st, gateway, &cfg.Recall, nil)

	server := api.NewServer(
		cfg,
		dbClient,
		authorizer,
		services.NewUserService(st),
		services.NewSessionService(st, st),
		services.NewIngestionService(st, jobQueue),
		services.NewFactService(st, jobQueue),
		services.NewRecallService(recallEngine, &cfg.Recall),
		workerPool,
	)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", ":"+cfg.HTTPPort)
		serverErr <- server.Start(":" + cfg.HTTPPort)
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	}

	// Graceful shutdown: stop taking requests, then drain workers.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Queue.GracefulShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}
	scheduler.Stop()
	workerPool.Stop()
	slog.Info("Shutdown complete")
}

// instrumented wraps a job handler with the jobs-processed counter.
func instrumented(kind models.JobKind, handler queue.HandlerFunc) queue.HandlerFunc {
	return func(ctx context.Context, job *models.Job) error {
		err := handler(ctx, job)
		status := "completed"
		switch {
		case err == nil:
		case errors.As(err, new(*queue.RetryError)):
			status = "retried"
		default:
			status = "failed"
		}
		metrics.JobCount.WithLabelValues(string(kind), status).Inc()
		if kind == models.JobExtractFacts {
			metrics.ExtractionCount.WithLabelValues(status).Inc()
		}
		return err
	}
}
