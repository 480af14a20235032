package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/fastexam/exam-portal/internal/backend"
	"github.com/fastexam/exam-portal/internal/config"
	"github.com/fastexam/exam-portal/internal/credstore"
	"github.com/fastexam/exam-portal/internal/database"
	"github.com/fastexam/exam-portal/internal/exam"
	"github.com/fastexam/exam-portal/internal/handler"
	"github.com/fastexam/exam-portal/internal/logger"
	"github.com/fastexam/exam-portal/internal/router"
	"github.com/fastexam/exam-portal/internal/validator"
	"github.com/fastexam/exam-portal/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("backend", cfg.BackendBaseURL).
		Msg("Starting Exam Portal")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Credential Store & Autosave Queue ─────────────────────────────
	// Redis backs both when configured; otherwise in-memory fallbacks keep
	// a single-instance dev setup working without extra services.
	var store credstore.Store
	var queue worker.Queue

	if cfg.RedisURL != "" {
		rdb, err := database.NewRedisClient(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()

		redisStore, err := credstore.NewRedis(rdb, cfg.CredentialSealKey, cfg.CredentialTTL)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid credential seal key")
		}
		store = redisStore
		queue = worker.NewRedisQueue(rdb)
	} else {
		log.Warn().Msg("No REDIS_URL configured, using in-memory credential store and autosave queue")
		store = credstore.NewMemory()
		queue = worker.NewMemoryQueue()
	}

	// ─── Exam API Client ───────────────────────────────────────────────
	api := backend.NewClient(cfg.BackendBaseURL, store, cfg.BackendTimeout, cfg.RefreshWindow, log)

	// ─── Session Manager ───────────────────────────────────────────────
	saver := worker.NewQueueSaver(queue, log)
	manager := exam.NewManager(exam.RealClock, cfg.ExamDuration, saver, log)

	// ─── Start Autosave Worker ─────────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	autosaveWorker := worker.NewAutosaveWorker(queue, api, log)
	go autosaveWorker.Start(workerCtx)

	// ─── Initialize Handlers ───────────────────────────────────────────
	handlers := &router.Handlers{
		Pages: handler.NewPageHandler(store, log),
		Auth:  handler.NewAuthHandler(api, log),
		Exam:  handler.NewExamHandler(api, manager, log),
		WS:    handler.NewWSHandler(manager, log, cfg.AllowedOrigins),
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the autosave worker and let it drain its queue.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow the worker to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
