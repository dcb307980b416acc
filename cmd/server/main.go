package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/testhub-backend/internal/config"
	"github.com/stemsi/testhub-backend/internal/database"
	"github.com/stemsi/testhub-backend/internal/handler"
	"github.com/stemsi/testhub-backend/internal/logger"
	"github.com/stemsi/testhub-backend/internal/repository"
	"github.com/stemsi/testhub-backend/internal/router"
	"github.com/stemsi/testhub-backend/internal/service"
	"github.com/stemsi/testhub-backend/internal/validator"
	"github.com/stemsi/testhub-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, "api")
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting TestHub Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(pool)
	testRepo := repository.NewTestRepository(pool)
	resultRepo := repository.NewTestResultRepository(pool)
	statsRepo := repository.NewStatsRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb, userRepo)
	userService := service.NewUserService(userRepo)
	testService := service.NewTestService(testRepo, rdb, cfg, log)
	attemptService := service.NewAttemptService(rdb, cfg, log)
	resultService := service.NewResultService(testService, resultRepo, userRepo, attemptService, log)
	statsService := service.NewStatsService(statsRepo)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:    handler.NewAuthHandler(authService),
		User:    handler.NewUserHandler(userService),
		Test:    handler.NewTestHandler(testService),
		Attempt: handler.NewAttemptHandler(testService, attemptService),
		Result:  handler.NewResultHandler(resultService),
		Admin:   handler.NewAdminHandler(statsService),
		WS:      handler.NewWSHandler(testService, attemptService, resultService, log, cfg.AllowedOrigins),
		System:  handler.NewSystemHandler(database.NewHealth(pool, rdb)),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})

	autoSubmitWorker := worker.NewAutoSubmitWorker(rdb, resultService, log)
	go func() {
		autoSubmitWorker.Start(workerCtx)
		close(workerDone)
	}()

	sweeper := worker.NewExpirySweeper(attemptService, rdb, resultService, cfg.SweepInterval, log)
	if err := sweeper.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule expiry sweeper")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, rdb, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
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

	// 2. Stop claiming attempts, then let the consumer finish its current payload.
	sweeper.Stop()
	workerCancel()
	select {
	case <-workerDone:
	case <-time.After(5 * time.Second):
		log.Warn().Msg("Auto-submit worker did not stop in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
