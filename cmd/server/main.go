package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/campushire/skillcheck/internal/config"
	"github.com/campushire/skillcheck/internal/database"
	"github.com/campushire/skillcheck/internal/handler"
	"github.com/campushire/skillcheck/internal/logger"
	"github.com/campushire/skillcheck/internal/metrics"
	"github.com/campushire/skillcheck/internal/middleware"
	"github.com/campushire/skillcheck/internal/questiongen"
	"github.com/campushire/skillcheck/internal/repository"
	"github.com/campushire/skillcheck/internal/router"
	"github.com/campushire/skillcheck/internal/service"
	"github.com/campushire/skillcheck/internal/validator"
	"github.com/campushire/skillcheck/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("question_provider", cfg.QuestionProvider).
		Msg("Starting skill verification service")

	// ─── Initialize Validator & Metrics ────────────────────────────────
	validator.Setup()
	metrics.Init()

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

	// ─── Question Provider ─────────────────────────────────────────────
	gen, closeGen, err := questiongen.FromConfig(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize question provider")
	}
	defer closeGen()

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(pool)
	examRepo := repository.NewSkillExamRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	profileRepo := repository.NewProfileRepository(pool)
	eventRepo := repository.NewProctorEventRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	examService := service.NewExamService(userRepo, examRepo, gen, rdb, service.ExamDefaultsFromConfig(cfg), log)
	sessions := service.NewSessionRegistry(rdb, cfg.AbandonGrace)
	scoringService := service.NewScoringService(userRepo, examService, attemptRepo, sessions, log)
	proctorService := service.NewProctorService(rdb, examService, sessions, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Exam:    handler.NewExamHandler(examService, scoringService, log),
		Profile: handler.NewProfileHandler(profileRepo, log),
		WS:      handler.NewWSHandler(proctorService, log, cfg.AllowedOrigins),
		System: handler.NewSystemHandler(map[string]handler.Check{
			"postgres": pool.Ping,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	eventWorker := worker.NewProctorEventWorker(eventRepo, rdb, log)
	abandonWorker := worker.NewAbandonWorker(sessions, scoringService, cfg.SweepInterval, log)
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)

	for _, start := range []func(context.Context){
		eventWorker.Start,
		abandonWorker.Start,
		func(ctx context.Context) { limiter.Cleanup(ctx, time.Minute) },
	} {
		workers.Add(1)
		go func() {
			defer workers.Done()
			start(workerCtx)
		}()
	}

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load stored exams into Redis before accepting traffic.
	if _, err := examService.PrewarmCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, limiter, handlers, cfg, log)

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

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers; the event worker flushes its last batch.
	workerCancel()
	done := make(chan struct{})
	go func() {
		workers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn().Msg("Workers did not stop before the shutdown deadline")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
