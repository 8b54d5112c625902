package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/examvault/internal/anomaly"
	"github.com/stemsi/examvault/internal/config"
	"github.com/stemsi/examvault/internal/cryptoenv"
	"github.com/stemsi/examvault/internal/database"
	"github.com/stemsi/examvault/internal/handler"
	"github.com/stemsi/examvault/internal/license"
	"github.com/stemsi/examvault/internal/logger"
	"github.com/stemsi/examvault/internal/offline"
	"github.com/stemsi/examvault/internal/repository"
	"github.com/stemsi/examvault/internal/router"
	"github.com/stemsi/examvault/internal/seal"
	"github.com/stemsi/examvault/internal/service"
	"github.com/stemsi/examvault/internal/submission"
	"github.com/stemsi/examvault/internal/validator"
	"github.com/stemsi/examvault/internal/worker"
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
		Msg("Starting ExamVault Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Load Cryptographic Material ───────────────────────────────────
	keys, err := cryptoenv.LoadKeyPair(cfg.PrivateKeyPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.PrivateKeyPath).Msg("Failed to load signing key pair")
	}
	licenseKey, err := cfg.LicenseKey()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid LICENSE_SECRET")
	}
	licenseCodec, err := license.NewCodec(licenseKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize license codec")
	}

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
	studentRepo := repository.NewStudentRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	subRepo := repository.NewAnalyzedSubmissionRepository(pool)

	// ─── Initialize Pipeline Components ────────────────────────────────
	assembler := offline.NewAssembler(keys, licenseCodec, log)
	unsealer := seal.NewUnsealer(keys, log)
	detector := anomaly.NewDetector(anomaly.DefaultWeights, cfg.AutosaveInterval, log)
	combiner := submission.NewCombiner(log)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb)
	packageService := service.NewPackageService(examRepo, questionRepo, assembler, log)
	submissionService := service.NewSubmissionService(
		subRepo, examRepo, questionRepo,
		unsealer, detector, combiner,
		rdb, log,
	)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:       handler.NewAuthHandler(authService, studentRepo),
		Package:    handler.NewPackageHandler(packageService),
		Submission: handler.NewSubmissionHandler(submissionService, cfg.MaxUploadBytes),
		Monitor:    handler.NewMonitorHandler(rdb, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	analysisWorker := worker.NewAnalysisWorker(subRepo, rdb, log)
	go analysisWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

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

	// 2. Stop the persistence worker and let its queue drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
