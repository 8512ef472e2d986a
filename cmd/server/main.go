// Command server starts the AI interview evaluator HTTP server.
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

	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/ai/openaigen"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/events/redpanda"
	httpserver "github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/kv/redisstore"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/notify"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/app"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/config"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/service/ratelimiter"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	// Register all Prometheus metrics once per process so that /metrics
	// exposes HTTP, gate, submission and AI instrumentation.
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Infra: DB pool
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		slog.Error("schema bootstrap failed", slog.Any("error", err))
		os.Exit(1)
	}

	// Infra: Redis session store
	rdb, err := redisstore.Connect(cfg.RedisURL)
	if err != nil {
		slog.Error("redis connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = rdb.Close() }()
	kv := redisstore.New(rdb)

	// Repositories
	candRepo := postgres.NewCandidateRepo(pool)
	ivRepo := postgres.NewInterviewRepo(pool)
	resRepo := postgres.NewResultRepo(pool)
	photoRepo := postgres.NewPhotoRepo(pool)

	if cfg.DataRetentionDays > 0 {
		cleanupSvc := postgres.NewCleanupService(pool, cfg.DataRetentionDays)
		go cleanupSvc.RunPeriodic(ctx, cfg.CleanupInterval)
		slog.Info("cleanup service started", slog.Int("retention_days", cfg.DataRetentionDays), slog.Duration("interval", cfg.CleanupInterval))
	}
	go app.NewSessionSweeper(kv, cfg.SessionSweepInterval).Run(ctx)

	// OTP delivery
	var notifier domain.OTPNotifier = notify.LogNotifier{RevealCode: cfg.IsDev() || cfg.IsTest()}
	if cfg.SMTPEnabled() {
		notifier = notify.NewSMTPNotifier(cfg)
		slog.Info("otp delivery via smtp", slog.String("host", cfg.SMTPHost))
	} else {
		slog.Warn("smtp not configured; otp codes are only logged")
	}

	// Result events
	var (
		publisher domain.ResultPublisher = redpanda.NoopPublisher{}
		kafkaPing app.Pinger
	)
	if cfg.EventsEnabled() {
		p, err := redpanda.NewPublisher(ctx, cfg.KafkaBrokers, cfg.ResultEventsTopic)
		if err != nil {
			slog.Error("redpanda publisher connect failed", slog.Any("error", err))
			os.Exit(1)
		}
		defer p.Close()
		publisher, kafkaPing = p, p
	}

	// Feedback enrichment is optional; rules are used when it is off.
	var generator domain.FeedbackGenerator
	if cfg.GeneratorEnabled() {
		generator = openaigen.New(cfg)
		slog.Info("feedback generator enabled", slog.String("model", cfg.OpenAIModel))
	}

	// Usecases
	otpLimiter := ratelimiter.New(rdb, map[string]ratelimiter.BucketConfig{
		usecase.OTPSendBucket: ratelimiter.PerHour(cfg.OTPSendsPerHour),
	})
	gateSvc := usecase.NewGateService(kv, notifier, cfg, usecase.WithOTPLimiter(otpLimiter))
	feedbackSvc := usecase.NewFeedbackService(generator, cfg.FeedbackTimeout)
	resultsSvc := usecase.NewResultsService(candRepo, resRepo)
	submissionSvc := usecase.NewSubmissionService(ivRepo, feedbackSvc, resultsSvc, publisher)
	resultSvc := usecase.NewResultService(candRepo, resRepo)

	checks := app.BuildReadinessChecks(pool, rdb, kafkaPing)
	srv := httpserver.NewServer(cfg, gateSvc, photoRepo, submissionSvc, resultSvc, checks)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
