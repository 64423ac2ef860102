// Ryfty Payments Service
//
// This is the main entry point for the payment confirmation service.
// It wires up all dependencies and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ryfty/ryfty-payments/config"
	"github.com/ryfty/ryfty-payments/internal/api"
	"github.com/ryfty/ryfty-payments/internal/domain"
	"github.com/ryfty/ryfty-payments/internal/fees"
	"github.com/ryfty/ryfty-payments/internal/payment"
	"github.com/ryfty/ryfty-payments/internal/platform/draftstore"
	"github.com/ryfty/ryfty-payments/internal/platform/redispubsub"
	"github.com/ryfty/ryfty-payments/internal/platform/ryfty"
	"github.com/ryfty/ryfty-payments/internal/platform/sse"
	"github.com/ryfty/ryfty-payments/internal/wizard"
)

const janitorInterval = time.Minute

func main() {
	// Load configuration
	cfg := config.Load()

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting Ryfty Payments Service...",
		zap.String("port", cfg.Server.Port),
		zap.String("ryfty_url", cfg.Ryfty.BaseURL),
		zap.String("event_source", cfg.Events.Source),
	)

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Configuration error", zap.Error(err))
	}

	// Infrastructure Layer
	redisClient, err := newRedisClient(cfg.Redis)
	if err != nil {
		logger.Fatal("Invalid REDIS_URL", zap.Error(err))
	}
	defer redisClient.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis not reachable, drafts will fail until it is", zap.Error(err))
	}
	cancelPing()

	ryftyClient := ryfty.NewClient(cfg.Ryfty.BaseURL, cfg.Ryfty.Timeout, logger)

	var source domain.EventSource
	switch cfg.Events.Source {
	case config.EventSourceRedis:
		source = redispubsub.NewSource(redisClient, logger)
	default:
		source = sse.NewListener(cfg.Events.StreamURL, cfg.Events.HeaderTimeout, logger)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Service Layer
	paymentService := payment.NewService(
		ryftyClient, // implements domain.PaymentInitiator
		ryftyClient, // implements domain.WithdrawalCreator
		source,
		fees.NewCalculator(cfg.Fees.PlatformRate, cfg.Fees.StrictSchedule),
		payment.NewMetrics(registry),
		logger,
		payment.ServiceConfig{
			Timeout:      cfg.Payments.ConfirmationTimeout,
			SuccessDelay: cfg.Payments.SuccessDelay,
		},
	)
	draftService := wizard.NewService(
		draftstore.New(redisClient, cfg.Payments.DraftTTL),
		ryftyClient, // implements wizard.Submitter
		logger,
	)

	// API Layer
	handler := api.NewHandler(paymentService, draftService, logger)
	router := api.SetupRouter(handler, api.RouterConfig{
		GinMode:       cfg.Server.GinMode,
		AllowedOrigin: cfg.Server.AllowedOrigin,
		Metrics:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go paymentService.RunJanitor(ctx, janitorInterval, cfg.Payments.FlowRetention)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	logger.Info("Shutting down server...")

	// Flows go first so open event relays see their streams end.
	paymentService.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
	logger.Info("Server stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse LOG_LEVEL: %w", err)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(lvl)
	zapConfig.EncoderConfig.TimeKey = "timestamp"
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapConfig.Build()
}

func newRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	return redis.NewClient(opts), nil
}
