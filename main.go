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

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/seo-optimizer/metachecker/analyzer"
	"github.com/seo-optimizer/metachecker/api"
	"github.com/seo-optimizer/metachecker/config"
	"github.com/seo-optimizer/metachecker/fetcher"
	"github.com/seo-optimizer/metachecker/logging"
	"github.com/seo-optimizer/metachecker/metrics"
	"github.com/seo-optimizer/metachecker/middleware"
	"github.com/seo-optimizer/metachecker/stats"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "metachecker: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	gin.SetMode(cfg.Server.GinMode)

	usage, err := stats.NewStorage(cfg.Stats.DataDir, logger)
	if err != nil {
		return fmt.Errorf("failed to open usage statistics: %w", err)
	}
	usage.Cleanup(cfg.Stats.RetainMonths)
	tracker := stats.NewTracker(cfg.Stats.DataDir, logger)

	rateLimiter, closeStore, err := newRateLimiter(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var collector *metrics.Collector
	opts := []analyzer.Option{analyzer.WithUsageCounter(usage)}
	if cfg.Metrics.Enabled {
		collector = metrics.New(metrics.DefaultNamespace, logger)
		opts = append(opts, analyzer.WithRecorder(collector))
	}

	pageFetcher := fetcher.New(fetcher.Config{
		Timeout:           cfg.Fetch.Timeout,
		MaxBodyBytes:      cfg.Fetch.MaxBodyBytes,
		MaxRedirects:      cfg.Fetch.MaxRedirects,
		UserAgent:         cfg.Fetch.UserAgent,
		AllowPrivateHosts: cfg.Fetch.AllowPrivateHosts,
	}, logger)

	router := api.NewRouter(api.Options{
		Analyzer:    analyzer.New(pageFetcher, logger, opts...),
		Tracker:     tracker,
		Usage:       usage,
		RateLimiter: rateLimiter,
		Metrics:     collector,
		MetricsPath: cfg.Metrics.Path,
		DevMode:     cfg.Server.DevMode,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting",
			zap.String("addr", "http://localhost:"+cfg.Server.Port),
			zap.Bool("dev_mode", cfg.Server.DevMode),
			zap.Bool("metrics", cfg.Metrics.Enabled))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-quit:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown did not complete", zap.Error(err))
	}

	if err := tracker.Save(); err != nil {
		logger.Error("Failed to save request statistics", zap.Error(err))
	}
	if err := usage.Shutdown(); err != nil {
		logger.Error("Failed to flush usage statistics", zap.Error(err))
	}

	logger.Info("Server stopped")
	return nil
}

// newRateLimiter uses Redis when configured so that instances share buckets
func newRateLimiter(cfg *config.Config, logger *zap.Logger) (*middleware.RateLimiter, func(), error) {
	if cfg.Redis.Addr == "" {
		store := middleware.NewMemoryStore(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		return middleware.NewRateLimiter(store, logger), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Debug("Redis rate limit store connected",
		zap.String("addr", cfg.Redis.Addr),
		zap.Int("db", cfg.Redis.DB))

	store := middleware.NewRedisStore(client, cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	return middleware.NewRateLimiter(store, logger), func() { client.Close() }, nil
}
