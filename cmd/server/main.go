package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"kidspark/internal/api"
	"kidspark/internal/booking"
	"kidspark/internal/cache"
	"kidspark/internal/config"
	"kidspark/internal/database"
	"kidspark/internal/metrics"
	"kidspark/internal/ratelimit"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("KIDSPARK_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if cfg.Auth.JWTSecret == "" {
		logger.Fatal().Msg("set auth.jwt_secret in config")
	}

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	var rdb *redis.Client
	var availCache *cache.AvailabilityCache
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		availCache = cache.New(rdb, cfg.CacheTTL(), &logger)
	}

	rules := booking.DefaultRules()
	rules.GraceWindow = cfg.GraceWindow()
	if cfg.Booking.MaxAttempts > 0 {
		rules.MaxAttempts = cfg.Booking.MaxAttempts
	}
	if cfg.Booking.RetryBackoffMs > 0 {
		rules.RetryBackoff = time.Duration(cfg.Booking.RetryBackoffMs) * time.Millisecond
	}
	if cfg.Booking.AttemptTimeoutMs > 0 {
		rules.AttemptTimeout = time.Duration(cfg.Booking.AttemptTimeoutMs) * time.Millisecond
	}
	if len(cfg.Booking.RequireReference) > 0 {
		rules.RequireReference = cfg.Booking.RequireReference
	}

	guard := booking.NewGuard(db, rules, &logger)
	limiter := ratelimit.New(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := booking.NewSweeper(db, rules.GraceWindow, cfg.SweepInterval(), &logger)
	go sweeper.Run(ctx)

	if cfg.Backup.Enabled {
		dir := cfg.Backup.Dir
		if dir == "" {
			dir = "data/backups"
		}
		backup := database.NewBackupService(db, dir, cfg.BackupInterval(), cfg.BackupRetention(), &logger)
		go backup.Run(ctx)
	}

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	srv := api.NewServer(db, guard, availCache, limiter, cfg.Auth.JWTSecret, &logger)
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error().Err(err).Msg("server shutdown error")
		}
		if rdb != nil {
			_ = rdb.Close()
		}
	}()

	logger.Info().Int("port", cfg.Server.Port).Msg("booking service started")
	if err := srv.Start(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
