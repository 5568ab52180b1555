package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"medsched/internal/api"
	"medsched/internal/config"
	"medsched/internal/drafts"
	"medsched/internal/flow"
	"medsched/internal/metrics"
	"medsched/internal/storeapi"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	// .env is optional; real deployments set env vars directly.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("MEDSCHED_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if cfg.StoreAPI.BaseURL == "" {
		logger.Fatal().Msg("set store_api.base_url in config")
	}

	draftDB, err := drafts.NewDB(cfg.Drafts.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open drafts db error")
	}
	defer draftDB.Close()

	client := storeapi.NewClient(cfg.StoreAPI.BaseURL, cfg.StoreAPI.APIKey)
	if cfg.StoreAPI.RateLimitRPS > 0 {
		client.UseRateLimit(cfg.StoreAPI.RateLimitRPS, cfg.StoreAPI.RateLimitBurst)
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled && cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		client.UseRedisCache(rdb, cfg.CacheTTL())
	}

	sessions := flow.NewSessionStore(cfg.SessionTimeout())
	ctrl := flow.NewController(client, draftDB, sessions, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := ctrl.LoadDurations(ctx); err != nil {
		// The store may come up after us; handlers reload on demand.
		logger.Warn().Err(err).Msg("duration options not loaded at startup")
	}

	go startCleanupLoop(ctx, sessions, draftDB, cfg.DraftRetention(), &logger)

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8091
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, draftDB, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	dayGrid := api.DayGridConfig{
		StartHour:   cfg.DayView.StartHour,
		EndHour:     cfg.DayView.EndHour,
		StepMinutes: cfg.DayView.StepMinutes,
	}
	server := api.NewHTTPServer(ctrl, client, dayGrid, &logger)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.Routes(),
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	logger.Info().Int("port", cfg.Server.Port).Msg("scheduler API started")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("api server error")
	}
}

// startCleanupLoop drops expired sessions and stale drafts on a fixed tick.
func startCleanupLoop(ctx context.Context, sessions *flow.SessionStore, draftDB *drafts.DB, retention time.Duration, logger *zerolog.Logger) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := sessions.Cleanup(); removed > 0 {
				logger.Info().Int("removed", removed).Msg("expired sessions cleaned up")
			}
			removed, err := draftDB.CleanupStale(ctx, retention)
			if err != nil {
				logger.Error().Err(err).Msg("draft cleanup failed")
			} else if removed > 0 {
				logger.Info().Int64("removed", removed).Msg("stale drafts cleaned up")
			}
		case <-ctx.Done():
			return
		}
	}
}

func startHealthServer(ctx context.Context, port int, draftDB *drafts.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := draftDB.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
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
