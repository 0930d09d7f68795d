package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nikitakapustkin/bankevents/libs/config"
	"github.com/nikitakapustkin/bankevents/libs/db"
	"github.com/nikitakapustkin/bankevents/libs/httpx"
	"github.com/nikitakapustkin/bankevents/libs/kafkax"
	"github.com/nikitakapustkin/bankevents/libs/otelx"
	"github.com/nikitakapustkin/bankevents/libs/outbox"
	"github.com/nikitakapustkin/bankevents/libs/runtime"
	"github.com/nikitakapustkin/bankevents/services/security-service/internal/users"
)

func main() {
	serviceName := config.String("SERVICE_NAME", "security-service")
	logger := runtime.NewLogger(serviceName)

	ctx, stop := runtime.SignalContext()
	defer stop()

	shutdownTracing, err := otelx.Setup(ctx, otelx.ConfigFromEnv(serviceName))
	if err != nil {
		logger.Error("tracing setup failed", "err", err)
		os.Exit(1)
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(c)
	}()

	databaseURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		logger.Error("config error", "err", err)
		os.Exit(1)
	}
	pool, err := db.Open(ctx, databaseURL)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	brokers := config.String("KAFKA_BROKERS", "kafka:9092")
	store := outbox.NewPGStore(pool)

	var wg sync.WaitGroup

	if config.Bool("OUTBOX_PUBLISHER_ENABLED", true) {
		sender := outbox.NewKafkaSender(kafkax.SplitBrokers(brokers), serviceName)
		defer sender.Close()

		dispatcher := outbox.NewDispatcher(store, sender, logger, outbox.DispatcherConfig{
			BatchSize:      config.Int("OUTBOX_BATCH_SIZE", 100),
			Interval:       config.DurationMs("OUTBOX_INTERVAL_MS", time.Second),
			PublishTimeout: config.DurationMs("OUTBOX_PUBLISH_TIMEOUT_MS", 5*time.Second),
			MaxAttempts:    config.Int("OUTBOX_MAX_ATTEMPTS", 10),
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			dispatcher.Run(ctx)
		}()
	} else {
		logger.Info("outbox publisher disabled")
	}

	cleaner := outbox.NewCleaner(store, logger, outbox.CleanerConfig{
		Retention: time.Duration(config.Int("OUTBOX_RETENTION_DAYS", 7)) * 24 * time.Hour,
		Interval:  config.DurationMs("CLEANUP_INTERVAL_MS", time.Hour),
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		cleaner.Run(ctx)
	}()

	writer := outbox.NewWriter(store)
	repo := users.NewPGRepository(pool, writer, config.String("KAFKA_TOPIC_USER", "user-events"))
	svc := users.NewService(repo)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "postgres", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	users.NewHandler(svc, logger).Register(mux)

	middlewares := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(64 << 10),
		httpx.WithTimeout(15 * time.Second),
	}
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: addr})
		defer redisClient.Close()
		limiter := httpx.NewRedisRateLimiter(redisClient, 30, time.Minute, "security:rl")
		middlewares = append(middlewares, limiter.Middleware(logger, true))
	}
	handler := httpx.Chain(mux, middlewares...)

	port, err := config.Port("PORT", "8082")
	if err != nil {
		logger.Error("config error", "err", err)
		os.Exit(1)
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           otelhttp.NewHandler(handler, "http.server"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "err", err)
	}
	wg.Wait()
	logger.Info("stopped")
}
