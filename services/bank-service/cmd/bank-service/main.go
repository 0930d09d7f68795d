package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nikitakapustkin/bankevents/libs/config"
	"github.com/nikitakapustkin/bankevents/libs/db"
	"github.com/nikitakapustkin/bankevents/libs/httpx"
	"github.com/nikitakapustkin/bankevents/libs/kafkax"
	"github.com/nikitakapustkin/bankevents/libs/otelx"
	"github.com/nikitakapustkin/bankevents/libs/outbox"
	"github.com/nikitakapustkin/bankevents/libs/runtime"
	"github.com/nikitakapustkin/bankevents/services/bank-service/internal/userimport"
)

func main() {
	serviceName := config.String("SERVICE_NAME", "bank-service")
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

	var allowedProducers []string
	if v := config.String("USER_EVENT_ALLOWED_PRODUCERS", ""); v != "" {
		allowedProducers = strings.Split(v, ",")
	}
	importer := userimport.NewImporter(userimport.NewPGStore(pool), allowedProducers, logger)

	consumer := kafkax.NewConsumer(logger, kafkax.ConsumerConfig{
		Brokers:    brokers,
		GroupID:    config.String("KAFKA_GROUP_ID", "bank-service"),
		Topic:      config.String("KAFKA_TOPIC_USER", "user-events"),
		Backoff:    config.DurationMs("CONSUMER_BACKOFF_MS", time.Second),
		MaxRetries: config.Int("CONSUMER_MAX_RETRIES", 3),
		DLTSuffix:  config.String("CONSUMER_DLT_SUFFIX", ".dlt"),
	}, func(ctx context.Context, msg kafka.Message) error {
		return importer.Consume(ctx, msg.Value)
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		consumer.Run(ctx)
	}()

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "postgres", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)

	port, err := config.Port("PORT", "8081")
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
