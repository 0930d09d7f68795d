package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nikitakapustkin/bankevents/libs/config"
	"github.com/nikitakapustkin/bankevents/libs/db"
	"github.com/nikitakapustkin/bankevents/libs/httpx"
	"github.com/nikitakapustkin/bankevents/libs/kafkax"
	"github.com/nikitakapustkin/bankevents/libs/otelx"
	"github.com/nikitakapustkin/bankevents/libs/runtime"
	"github.com/nikitakapustkin/bankevents/services/storage-service/internal/eventstore"
	"github.com/nikitakapustkin/bankevents/services/storage-service/internal/handlers"
	"github.com/nikitakapustkin/bankevents/services/storage-service/internal/ingest"
	"github.com/nikitakapustkin/bankevents/services/storage-service/internal/query"
)

func main() {
	serviceName := config.String("SERVICE_NAME", "storage-service")
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

	redisClient := redis.NewClient(&redis.Options{Addr: config.String("REDIS_ADDR", "redis:6379")})
	defer redisClient.Close()

	brokers := config.String("KAFKA_BROKERS", "kafka:9092")
	groupID := config.String("KAFKA_GROUP_ID", "storage-service")
	backoff := config.DurationMs("CONSUMER_BACKOFF_MS", time.Second)
	maxRetries := config.Int("CONSUMER_MAX_RETRIES", 3)
	dltSuffix := config.String("CONSUMER_DLT_SUFFIX", ".dlt")

	users := eventstore.NewUserEventStore(pool)
	accounts := eventstore.NewAccountEventStore(pool)
	transactions := eventstore.NewTransactionEventStore(pool)
	ingestSvc := ingest.NewService(users, accounts, transactions, logger)

	consumerFor := func(topic string, handle func(context.Context, []byte) error) *kafkax.Consumer {
		return kafkax.NewConsumer(logger, kafkax.ConsumerConfig{
			Brokers:    brokers,
			GroupID:    groupID,
			Topic:      topic,
			Backoff:    backoff,
			MaxRetries: maxRetries,
			DLTSuffix:  dltSuffix,
		}, func(ctx context.Context, msg kafka.Message) error {
			return handle(ctx, msg.Value)
		})
	}

	consumers := []*kafkax.Consumer{
		consumerFor(config.String("KAFKA_TOPIC_USER", "user-events"), ingestSvc.ConsumeUserEvent),
		consumerFor(config.String("KAFKA_TOPIC_ACCOUNT", "account-events"), ingestSvc.ConsumeAccountEvent),
		consumerFor(config.String("KAFKA_TOPIC_TRANSACTION", "transaction-events"), ingestSvc.ConsumeTransactionEvent),
	}

	var wg sync.WaitGroup
	for _, c := range consumers {
		wg.Add(1)
		go func(c *kafkax.Consumer) {
			defer wg.Done()
			c.Run(ctx)
		}(c)
	}

	querySvc := query.NewService(users, accounts, transactions)
	cacheTTL := config.DurationMs("EVENTS_CACHE_TTL_MS", 30*time.Second)
	cached := query.NewCachedService(querySvc, redisClient, cacheTTL, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "postgres", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
		runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}},
	)
	handlers.NewEventsHandler(cached, logger).Register(mux)

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(15*time.Second),
	)

	port, err := config.Port("PORT", "8083")
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
