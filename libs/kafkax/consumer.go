package kafkax

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Handler func(ctx context.Context, msg kafka.Message) error

// FatalError wraps handler failures that must not be retried, such as an
// envelope that cannot be parsed. The message goes straight to the dead-letter
// topic.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }

func (e *FatalError) Unwrap() error { return e.Err }

func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

type ConsumerConfig struct {
	Brokers    string
	GroupID    string
	Topic      string
	Backoff    time.Duration
	MaxRetries int
	DLTSuffix  string
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Consumer drains one topic within a consumer group. Handler errors are
// retried in place with a fixed backoff; once the retry budget is exhausted
// (or immediately for fatal errors) the message is forwarded to
// <topic><DLTSuffix> and consumption moves on.
type Consumer struct {
	reader     messageReader
	dlt        messageWriter
	logger     *slog.Logger
	topic      string
	backoff    time.Duration
	maxRetries int
	dltSuffix  string
	handler    Handler
}

func NewConsumer(logger *slog.Logger, cfg ConsumerConfig, handler Handler) *Consumer {
	brokers := SplitBrokers(cfg.Brokers)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	dlt := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.Hash{},
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.DLTSuffix == "" {
		cfg.DLTSuffix = ".dlt"
	}
	return &Consumer{
		reader:     reader,
		dlt:        dlt,
		logger:     logger,
		topic:      cfg.Topic,
		backoff:    cfg.Backoff,
		maxRetries: cfg.MaxRetries,
		dltSuffix:  cfg.DLTSuffix,
		handler:    handler,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()
	defer func() {
		if closer, ok := c.dlt.(io.Closer); ok {
			_ = closer.Close()
		}
	}()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "topic", c.topic, "err", err)
			time.Sleep(time.Second)
			continue
		}

		ctxMsg := ExtractTraceContext(ctx, msg)
		ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
			trace.WithAttributes(
				attribute.String("messaging.system", "kafka"),
				attribute.String("messaging.destination", msg.Topic),
			),
		)
		if err := c.process(ctxSpan, msg); err != nil {
			span.RecordError(err)
		}
		span.End()

		if ctx.Err() != nil {
			return
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	meta := ExtractEventMeta(msg)

	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = c.handler(ctx, msg)
		if lastErr == nil {
			return nil
		}
		if IsFatal(lastErr) || attempt >= c.maxRetries {
			break
		}
		c.logger.Warn("handler failed, retrying",
			"topic", msg.Topic,
			"event_id", meta.EventID,
			"attempt", attempt+1,
			"err", lastErr,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff):
		}
	}

	c.logger.Error("handler exhausted retries, dead-lettering",
		"topic", msg.Topic,
		"event_id", meta.EventID,
		"err", lastErr,
	)
	if err := c.deadLetter(ctx, msg, lastErr); err != nil {
		c.logger.Error("dead-letter publish failed", "topic", msg.Topic, "err", err)
		return fmt.Errorf("dead-letter publish: %w", err)
	}
	return lastErr
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, cause error) error {
	headers := append([]kafka.Header(nil), msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: "dlt-origin-topic", Value: []byte(msg.Topic)},
		kafka.Header{Key: "dlt-error", Value: []byte(truncate(cause.Error(), 500))},
	)
	return c.dlt.WriteMessages(ctx, kafka.Message{
		Topic:   msg.Topic + c.dltSuffix,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	})
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
