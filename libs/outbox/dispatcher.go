package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/nikitakapustkin/bankevents/libs/otelx"
)

// Sender publishes one outbox row to the broker. A send that times out may
// still have reached the broker; the dispatcher retries anyway and leaves
// dedup to the consuming side.
type Sender interface {
	Send(ctx context.Context, rec Record) error
}

type DispatcherConfig struct {
	// BatchSize rows are selected per tick.
	BatchSize int
	// Interval between ticks.
	Interval time.Duration
	// PublishTimeout bounds each individual send.
	PublishTimeout time.Duration
	// MaxAttempts retires a row to FAILED once reached; zero or negative
	// disables the ceiling and retries forever.
	MaxAttempts int
}

const msgMaxAttempts = "Max attempts exceeded"

// Dispatcher drains NEW outbox rows on a fixed tick. Multiple replicas may
// run concurrently against the same table: per-row exclusivity comes solely
// from the store's conditional claim update, so a lost claim is skipped, not
// an error.
type Dispatcher struct {
	store  Store
	sender Sender
	logger *slog.Logger
	cfg    DispatcherConfig
	now    func() time.Time
}

func NewDispatcher(store Store, sender Sender, logger *slog.Logger, cfg DispatcherConfig) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	return &Dispatcher{
		store:  store,
		sender: sender,
		logger: logger,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.tick(ctx); err != nil {
				d.logger.Error("outbox tick failed", "err", err)
			}
		}
	}
}

func (d *Dispatcher) tick(ctx context.Context) error {
	batch, err := d.store.FetchBatch(ctx, d.cfg.BatchSize)
	if err != nil {
		return err
	}

	enforce := d.cfg.MaxAttempts > 0
	for _, rec := range batch {
		claimed, err := d.store.Claim(ctx, rec.ID, d.now())
		if err != nil {
			d.logger.Error("outbox claim failed", "id", rec.ID, "err", err)
			continue
		}
		if !claimed {
			// Another replica won the row.
			continue
		}

		if enforce && rec.Attempts >= d.cfg.MaxAttempts {
			if err := d.store.MarkFailed(ctx, rec.ID, StatusFailed, d.now(), msgMaxAttempts); err != nil {
				d.logger.Error("outbox mark failed errored", "id", rec.ID, "err", err)
				continue
			}
			d.logger.Warn("outbox row moved to FAILED",
				"id", rec.ID, "topic", rec.Topic, "attempts", rec.Attempts)
			continue
		}

		// Publish inside the trace that produced the row.
		msgCtx := otelx.ContextWithTraceContext(ctx, rec.Traceparent, rec.Tracestate)
		sendCtx, cancel := context.WithTimeout(msgCtx, d.cfg.PublishTimeout)
		sendErr := d.sender.Send(sendCtx, rec)
		cancel()

		if sendErr == nil {
			if err := d.store.MarkSent(ctx, rec.ID, d.now()); err != nil {
				d.logger.Error("outbox mark sent errored", "id", rec.ID, "err", err)
			}
			continue
		}

		terminal := enforce && rec.Attempts+1 >= d.cfg.MaxAttempts
		next := StatusNew
		if terminal {
			next = StatusFailed
		}
		if err := d.store.MarkFailed(ctx, rec.ID, next, d.now(), sendErr.Error()); err != nil {
			d.logger.Error("outbox mark failed errored", "id", rec.ID, "err", err)
			continue
		}
		maxAttempts := d.cfg.MaxAttempts
		if !enforce {
			maxAttempts = -1
		}
		d.logger.Warn("outbox publish failed",
			"id", rec.ID,
			"topic", rec.Topic,
			"attempt", rec.Attempts+1,
			"max_attempts", maxAttempts,
			"terminal", terminal,
			"err", sendErr,
		)
	}
	return nil
}
