package outbox

import (
	"context"
	"log/slog"
	"time"
)

type CleanerConfig struct {
	// Retention is how long terminal rows are kept before deletion.
	Retention time.Duration
	// Interval between cleanup passes.
	Interval time.Duration
}

// Cleaner purges terminal rows past the retention window: SENT rows by
// published_at, FAILED rows by last_attempt_at. It never touches NEW or
// PROCESSING rows; that precondition holds because the dispatcher's status
// machine is the only writer of terminal states.
type Cleaner struct {
	store  Store
	logger *slog.Logger
	cfg    CleanerConfig
	now    func() time.Time
}

func NewCleaner(store Store, logger *slog.Logger, cfg CleanerConfig) *Cleaner {
	if cfg.Retention <= 0 {
		cfg.Retention = 7 * 24 * time.Hour
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &Cleaner{
		store:  store,
		logger: logger,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (c *Cleaner) Run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.clean(ctx)
		}
	}
}

func (c *Cleaner) clean(ctx context.Context) {
	cutoff := c.now().Add(-c.cfg.Retention)

	sentDeleted, err := c.store.DeleteSentBefore(ctx, cutoff)
	if err != nil {
		c.logger.Error("outbox cleanup of sent rows failed", "err", err)
		return
	}
	failedDeleted, err := c.store.DeleteFailedBefore(ctx, cutoff)
	if err != nil {
		c.logger.Error("outbox cleanup of failed rows failed", "err", err)
		return
	}
	c.logger.Info("outbox cleanup completed",
		"sent_deleted", sentDeleted,
		"failed_deleted", failedDeleted,
	)
}
