package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Appender inserts a NEW row on the caller's transaction. Separated from
// Store so producing code depends only on the append side.
type Appender interface {
	Append(ctx context.Context, tx pgx.Tx, rec Record) error
}

// Store is the dispatcher's and cleaner's view of the outbox table. Claim is
// the only concurrency primitive the whole design needs: a conditional update
// that succeeds for exactly one caller.
type Store interface {
	// FetchBatch returns up to limit NEW rows, oldest first.
	FetchBatch(ctx context.Context, limit int) ([]Record, error)
	// Claim flips NEW -> PROCESSING for the row and stamps last_attempt_at.
	// It reports false when another dispatcher already claimed the row.
	Claim(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	// MarkSent finalizes a delivered row: SENT, published_at stamped,
	// last_error cleared.
	MarkSent(ctx context.Context, id uuid.UUID, publishedAt time.Time) error
	// MarkFailed records a failed attempt: attempts+1, last_attempt_at and
	// last_error stamped, status set to next (NEW to requeue, FAILED to
	// retire).
	MarkFailed(ctx context.Context, id uuid.UUID, next Status, now time.Time, lastError string) error
	// DeleteSentBefore purges SENT rows published before cutoff.
	DeleteSentBefore(ctx context.Context, cutoff time.Time) (int64, error)
	// DeleteFailedBefore purges FAILED rows whose last attempt was before cutoff.
	DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
