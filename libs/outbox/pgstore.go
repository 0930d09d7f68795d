package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/nikitakapustkin/bankevents/libs/db"
)

// PGStore keeps outbox rows in the outbox_events table. All mutations are
// single-row statements, so no transaction is held across a broker call.
type PGStore struct {
	pool *db.Pool
}

func NewPGStore(pool *db.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Append(ctx context.Context, tx pgx.Tx, rec Record) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox_events (id, topic, event_key, event_type, payload, status, attempts, created_at, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, rec.ID, rec.Topic, nullIfEmpty(rec.Key), rec.EventType, string(rec.Payload), rec.Status, rec.Attempts, rec.CreatedAt,
		nullIfEmpty(rec.Traceparent), nullIfEmpty(rec.Tracestate))
	return err
}

func (s *PGStore) FetchBatch(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, topic, event_key, event_type, payload, status, attempts,
		       created_at, last_attempt_at, published_at, last_error, traceparent, tracestate
		FROM outbox_events
		WHERE status = 'NEW'
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec         Record
			key         *string
			payload     string
			lastError   *string
			traceparent *string
			tracestate  *string
		)
		if err := rows.Scan(&rec.ID, &rec.Topic, &key, &rec.EventType, &payload, &rec.Status,
			&rec.Attempts, &rec.CreatedAt, &rec.LastAttemptAt, &rec.PublishedAt, &lastError,
			&traceparent, &tracestate); err != nil {
			return nil, err
		}
		if key != nil {
			rec.Key = *key
		}
		if lastError != nil {
			rec.LastError = *lastError
		}
		if traceparent != nil {
			rec.Traceparent = *traceparent
		}
		if tracestate != nil {
			rec.Tracestate = *tracestate
		}
		rec.Payload = []byte(payload)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PGStore) Claim(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE outbox_events
		SET status = 'PROCESSING', last_attempt_at = $2
		WHERE id = $1 AND status = 'NEW'
	`, id, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) MarkSent(ctx context.Context, id uuid.UUID, publishedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE outbox_events
		SET status = 'SENT', published_at = $2, last_error = NULL
		WHERE id = $1
	`, id, publishedAt)
	return err
}

func (s *PGStore) MarkFailed(ctx context.Context, id uuid.UUID, next Status, now time.Time, lastError string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE outbox_events
		SET status = $2, attempts = attempts + 1, last_attempt_at = $3, last_error = $4
		WHERE id = $1
	`, id, next, now, truncateError(lastError))
	return err
}

func (s *PGStore) DeleteSentBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM outbox_events
		WHERE status = 'SENT' AND published_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PGStore) DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM outbox_events
		WHERE status = 'FAILED' AND last_attempt_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var (
	_ Store    = (*PGStore)(nil)
	_ Appender = (*PGStore)(nil)
)
