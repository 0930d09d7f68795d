package eventstore

import (
	"context"

	"github.com/nikitakapustkin/bankevents/libs/db"
)

// TransactionEventStore dedups on two keys: event_id and transaction_id both
// carry unique constraints, so replaying either the same event or a second
// event for an already-recorded transaction yields ErrDuplicate.
type TransactionEventStore struct {
	pool *db.Pool
}

func NewTransactionEventStore(pool *db.Pool) *TransactionEventStore {
	return &TransactionEventStore{pool: pool}
}

func (s *TransactionEventStore) Insert(ctx context.Context, e TransactionEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO transaction_events (event_id, transaction_id, correlation_id, account_id, transaction_type, amount, created_at, event_type, event_time, event_description, payload_type, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, e.EventID, e.TransactionID, e.CorrelationID, e.AccountID, e.TransactionType,
		e.Amount, e.CreatedAt, e.EventType, e.EventTime, e.Description, e.PayloadType, e.Payload)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *TransactionEventStore) Find(ctx context.Context, f Filter) ([]TransactionEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT event_id, transaction_id, correlation_id, account_id, transaction_type, amount, created_at, event_type, event_time, event_description, payload_type, payload
		FROM transaction_events
		WHERE ($1 = '' OR lower(event_type) = $1)
		  AND ($2::uuid IS NULL OR account_id = $2)
		  AND ($3::uuid IS NULL OR correlation_id = $3)
		  AND ($4 = '' OR transaction_type = $4)
		ORDER BY event_time DESC NULLS LAST, id DESC
		LIMIT $5
	`, f.EventType, f.EntityID, f.CorrelationID, f.TransactionType, f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []TransactionEvent
	for rows.Next() {
		var e TransactionEvent
		if err := rows.Scan(&e.EventID, &e.TransactionID, &e.CorrelationID, &e.AccountID,
			&e.TransactionType, &e.Amount, &e.CreatedAt, &e.EventType,
			&e.EventTime, &e.Description, &e.PayloadType, &e.Payload); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
