package eventstore

import (
	"context"

	"github.com/nikitakapustkin/bankevents/libs/db"
)

type AccountEventStore struct {
	pool *db.Pool
}

func NewAccountEventStore(pool *db.Pool) *AccountEventStore {
	return &AccountEventStore{pool: pool}
}

func (s *AccountEventStore) Insert(ctx context.Context, e AccountEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO account_events (event_id, correlation_id, account_id, event_type, event_time, event_description, payload_type, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.EventID, e.CorrelationID, e.AccountID, e.EventType, e.EventTime, e.Description, e.PayloadType, e.Payload)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *AccountEventStore) Find(ctx context.Context, f Filter) ([]AccountEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT event_id, correlation_id, account_id, event_type, event_time, event_description, payload_type, payload
		FROM account_events
		WHERE ($1 = '' OR lower(event_type) = $1)
		  AND ($2::uuid IS NULL OR account_id = $2)
		  AND ($3::uuid IS NULL OR correlation_id = $3)
		ORDER BY event_time DESC NULLS LAST, id DESC
		LIMIT $4
	`, f.EventType, f.EntityID, f.CorrelationID, f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []AccountEvent
	for rows.Next() {
		var e AccountEvent
		if err := rows.Scan(&e.EventID, &e.CorrelationID, &e.AccountID, &e.EventType,
			&e.EventTime, &e.Description, &e.PayloadType, &e.Payload); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
