package eventstore

import (
	"context"

	"github.com/nikitakapustkin/bankevents/libs/db"
)

type UserEventStore struct {
	pool *db.Pool
}

func NewUserEventStore(pool *db.Pool) *UserEventStore {
	return &UserEventStore{pool: pool}
}

func (s *UserEventStore) Insert(ctx context.Context, e UserEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_events (event_id, correlation_id, user_id, event_type, event_time, event_description, payload_type, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.EventID, e.CorrelationID, e.UserID, e.EventType, e.EventTime, e.Description, e.PayloadType, e.Payload)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *UserEventStore) Find(ctx context.Context, f Filter) ([]UserEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT event_id, correlation_id, user_id, event_type, event_time, event_description, payload_type, payload
		FROM user_events
		WHERE ($1 = '' OR lower(event_type) = $1)
		  AND ($2::uuid IS NULL OR user_id = $2)
		  AND ($3::uuid IS NULL OR correlation_id = $3)
		ORDER BY event_time DESC NULLS LAST, id DESC
		LIMIT $4
	`, f.EventType, f.EntityID, f.CorrelationID, f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []UserEvent
	for rows.Next() {
		var e UserEvent
		if err := rows.Scan(&e.EventID, &e.CorrelationID, &e.UserID, &e.EventType,
			&e.EventTime, &e.Description, &e.PayloadType, &e.Payload); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
