// Package eventstore persists the append-only per-aggregate event records.
// Rows are only ever inserted; a duplicate event id surfaces as ErrDuplicate
// and is the ingestion layer's idempotence signal.
package eventstore

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicate reports that an event with the same dedup key is already
// stored.
var ErrDuplicate = errors.New("event already stored")

type UserEvent struct {
	EventID       uuid.UUID
	CorrelationID uuid.UUID
	UserID        *uuid.UUID
	EventType     string
	EventTime     *time.Time
	Description   string
	PayloadType   string
	Payload       string
}

type AccountEvent struct {
	EventID       uuid.UUID
	CorrelationID uuid.UUID
	AccountID     *uuid.UUID
	EventType     string
	EventTime     *time.Time
	Description   string
	PayloadType   string
	Payload       string
}

type TransactionEvent struct {
	EventID         uuid.UUID
	TransactionID   *uuid.UUID
	CorrelationID   uuid.UUID
	AccountID       *uuid.UUID
	TransactionType string
	Amount          string
	CreatedAt       *time.Time
	EventType       string
	EventTime       *time.Time
	Description     string
	PayloadType     string
	Payload         string
}

// Filter narrows Find queries. Zero values mean "any". EventType is expected
// lower-cased by the caller.
type Filter struct {
	EventType       string
	EntityID        *uuid.UUID
	CorrelationID   *uuid.UUID
	TransactionType string
	Limit           int
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
