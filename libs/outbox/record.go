// Package outbox implements the transactional outbox shared by the producing
// services: rows appended in the same transaction as a business mutation, a
// polling dispatcher that publishes them with at-least-once semantics and
// bounded retries, and a retention job purging terminal rows.
package outbox

import (
	"time"

	"github.com/google/uuid"
)

type Status string

// Status only moves forward: NEW -> PROCESSING -> SENT | NEW | FAILED.
// FAILED is terminal and never re-selected.
const (
	StatusNew        Status = "NEW"
	StatusProcessing Status = "PROCESSING"
	StatusSent       Status = "SENT"
	StatusFailed     Status = "FAILED"
)

// MaxErrorLen caps last_error before it reaches the store.
const MaxErrorLen = 2000

type Record struct {
	ID            uuid.UUID
	Topic         string
	Key           string // routing key; empty means none
	EventType     string
	Payload       []byte
	Status        Status
	Attempts      int
	CreatedAt     time.Time
	LastAttemptAt *time.Time
	PublishedAt   *time.Time
	LastError     string
	// W3C trace context captured when the row was appended, restored when
	// the row is published.
	Traceparent string
	Tracestate  string
}

func NewRecord(topic, key, eventType string, payload []byte) Record {
	return Record{
		ID:        uuid.New(),
		Topic:     topic,
		Key:       key,
		EventType: eventType,
		Payload:   payload,
		Status:    StatusNew,
		CreatedAt: time.Now().UTC(),
	}
}

func truncateError(msg string) string {
	if len(msg) > MaxErrorLen {
		return msg[:MaxErrorLen]
	}
	return msg
}
