// Package events defines the wire contract shared by the bank, security and
// storage services: the event envelope, the event type namespace, the payload
// shapes and the registry resolving a type string to its payload.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope is the transport-level wrapper around a domain payload. Field order
// is the wire order; encoding/json keeps it stable, so independently versioned
// producers and consumers agree on the layout.
//
// Payload stays raw until the registry resolves it; the zero EventID and a nil
// CorrelationID mean "absent on the wire".
type Envelope struct {
	EventID       uuid.UUID       `json:"eventId"`
	EventType     string          `json:"eventType"`
	OccurredAt    time.Time       `json:"occurredAt"`
	CorrelationID *uuid.UUID      `json:"correlationId"`
	Producer      string          `json:"producer"`
	Payload       json.RawMessage `json:"payload"`
}

func DecodeEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode event envelope: %w", err)
	}
	return e, nil
}

func (e Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode event envelope: %w", err)
	}
	return data, nil
}

// ResolveCorrelationID canonicalizes the correlation key: the envelope's own
// correlation id when present, otherwise the event id, otherwise a fresh id.
// Stored events therefore always carry a non-nil correlation key.
func ResolveCorrelationID(eventID uuid.UUID, correlationID *uuid.UUID) uuid.UUID {
	if correlationID != nil && *correlationID != uuid.Nil {
		return *correlationID
	}
	if eventID != uuid.Nil {
		return eventID
	}
	return uuid.New()
}
