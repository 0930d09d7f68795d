// Package domain holds the bank service's internal event model. Services
// produce these values; the eventpub package translates them into the wire
// contract.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is a domain occurrence awaiting publication. EntityID routes the
// event (Kafka key); Data carries the type-specific fields and must match
// Type's family.
type Event struct {
	EventID       uuid.UUID
	Type          string
	EntityID      uuid.UUID
	CorrelationID *uuid.UUID
	OccurredAt    time.Time
	Description   string
	Data          any
}

type UserCreated struct {
	UserID    uuid.UUID
	Login     string
	Name      string
	Age       *int
	Sex       string
	HairColor string
}

type FriendAdded struct {
	UserID   uuid.UUID
	FriendID uuid.UUID
}

type FriendRemoved struct {
	UserID   uuid.UUID
	FriendID uuid.UUID
}

type AccountCreated struct {
	AccountID  uuid.UUID
	OwnerID    uuid.UUID
	OwnerLogin string
}

type AccountDeposited struct {
	AccountID uuid.UUID
	Amount    json.Number
}

type AccountWithdrawn struct {
	AccountID uuid.UUID
	Amount    json.Number
}

type AccountTransferred struct {
	AccountID             uuid.UUID
	CounterpartyAccountID uuid.UUID
	Amount                json.Number
	Direction             string
}

type TransactionCreated struct {
	TransactionID   uuid.UUID
	AccountID       uuid.UUID
	TransactionType string
	Amount          json.Number
	CreatedAt       time.Time
}
