package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Amounts are json.Number end to end so decimal values survive the round trip
// without float conversion.

type UserCreatedPayload struct {
	UserID      uuid.UUID `json:"userId"`
	Login       string    `json:"login"`
	Name        string    `json:"name"`
	Age         *int      `json:"age"`
	Sex         string    `json:"sex,omitempty"`
	HairColor   string    `json:"hairColor,omitempty"`
	Description string    `json:"description"`
}

type FriendAddedPayload struct {
	UserID      uuid.UUID `json:"userId"`
	FriendID    uuid.UUID `json:"friendId"`
	Description string    `json:"description"`
}

type FriendRemovedPayload struct {
	UserID      uuid.UUID `json:"userId"`
	FriendID    uuid.UUID `json:"friendId"`
	Description string    `json:"description"`
}

type AccountCreatedPayload struct {
	AccountID   uuid.UUID `json:"accountId"`
	OwnerID     uuid.UUID `json:"ownerId"`
	OwnerLogin  string    `json:"ownerLogin"`
	Description string    `json:"description"`
}

type AccountDepositedPayload struct {
	AccountID   uuid.UUID   `json:"accountId"`
	Amount      json.Number `json:"amount"`
	Description string      `json:"description"`
}

type AccountWithdrawnPayload struct {
	AccountID   uuid.UUID   `json:"accountId"`
	Amount      json.Number `json:"amount"`
	Description string      `json:"description"`
}

type AccountTransferredPayload struct {
	AccountID             uuid.UUID   `json:"accountId"`
	CounterpartyAccountID uuid.UUID   `json:"counterpartyAccountId"`
	Amount                json.Number `json:"amount"`
	Direction             string      `json:"direction"`
	Description           string      `json:"description"`
}

type TransactionCreatedPayload struct {
	TransactionID   uuid.UUID   `json:"transactionId"`
	AccountID       uuid.UUID   `json:"accountId"`
	TransactionType string      `json:"transactionType"`
	Amount          json.Number `json:"amount"`
	CreatedAt       time.Time   `json:"createdAt"`
}

// UnknownPayload is what any unregistered event type resolves to. It keeps
// just enough to stay queryable until a consumer learns the real shape.
type UnknownPayload struct {
	EntityID    *uuid.UUID `json:"entityId"`
	Description string     `json:"description"`
}
