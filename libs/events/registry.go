package events

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Fields is the denormalized pair every stored event carries regardless of
// payload shape.
type Fields struct {
	EntityID    *uuid.UUID
	Description string
}

// Resolution is the result of decoding a payload through the registry.
type Resolution struct {
	Fields      Fields
	PayloadType string
}

type payloadDecoder func(raw json.RawMessage) (Resolution, error)

var userPayloads = map[string]payloadDecoder{
	TypeUserCreated: decodeAs("UserCreatedPayload", func(p UserCreatedPayload) Fields {
		return Fields{EntityID: ptr(p.UserID), Description: p.Description}
	}),
	TypeFriendAdded: decodeAs("FriendAddedPayload", func(p FriendAddedPayload) Fields {
		return Fields{EntityID: ptr(p.UserID), Description: p.Description}
	}),
	TypeFriendRemoved: decodeAs("FriendRemovedPayload", func(p FriendRemovedPayload) Fields {
		return Fields{EntityID: ptr(p.UserID), Description: p.Description}
	}),
}

var accountPayloads = map[string]payloadDecoder{
	TypeAccountCreated: decodeAs("AccountCreatedPayload", func(p AccountCreatedPayload) Fields {
		return Fields{EntityID: ptr(p.AccountID), Description: p.Description}
	}),
	TypeAccountDeposit: decodeAs("AccountDepositedPayload", func(p AccountDepositedPayload) Fields {
		return Fields{EntityID: ptr(p.AccountID), Description: p.Description}
	}),
	TypeAccountWithdrawal: decodeAs("AccountWithdrawnPayload", func(p AccountWithdrawnPayload) Fields {
		return Fields{EntityID: ptr(p.AccountID), Description: p.Description}
	}),
	TypeAccountTransfer: decodeAs("AccountTransferredPayload", func(p AccountTransferredPayload) Fields {
		return Fields{EntityID: ptr(p.AccountID), Description: p.Description}
	}),
}

var unknownPayload = decodeAs("UnknownPayload", func(p UnknownPayload) Fields {
	return Fields{EntityID: p.EntityID, Description: p.Description}
})

// ResolveUserPayload decodes a user-family payload by event type. Unregistered
// types fall back to UnknownPayload, preserving entityId and description
// verbatim.
func ResolveUserPayload(eventType string, raw json.RawMessage) (Resolution, error) {
	return resolve(userPayloads, eventType, raw)
}

// ResolveAccountPayload is ResolveUserPayload for the account family.
func ResolveAccountPayload(eventType string, raw json.RawMessage) (Resolution, error) {
	return resolve(accountPayloads, eventType, raw)
}

func resolve(decoders map[string]payloadDecoder, eventType string, raw json.RawMessage) (Resolution, error) {
	dec, ok := decoders[eventType]
	if !ok {
		dec = unknownPayload
	}
	return dec(raw)
}

func decodeAs[T any](name string, extract func(T) Fields) payloadDecoder {
	return func(raw json.RawMessage) (Resolution, error) {
		if len(raw) == 0 || string(raw) == "null" {
			return Resolution{}, fmt.Errorf("missing payload for %s", name)
		}
		var p T
		if err := json.Unmarshal(raw, &p); err != nil {
			return Resolution{}, fmt.Errorf("parse payload as %s: %w", name, err)
		}
		return Resolution{Fields: extract(p), PayloadType: name}, nil
	}
}

func ptr(id uuid.UUID) *uuid.UUID {
	return &id
}
