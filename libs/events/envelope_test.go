package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_RoundTrip(t *testing.T) {
	eventID := uuid.New()
	corrID := uuid.New()
	occurred := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	payload, err := json.Marshal(AccountDepositedPayload{
		AccountID:   uuid.New(),
		Amount:      json.Number("150.75"),
		Description: "Deposited 150.75",
	})
	require.NoError(t, err)

	in := Envelope{
		EventID:       eventID,
		EventType:     TypeAccountDeposit,
		OccurredAt:    occurred,
		CorrelationID: &corrID,
		Producer:      "bank-service",
		Payload:       payload,
	}

	data, err := in.Encode()
	require.NoError(t, err)

	out, err := DecodeEnvelope(data)
	require.NoError(t, err)
	require.Equal(t, eventID, out.EventID)
	require.Equal(t, TypeAccountDeposit, out.EventType)
	require.True(t, occurred.Equal(out.OccurredAt))
	require.NotNil(t, out.CorrelationID)
	require.Equal(t, corrID, *out.CorrelationID)
	require.Equal(t, "bank-service", out.Producer)

	var dep AccountDepositedPayload
	require.NoError(t, json.Unmarshal(out.Payload, &dep))
	require.Equal(t, json.Number("150.75"), dep.Amount)
}

func TestEnvelope_NullCorrelationIDOnWire(t *testing.T) {
	raw := []byte(`{
		"eventId": "6f9b6e0e-25c8-4f7e-9f40-0b8ed9c2d001",
		"eventType": "account.withdrawal",
		"occurredAt": "2026-03-14T09:26:53Z",
		"correlationId": null,
		"producer": "bank-service",
		"payload": {"accountId": "6f9b6e0e-25c8-4f7e-9f40-0b8ed9c2d002", "amount": 10, "description": "w"}
	}`)

	e, err := DecodeEnvelope(raw)
	require.NoError(t, err)
	require.Nil(t, e.CorrelationID)
	require.Equal(t, e.EventID, ResolveCorrelationID(e.EventID, e.CorrelationID))
}

func TestResolveCorrelationID(t *testing.T) {
	eventID := uuid.New()
	corrID := uuid.New()

	require.Equal(t, corrID, ResolveCorrelationID(eventID, &corrID))
	require.Equal(t, eventID, ResolveCorrelationID(eventID, nil))

	// Neither present: a fresh id is generated.
	generated := ResolveCorrelationID(uuid.Nil, nil)
	require.NotEqual(t, uuid.Nil, generated)
}

func TestDecodeEnvelope_Garbage(t *testing.T) {
	_, err := DecodeEnvelope([]byte("not json at all"))
	require.Error(t, err)
}
