// Package ingest turns raw Kafka messages into stored event records. Each
// consume path is idempotent: a redelivered message hits a unique constraint
// in the store and is acknowledged without a second row.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nikitakapustkin/bankevents/libs/events"
	"github.com/nikitakapustkin/bankevents/libs/kafkax"
	"github.com/nikitakapustkin/bankevents/services/storage-service/internal/eventstore"
)

type UserEvents interface {
	Insert(ctx context.Context, e eventstore.UserEvent) error
}

type AccountEvents interface {
	Insert(ctx context.Context, e eventstore.AccountEvent) error
}

type TransactionEvents interface {
	Insert(ctx context.Context, e eventstore.TransactionEvent) error
}

type Service struct {
	users        UserEvents
	accounts     AccountEvents
	transactions TransactionEvents
	logger       *slog.Logger
}

func NewService(users UserEvents, accounts AccountEvents, transactions TransactionEvents, logger *slog.Logger) *Service {
	return &Service{users: users, accounts: accounts, transactions: transactions, logger: logger}
}

// ConsumeUserEvent stores one user-family event. Parse failures are fatal (no
// retry can fix a malformed envelope); duplicates are logged and acknowledged.
func (s *Service) ConsumeUserEvent(ctx context.Context, raw []byte) error {
	env, err := events.DecodeEnvelope(raw)
	if err != nil {
		return kafkax.Fatal(err)
	}
	eventType := envelopeType(env)
	res, err := events.ResolveUserPayload(eventType, env.Payload)
	if err != nil {
		return kafkax.Fatal(fmt.Errorf("user event %s: %w", env.EventID, err))
	}
	rec := eventstore.UserEvent{
		EventID:       env.EventID,
		CorrelationID: events.ResolveCorrelationID(env.EventID, env.CorrelationID),
		UserID:        res.Fields.EntityID,
		EventType:     eventType,
		EventTime:     eventTime(env.OccurredAt),
		Description:   res.Fields.Description,
		PayloadType:   res.PayloadType,
		Payload:       string(env.Payload),
	}
	if err := s.users.Insert(ctx, rec); err != nil {
		if errors.Is(err, eventstore.ErrDuplicate) {
			s.logger.InfoContext(ctx, "skipping duplicate user event", "event_id", env.EventID)
			return nil
		}
		return fmt.Errorf("store user event %s: %w", env.EventID, err)
	}
	s.logger.InfoContext(ctx, "stored user event", "event_id", env.EventID, "event_type", eventType)
	return nil
}

// ConsumeAccountEvent mirrors ConsumeUserEvent for the account family.
func (s *Service) ConsumeAccountEvent(ctx context.Context, raw []byte) error {
	env, err := events.DecodeEnvelope(raw)
	if err != nil {
		return kafkax.Fatal(err)
	}
	eventType := envelopeType(env)
	res, err := events.ResolveAccountPayload(eventType, env.Payload)
	if err != nil {
		return kafkax.Fatal(fmt.Errorf("account event %s: %w", env.EventID, err))
	}
	rec := eventstore.AccountEvent{
		EventID:       env.EventID,
		CorrelationID: events.ResolveCorrelationID(env.EventID, env.CorrelationID),
		AccountID:     res.Fields.EntityID,
		EventType:     eventType,
		EventTime:     eventTime(env.OccurredAt),
		Description:   res.Fields.Description,
		PayloadType:   res.PayloadType,
		Payload:       string(env.Payload),
	}
	if err := s.accounts.Insert(ctx, rec); err != nil {
		if errors.Is(err, eventstore.ErrDuplicate) {
			s.logger.InfoContext(ctx, "skipping duplicate account event", "event_id", env.EventID)
			return nil
		}
		return fmt.Errorf("store account event %s: %w", env.EventID, err)
	}
	s.logger.InfoContext(ctx, "stored account event", "event_id", env.EventID, "event_type", eventType)
	return nil
}

// transactionEnvelope decodes the transaction topic's payload in one pass; the
// payload shape is fixed, so no registry dispatch is needed.
type transactionEnvelope struct {
	EventID       uuid.UUID                         `json:"eventId"`
	EventType     string                            `json:"eventType"`
	OccurredAt    time.Time                         `json:"occurredAt"`
	CorrelationID *uuid.UUID                        `json:"correlationId"`
	Payload       *events.TransactionCreatedPayload `json:"payload"`
}

// ConsumeTransactionEvent stores one transaction event. A duplicate of either
// the event id or the transaction id counts as already stored.
func (s *Service) ConsumeTransactionEvent(ctx context.Context, raw []byte) error {
	var env transactionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return kafkax.Fatal(fmt.Errorf("decode transaction event: %w", err))
	}
	if env.Payload == nil {
		return kafkax.Fatal(fmt.Errorf("transaction event %s: missing payload", env.EventID))
	}
	p := env.Payload

	occurred := env.OccurredAt
	if occurred.IsZero() {
		occurred = p.CreatedAt
	}
	eventType := env.EventType
	if eventType == "" {
		eventType = events.TypeUnknown
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return kafkax.Fatal(fmt.Errorf("re-encode transaction payload %s: %w", env.EventID, err))
	}
	rec := eventstore.TransactionEvent{
		EventID:         env.EventID,
		TransactionID:   nilIfZero(p.TransactionID),
		CorrelationID:   events.ResolveCorrelationID(env.EventID, env.CorrelationID),
		AccountID:       nilIfZero(p.AccountID),
		TransactionType: p.TransactionType,
		Amount:          p.Amount.String(),
		CreatedAt:       eventTime(p.CreatedAt),
		EventType:       eventType,
		EventTime:       eventTime(occurred),
		Description:     transactionDescription(p),
		PayloadType:     "TransactionCreatedPayload",
		Payload:         string(payload),
	}
	if err := s.transactions.Insert(ctx, rec); err != nil {
		if errors.Is(err, eventstore.ErrDuplicate) {
			s.logger.InfoContext(ctx, "skipping duplicate transaction event",
				"event_id", env.EventID, "transaction_id", p.TransactionID)
			return nil
		}
		return fmt.Errorf("store transaction event %s: %w", env.EventID, err)
	}
	s.logger.InfoContext(ctx, "stored transaction event",
		"event_id", env.EventID, "transaction_id", p.TransactionID, "transaction_type", p.TransactionType)
	return nil
}

func transactionDescription(p *events.TransactionCreatedPayload) string {
	return fmt.Sprintf("Transaction %s: %s %s on account %s",
		p.TransactionID, p.TransactionType, p.Amount, p.AccountID)
}

func envelopeType(env events.Envelope) string {
	if env.EventType == "" {
		return events.TypeUnknown
	}
	return env.EventType
}

func eventTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nilIfZero(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
