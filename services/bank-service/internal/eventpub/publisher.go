// Package eventpub turns domain events into outbox rows. Publication happens
// on the caller's transaction, so the event row commits or rolls back together
// with the mutation that produced it.
package eventpub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nikitakapustkin/bankevents/libs/events"
	"github.com/nikitakapustkin/bankevents/libs/outbox"
	"github.com/nikitakapustkin/bankevents/services/bank-service/internal/domain"
)

const producerName = "bank-service"

type Topics struct {
	User        string
	Account     string
	Transaction string
}

type Publisher struct {
	writer *outbox.Writer
	topics Topics
}

func NewPublisher(writer *outbox.Writer, topics Topics) *Publisher {
	return &Publisher{writer: writer, topics: topics}
}

// PublishUserEvent records one user-family event. The event's Data must be
// the struct matching its Type; a mismatch is a programming error and fails
// hard rather than producing a half-formed payload.
func (p *Publisher) PublishUserEvent(ctx context.Context, tx pgx.Tx, ev domain.Event) error {
	payload, err := userPayload(ev)
	if err != nil {
		return err
	}
	return p.record(ctx, tx, p.topics.User, ev, payload)
}

func (p *Publisher) PublishAccountEvent(ctx context.Context, tx pgx.Tx, ev domain.Event) error {
	payload, err := accountPayload(ev)
	if err != nil {
		return err
	}
	return p.record(ctx, tx, p.topics.Account, ev, payload)
}

func (p *Publisher) PublishTransactionEvent(ctx context.Context, tx pgx.Tx, ev domain.Event) error {
	data, ok := ev.Data.(domain.TransactionCreated)
	if !ok || ev.Type != events.TypeTransactionCreated {
		return mismatch(ev)
	}
	payload := events.TransactionCreatedPayload{
		TransactionID:   data.TransactionID,
		AccountID:       data.AccountID,
		TransactionType: data.TransactionType,
		Amount:          data.Amount,
		CreatedAt:       data.CreatedAt,
	}
	return p.record(ctx, tx, p.topics.Transaction, ev, payload)
}

func (p *Publisher) record(ctx context.Context, tx pgx.Tx, topic string, ev domain.Event, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", ev.Type, err)
	}

	eventID := ev.EventID
	if eventID == uuid.Nil {
		eventID = uuid.New()
	}
	occurredAt := ev.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	env := events.Envelope{
		EventID:       eventID,
		EventType:     ev.Type,
		OccurredAt:    occurredAt,
		CorrelationID: ev.CorrelationID,
		Producer:      producerName,
		Payload:       raw,
	}
	data, err := env.Encode()
	if err != nil {
		return err
	}

	key := routingKey(ev, eventID)
	if _, err := p.writer.Record(ctx, tx, topic, key, ev.Type, data); err != nil {
		return err
	}
	return nil
}

// routingKey keeps events for one entity on one partition so consumers see
// them in order.
func routingKey(ev domain.Event, eventID uuid.UUID) string {
	if ev.EntityID != uuid.Nil {
		return ev.EntityID.String()
	}
	if eventID != uuid.Nil {
		return eventID.String()
	}
	return ""
}

func userPayload(ev domain.Event) (any, error) {
	switch data := ev.Data.(type) {
	case domain.UserCreated:
		if ev.Type != events.TypeUserCreated {
			return nil, mismatch(ev)
		}
		return events.UserCreatedPayload{
			UserID:      data.UserID,
			Login:       data.Login,
			Name:        data.Name,
			Age:         data.Age,
			Sex:         data.Sex,
			HairColor:   data.HairColor,
			Description: ev.Description,
		}, nil
	case domain.FriendAdded:
		if ev.Type != events.TypeFriendAdded {
			return nil, mismatch(ev)
		}
		return events.FriendAddedPayload{
			UserID:      data.UserID,
			FriendID:    data.FriendID,
			Description: ev.Description,
		}, nil
	case domain.FriendRemoved:
		if ev.Type != events.TypeFriendRemoved {
			return nil, mismatch(ev)
		}
		return events.FriendRemovedPayload{
			UserID:      data.UserID,
			FriendID:    data.FriendID,
			Description: ev.Description,
		}, nil
	default:
		return nil, mismatch(ev)
	}
}

func accountPayload(ev domain.Event) (any, error) {
	switch data := ev.Data.(type) {
	case domain.AccountCreated:
		if ev.Type != events.TypeAccountCreated {
			return nil, mismatch(ev)
		}
		return events.AccountCreatedPayload{
			AccountID:   data.AccountID,
			OwnerID:     data.OwnerID,
			OwnerLogin:  data.OwnerLogin,
			Description: ev.Description,
		}, nil
	case domain.AccountDeposited:
		if ev.Type != events.TypeAccountDeposit {
			return nil, mismatch(ev)
		}
		return events.AccountDepositedPayload{
			AccountID:   data.AccountID,
			Amount:      data.Amount,
			Description: ev.Description,
		}, nil
	case domain.AccountWithdrawn:
		if ev.Type != events.TypeAccountWithdrawal {
			return nil, mismatch(ev)
		}
		return events.AccountWithdrawnPayload{
			AccountID:   data.AccountID,
			Amount:      data.Amount,
			Description: ev.Description,
		}, nil
	case domain.AccountTransferred:
		if ev.Type != events.TypeAccountTransfer {
			return nil, mismatch(ev)
		}
		return events.AccountTransferredPayload{
			AccountID:             data.AccountID,
			CounterpartyAccountID: data.CounterpartyAccountID,
			Amount:                data.Amount,
			Direction:             data.Direction,
			Description:           ev.Description,
		}, nil
	default:
		return nil, mismatch(ev)
	}
}

func mismatch(ev domain.Event) error {
	return fmt.Errorf("event type %q does not match payload %T", ev.Type, ev.Data)
}
