// Package query serves the read side: it fans a filter out over the per-family
// event stores and merges the results into one reverse-chronological stream.
package query

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nikitakapustkin/bankevents/libs/events"
	"github.com/nikitakapustkin/bankevents/services/storage-service/internal/eventstore"
)

const (
	SourceUser        = "USER"
	SourceAccount     = "ACCOUNT"
	SourceTransaction = "TRANSACTION"
	// SourceAll selects every family, same as leaving source empty.
	SourceAll = "ALL"
)

const (
	defaultLimit = 100
	maxLimit     = 500
)

// Filter is the external query surface. Source selects one family; empty
// means all three. Limit outside [1, maxLimit] is clamped.
type Filter struct {
	Source          string
	EventType       string
	EntityID        *uuid.UUID
	CorrelationID   *uuid.UUID
	TransactionType string
	Limit           int
}

// Event is the merged projection row. Transaction-only fields are omitted for
// the other families.
type Event struct {
	Source          string     `json:"source"`
	EventID         uuid.UUID  `json:"eventId"`
	CorrelationID   uuid.UUID  `json:"correlationId"`
	EntityID        *uuid.UUID `json:"entityId,omitempty"`
	EventType       string     `json:"eventType"`
	EventTime       *time.Time `json:"eventTime,omitempty"`
	Description     string     `json:"description,omitempty"`
	PayloadType     string     `json:"payloadType,omitempty"`
	Payload         string     `json:"payload,omitempty"`
	TransactionID   *uuid.UUID `json:"transactionId,omitempty"`
	TransactionType string     `json:"transactionType,omitempty"`
	Amount          string     `json:"amount,omitempty"`
}

type UserFinder interface {
	Find(ctx context.Context, f eventstore.Filter) ([]eventstore.UserEvent, error)
}

type AccountFinder interface {
	Find(ctx context.Context, f eventstore.Filter) ([]eventstore.AccountEvent, error)
}

type TransactionFinder interface {
	Find(ctx context.Context, f eventstore.Filter) ([]eventstore.TransactionEvent, error)
}

type Service struct {
	users        UserFinder
	accounts     AccountFinder
	transactions TransactionFinder
}

func NewService(users UserFinder, accounts AccountFinder, transactions TransactionFinder) *Service {
	return &Service{users: users, accounts: accounts, transactions: transactions}
}

// Find runs the filter against the selected families, merges the rows by
// event time descending (rows without a time sort last) and applies the limit
// to the merged stream.
func (s *Service) Find(ctx context.Context, f Filter) ([]Event, error) {
	f = normalize(f)

	store := eventstore.Filter{
		EventType:       f.EventType,
		EntityID:        f.EntityID,
		CorrelationID:   f.CorrelationID,
		TransactionType: f.TransactionType,
		Limit:           f.Limit,
	}

	var merged []Event
	if f.Source == "" || f.Source == SourceUser {
		rows, err := s.users.Find(ctx, store)
		if err != nil {
			return nil, fmt.Errorf("query user events: %w", err)
		}
		for _, r := range rows {
			merged = append(merged, fromUser(r))
		}
	}
	if f.Source == "" || f.Source == SourceAccount {
		rows, err := s.accounts.Find(ctx, store)
		if err != nil {
			return nil, fmt.Errorf("query account events: %w", err)
		}
		for _, r := range rows {
			merged = append(merged, fromAccount(r))
		}
	}
	if f.Source == "" || f.Source == SourceTransaction {
		rows, err := s.transactions.Find(ctx, store)
		if err != nil {
			return nil, fmt.Errorf("query transaction events: %w", err)
		}
		for _, r := range rows {
			merged = append(merged, fromTransaction(r))
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return laterThan(merged[i].EventTime, merged[j].EventTime)
	})
	if len(merged) > f.Limit {
		merged = merged[:f.Limit]
	}
	return merged, nil
}

// ValidSource reports whether source names a known family. Empty and ALL are
// both valid and mean all families.
func ValidSource(source string) bool {
	switch strings.ToUpper(strings.TrimSpace(source)) {
	case "", SourceAll, SourceUser, SourceAccount, SourceTransaction:
		return true
	}
	return false
}

// ValidTransactionType reports whether t names a known transaction kind.
// Empty is valid and means any.
func ValidTransactionType(t string) bool {
	switch strings.ToUpper(strings.TrimSpace(t)) {
	case "", events.TransactionDeposit, events.TransactionWithdrawal, events.TransactionTransfer:
		return true
	}
	return false
}

func normalize(f Filter) Filter {
	f.Source = strings.ToUpper(strings.TrimSpace(f.Source))
	if f.Source == SourceAll {
		f.Source = ""
	}
	f.EventType = strings.ToLower(strings.TrimSpace(f.EventType))
	f.TransactionType = strings.ToUpper(strings.TrimSpace(f.TransactionType))
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	return f
}

func laterThan(a, b *time.Time) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return a.After(*b)
}

func fromUser(r eventstore.UserEvent) Event {
	return Event{
		Source:        SourceUser,
		EventID:       r.EventID,
		CorrelationID: r.CorrelationID,
		EntityID:      r.UserID,
		EventType:     r.EventType,
		EventTime:     r.EventTime,
		Description:   r.Description,
		PayloadType:   r.PayloadType,
		Payload:       r.Payload,
	}
}

func fromAccount(r eventstore.AccountEvent) Event {
	return Event{
		Source:        SourceAccount,
		EventID:       r.EventID,
		CorrelationID: r.CorrelationID,
		EntityID:      r.AccountID,
		EventType:     r.EventType,
		EventTime:     r.EventTime,
		Description:   r.Description,
		PayloadType:   r.PayloadType,
		Payload:       r.Payload,
	}
}

func fromTransaction(r eventstore.TransactionEvent) Event {
	return Event{
		Source:          SourceTransaction,
		EventID:         r.EventID,
		CorrelationID:   r.CorrelationID,
		EntityID:        r.AccountID,
		EventType:       r.EventType,
		EventTime:       r.EventTime,
		Description:     r.Description,
		PayloadType:     r.PayloadType,
		Payload:         r.Payload,
		TransactionID:   r.TransactionID,
		TransactionType: r.TransactionType,
		Amount:          r.Amount,
	}
}
