package userimport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/nikitakapustkin/bankevents/libs/events"
	"github.com/nikitakapustkin/bankevents/libs/kafkax"
)

type Store interface {
	Upsert(ctx context.Context, u User) (bool, error)
}

// Importer consumes the user topic and mirrors user.created events. Other
// event types on the topic are skipped, as are events from producers outside
// the allow-list.
type Importer struct {
	store            Store
	allowedProducers map[string]struct{}
	logger           *slog.Logger
}

// NewImporter builds an importer trusting the given producers. An empty list
// defaults to security-service, the canonical source of users.
func NewImporter(store Store, allowedProducers []string, logger *slog.Logger) *Importer {
	if len(allowedProducers) == 0 {
		allowedProducers = []string{"security-service"}
	}
	allowed := make(map[string]struct{}, len(allowedProducers))
	for _, p := range allowedProducers {
		p = strings.TrimSpace(p)
		if p != "" {
			allowed[p] = struct{}{}
		}
	}
	return &Importer{store: store, allowedProducers: allowed, logger: logger}
}

func (i *Importer) Consume(ctx context.Context, raw []byte) error {
	env, err := events.DecodeEnvelope(raw)
	if err != nil {
		return kafkax.Fatal(err)
	}
	if env.EventType != events.TypeUserCreated {
		return nil
	}
	if _, ok := i.allowedProducers[env.Producer]; !ok {
		i.logger.WarnContext(ctx, "ignoring user event from untrusted producer",
			"event_id", env.EventID, "producer", env.Producer)
		return nil
	}

	var p events.UserCreatedPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return kafkax.Fatal(fmt.Errorf("parse user.created payload %s: %w", env.EventID, err))
	}
	if p.UserID == uuid.Nil || p.Login == "" {
		i.logger.WarnContext(ctx, "skipping user.created with missing fields",
			"event_id", env.EventID, "user_id", p.UserID, "login", p.Login)
		return nil
	}

	inserted, err := i.store.Upsert(ctx, User{ID: p.UserID, Login: p.Login, Name: p.Name, Age: p.Age})
	if err != nil {
		return fmt.Errorf("mirror user %s: %w", p.UserID, err)
	}
	if inserted {
		i.logger.InfoContext(ctx, "mirrored user", "user_id", p.UserID, "login", p.Login)
	} else {
		i.logger.InfoContext(ctx, "user already mirrored", "user_id", p.UserID)
	}
	return nil
}
