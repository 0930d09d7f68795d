// event-sim publishes a synthetic event envelope to Kafka, for poking the
// storage service's ingestion path during development.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/nikitakapustkin/bankevents/libs/events"
	"github.com/nikitakapustkin/bankevents/libs/kafkax"
)

func main() {
	var (
		brokers  = flag.String("brokers", getenv("KAFKA_BROKERS", "localhost:9092"), "comma-separated kafka brokers")
		topic    = flag.String("topic", getenv("KAFKA_TOPIC", "user-events"), "destination topic")
		evtType  = flag.String("type", getenv("EVENT_TYPE", events.TypeUserCreated), "event type")
		entity   = flag.String("entity-id", getenv("ENTITY_ID", ""), "entity uuid (random when empty)")
		producer = flag.String("producer", getenv("PRODUCER", "security-service"), "producer name header")
	)
	flag.Parse()

	entityID := uuid.New()
	if strings.TrimSpace(*entity) != "" {
		parsed, err := uuid.Parse(*entity)
		if err != nil {
			fatal("entity-id must be a uuid")
		}
		entityID = parsed
	}

	now := time.Now().UTC()
	eventID := uuid.New()

	payload, err := buildPayload(*evtType, entityID, now)
	if err != nil {
		fatal(err.Error())
	}
	raw, err := events.Envelope{
		EventID:       eventID,
		EventType:     *evtType,
		OccurredAt:    now,
		CorrelationID: &eventID,
		Producer:      *producer,
		Payload:       payload,
	}.Encode()
	if err != nil {
		fatal(err.Error())
	}

	writer := &kafka.Writer{
		Addr:     kafka.TCP(kafkax.SplitBrokers(*brokers)...),
		Topic:    *topic,
		Balancer: &kafka.Hash{},
	}
	defer writer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(entityID.String()),
		Value: raw,
		Headers: kafkax.MetaHeaders(kafkax.EventMeta{
			EventID:   eventID.String(),
			EventType: *evtType,
			Producer:  *producer,
		}),
	})
	if err != nil {
		fatal(err.Error())
	}
	fmt.Printf("published event_id=%s type=%s topic=%s\n", eventID, *evtType, *topic)
}

func buildPayload(eventType string, entityID uuid.UUID, now time.Time) (json.RawMessage, error) {
	switch eventType {
	case events.TypeUserCreated:
		return json.Marshal(events.UserCreatedPayload{
			UserID:      entityID,
			Login:       fmt.Sprintf("user-%d", now.UnixNano()),
			Name:        "Simulated User",
			Description: "User created: simulated",
		})
	case events.TypeAccountCreated:
		return json.Marshal(events.AccountCreatedPayload{
			AccountID:   entityID,
			OwnerID:     uuid.New(),
			OwnerLogin:  "simulated",
			Description: "Account created",
		})
	case events.TypeAccountDeposit:
		return json.Marshal(events.AccountDepositedPayload{
			AccountID:   entityID,
			Amount:      json.Number("100.00"),
			Description: "Deposited 100.00",
		})
	case events.TypeTransactionCreated:
		return json.Marshal(events.TransactionCreatedPayload{
			TransactionID:   uuid.New(),
			AccountID:       entityID,
			TransactionType: events.TransactionDeposit,
			Amount:          json.Number("100.00"),
			CreatedAt:       now,
		})
	default:
		return json.Marshal(events.UnknownPayload{
			EntityID:    &entityID,
			Description: "Simulated " + eventType,
		})
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, "error: "+msg)
	os.Exit(1)
}
