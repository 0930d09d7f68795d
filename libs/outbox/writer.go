package outbox

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nikitakapustkin/bankevents/libs/otelx"
)

// Writer is the producer-side entry point. It appends one NEW row on the
// transaction that carries the business mutation and never talks to the
// broker; the row only becomes visible to the dispatcher when that
// transaction commits.
type Writer struct {
	store Appender
}

func NewWriter(store Appender) *Writer {
	return &Writer{store: store}
}

func (w *Writer) Record(ctx context.Context, tx pgx.Tx, topic, key, eventType string, payload []byte) (Record, error) {
	rec := NewRecord(topic, key, eventType, payload)
	rec.Traceparent, rec.Tracestate = otelx.TraceContextStrings(ctx)
	if err := w.store.Append(ctx, tx, rec); err != nil {
		return Record{}, fmt.Errorf("append outbox row for topic %s: %w", topic, err)
	}
	return rec, nil
}
