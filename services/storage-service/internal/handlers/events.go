// Package handlers holds the storage service's HTTP surface.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/nikitakapustkin/bankevents/services/storage-service/internal/query"
)

// EventFinder is what the handler needs from the query layer; both the plain
// and the cached service satisfy it.
type EventFinder interface {
	Find(ctx context.Context, f query.Filter) ([]query.Event, error)
}

type EventsHandler struct {
	finder EventFinder
	logger *slog.Logger
}

func NewEventsHandler(finder EventFinder, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{finder: finder, logger: logger}
}

func (h *EventsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /events", h.list)
}

func (h *EventsHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := query.Filter{
		Source:          q.Get("source"),
		EventType:       q.Get("eventType"),
		TransactionType: q.Get("transactionType"),
	}
	if !query.ValidSource(f.Source) {
		writeError(w, http.StatusBadRequest, "unknown source: "+f.Source)
		return
	}
	if !query.ValidTransactionType(f.TransactionType) {
		writeError(w, http.StatusBadRequest, "unknown transactionType: "+f.TransactionType)
		return
	}
	if raw := q.Get("entityId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid entityId")
			return
		}
		f.EntityID = &id
	}
	if raw := q.Get("correlationId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid correlationId")
			return
		}
		f.CorrelationID = &id
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		f.Limit = n
	}

	events, err := h.finder.Find(r.Context(), f)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "events query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if events == nil {
		events = []query.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
