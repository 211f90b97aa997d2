package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

// EventHandler serves the durable event journal.
type EventHandler struct {
	store  domain.EventStore
	logger *slog.Logger
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(store domain.EventStore, logger *slog.Logger) *EventHandler {
	return &EventHandler{store: store, logger: logHandler(logger, "events")}
}

// ListEvents pages through committed events, newest first.
// GET /v1/events?limit=50&offset=0&since=2024-01-01T00:00:00Z
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	evs, err := h.store.List(r.Context(), opts)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if evs == nil {
		evs = []domain.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": evs,
		"count":  len(evs),
	})
}
