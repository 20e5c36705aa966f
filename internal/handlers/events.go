package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/cantolico/guard/internal/httputil"
	"github.com/cantolico/guard/internal/models"
	"github.com/cantolico/guard/internal/repository"
)

// ListEvents returns security events filtered by actor, event type, and
// time range.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	req := &models.ListEventsRequest{
		EventType: q.Get("eventType"),
		From:      q.Get("from"),
		To:        q.Get("to"),
		Limit:     httputil.ParseIntParam(q.Get("limit"), 100),
	}
	if raw := q.Get("actorId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid actorId")
			return
		}
		req.ActorID = &id
	}

	events, err := h.guard.ListEvents(r.Context(), req)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list events", "error", err.Error())
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, events)
}

// EventByID serves GET /api/v1/events/{id}.
func (h *Handler) EventByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/events/")
	if id == "" {
		httputil.WriteError(w, http.StatusBadRequest, "event id required")
		return
	}

	event, err := h.guard.GetEvent(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "event not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to get event", "error", err.Error())
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, event)
}
