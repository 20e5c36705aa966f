package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/cantolico/guard/internal/httputil"
	"github.com/cantolico/guard/internal/middleware"
	"github.com/cantolico/guard/internal/repository"
)

// ListAlerts returns alerts newest first. ?open=true restricts the list to
// unacknowledged alerts.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	onlyOpen := r.URL.Query().Get("open") == "true"
	limit := httputil.ParseIntParam(r.URL.Query().Get("limit"), 100)

	alerts, err := h.guard.ListAlerts(r.Context(), onlyOpen, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list alerts", "error", err.Error())
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, alerts)
}

// AlertByID serves GET /api/v1/alerts/{id} and POST /api/v1/alerts/{id}/ack.
func (h *Handler) AlertByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/alerts/")
	if rest == "" {
		httputil.WriteError(w, http.StatusBadRequest, "alert id required")
		return
	}

	if id, ok := strings.CutSuffix(rest, "/ack"); ok {
		h.ackAlert(w, r, id)
		return
	}
	h.getAlert(w, r, rest)
}

func (h *Handler) getAlert(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	alert, err := h.guard.GetAlert(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrAlertNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "alert not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to get alert", "error", err.Error())
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, alert)
}

func (h *Handler) ackAlert(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		// The route guard runs first; this is a belt check.
		httputil.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	alert, err := h.guard.AckAlert(r.Context(), id, identity)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAlertNotFound):
			httputil.WriteError(w, http.StatusNotFound, "alert not found")
		case errors.Is(err, repository.ErrAlertAcknowledged):
			httputil.WriteError(w, http.StatusConflict, "alert already acknowledged")
		default:
			h.logger.ErrorContext(r.Context(), "failed to acknowledge alert", "error", err.Error())
			httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	httputil.WriteJSON(w, http.StatusOK, alert)
}
