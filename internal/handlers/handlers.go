// Package handlers wires the HTTP surface of the guard service: the
// internal event sink, authentication, and the admin alert and event APIs.
package handlers

import (
	"net/http"

	"github.com/cantolico/guard/internal/audit"
	"github.com/cantolico/guard/internal/httputil"
	"github.com/cantolico/guard/internal/logging"
	"github.com/cantolico/guard/internal/service"
)

type Handler struct {
	auth   *service.AuthService
	guard  *service.GuardService
	writer *audit.Writer
	logger *logging.Logger
}

func NewHandler(auth *service.AuthService, guard *service.GuardService, writer *audit.Writer, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		auth:   auth,
		guard:  guard,
		writer: writer,
		logger: logger,
	}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
