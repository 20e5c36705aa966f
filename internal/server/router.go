package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cantolico/guard/internal/authz"
	"github.com/cantolico/guard/internal/handlers"
	"github.com/cantolico/guard/internal/middleware"
	"github.com/cantolico/guard/pkg/tokens"
)

// NewRouter constructs the guard service routes. The internal event sink is
// unauthenticated and relies on network-level isolation; the admin and
// review APIs sit behind role guards.
func NewRouter(h *handlers.Handler, tg *tokens.TokenGenerator, guard *middleware.Guard) http.Handler {
	mux := http.NewServeMux()

	// Edge forwarder sink.
	mux.HandleFunc("/internal/logs/security", h.PostSecurityEvent)

	// Authentication.
	mux.HandleFunc("/api/v1/auth/login", h.Login)
	mux.HandleFunc("/api/v1/auth/logout", h.Logout)
	mux.HandleFunc("/api/v1/auth/register", h.Register)
	mux.HandleFunc("/api/v1/auth/me", h.Me)

	// Alert remediation is admin-only.
	mux.HandleFunc("/api/v1/alerts", guard.Require(authz.AdminOnly(), h.ListAlerts))
	mux.HandleFunc("/api/v1/alerts/", guard.Require(authz.AdminOnly(), h.AlertByID))

	// The event log is readable by reviewers and admins.
	mux.HandleFunc("/api/v1/events", guard.Require(authz.ReviewerOrAdmin(), h.ListEvents))
	mux.HandleFunc("/api/v1/events/", guard.Require(authz.ReviewerOrAdmin(), h.EventByID))

	mux.HandleFunc("/healthz", h.HealthCheck)
	mux.Handle("/metrics", promhttp.Handler())

	var handler http.Handler = mux
	handler = middleware.Session(tg)(handler)
	handler = middleware.RequestID(handler)
	return handler
}
