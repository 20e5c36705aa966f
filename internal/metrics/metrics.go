package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Security event metrics
	EventsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guard_security_events_total",
			Help: "Total number of security events recorded",
		},
		[]string{"event_type", "severity"},
	)

	EventWriteRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "guard_security_event_write_retries_total",
			Help: "Total number of retried security event writes",
		},
	)

	EventWriteFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "guard_security_event_write_fallbacks_total",
			Help: "Total number of security events emitted to the fallback log after storage failure",
		},
	)

	EventWriteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "guard_security_event_write_duration_seconds",
			Help:    "Duration of security event storage writes in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Alert metrics
	AlertsRaised = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guard_alerts_raised_total",
			Help: "Total number of security alerts raised",
		},
		[]string{"severity"},
	)

	AlertsDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "guard_alerts_deduplicated_total",
			Help: "Total number of alert evaluations suppressed by an existing open alert",
		},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guard_notifications_sent_total",
			Help: "Total number of alert notifications dispatched",
		},
		[]string{"channel", "status"},
	)

	// Login monitor metrics
	LoginFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "guard_login_failures_total",
			Help: "Total number of failed login attempts observed",
		},
	)

	Lockouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "guard_lockouts_total",
			Help: "Total number of login lockouts triggered",
		},
	)

	// Authorization metrics
	AuthzDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guard_authz_denials_total",
			Help: "Total number of authorization denials",
		},
		[]string{"reason"},
	)
)
