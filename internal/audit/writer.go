// Package audit persists security events. Recording is best-effort by
// contract: a storage outage must never crash or fail the request being
// audited, so Record retries once and then falls back to the process log.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/cantolico/guard/internal/logging"
	"github.com/cantolico/guard/internal/metrics"
	"github.com/cantolico/guard/internal/models"
)

// EventStore is the slice of the repository the writer needs.
type EventStore interface {
	InsertSecurityEvent(ctx context.Context, event *models.SecurityEvent) error
}

// Escalator evaluates a freshly recorded event for alerting.
type Escalator interface {
	Evaluate(ctx context.Context, event *models.SecurityEvent) (*models.SecurityAlert, error)
}

// Config tunes the writer's storage behavior.
type Config struct {
	WriteTimeout time.Duration
	RetryBackoff time.Duration
}

// Writer records security events durably and hands them to the escalator.
type Writer struct {
	store        EventStore
	escalator    Escalator
	logger       *logging.Logger
	writeTimeout time.Duration
	retryBackoff time.Duration
}

// NewWriter creates a security event writer. escalator may be nil.
func NewWriter(store EventStore, escalator Escalator, logger *logging.Logger, cfg Config) *Writer {
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 3 * time.Second
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 250 * time.Millisecond
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Writer{
		store:        store,
		escalator:    escalator,
		logger:       logger,
		writeTimeout: cfg.WriteTimeout,
		retryBackoff: cfg.RetryBackoff,
	}
}

// Record validates and persists a security event, then evaluates it for
// escalation. It never returns an error: on storage failure the write is
// retried once, and if that also fails the event is emitted to the process
// log so the signal survives.
//
// The write continues even if the caller's context is cancelled; a client
// disconnect must not truncate the audit trail.
func (w *Writer) Record(ctx context.Context, input *models.SecurityEventInput) *models.SecurityEvent {
	event := w.build(input)

	ctx = context.WithoutCancel(ctx)
	persisted := w.persist(ctx, event)

	metrics.EventsRecorded.WithLabelValues(event.EventType, string(event.Severity)).Inc()

	if w.escalator != nil && persisted {
		if _, err := w.escalator.Evaluate(ctx, event); err != nil {
			w.logger.ErrorContext(ctx, "alert evaluation failed",
				logging.EventID(event.ID),
				logging.Err(err),
			)
		}
	}

	return event
}

// build normalizes the input into an immutable event record. Unknown event
// types are coerced, not rejected: losing a security signal is worse than
// recording it under a generic type.
func (w *Writer) build(input *models.SecurityEventInput) *models.SecurityEvent {
	eventType := input.EventType
	metadata := input.Metadata
	if !models.KnownEventType(eventType) {
		if metadata == nil {
			metadata = map[string]interface{}{}
		}
		metadata["original_event_type"] = eventType
		eventType = models.EventUnknown
	}

	severity := input.Severity
	if !severity.Valid() {
		severity = models.DefaultSeverity(eventType)
	}

	id, _ := uuid.NewV7()
	return &models.SecurityEvent{
		ID:         id.String(),
		EventType:  eventType,
		Severity:   severity,
		Message:    input.Message,
		ActorID:    input.ActorID,
		IPAddress:  input.IPAddress,
		UserAgent:  input.UserAgent,
		Metadata:   metadata,
		OccurredAt: time.Now().UTC(),
	}
}

// persist writes the event with one retry, falling back to the process log.
// Returns whether a durable row exists.
func (w *Writer) persist(ctx context.Context, event *models.SecurityEvent) bool {
	start := time.Now()
	err := w.insert(ctx, event)
	if err == nil {
		metrics.EventWriteDuration.Observe(time.Since(start).Seconds())
		return true
	}

	metrics.EventWriteRetries.Inc()
	w.logger.WarnContext(ctx, "security event write failed, retrying",
		logging.EventID(event.ID),
		logging.Err(err),
	)

	time.Sleep(w.retryBackoff)

	if err := w.insert(ctx, event); err != nil {
		w.fallback(ctx, event, err)
		return false
	}

	metrics.EventWriteDuration.Observe(time.Since(start).Seconds())
	return true
}

func (w *Writer) insert(ctx context.Context, event *models.SecurityEvent) error {
	ctx, cancel := context.WithTimeout(ctx, w.writeTimeout)
	defer cancel()
	return w.store.InsertSecurityEvent(ctx, event)
}

// fallback emits the full event to the process log after storage has
// failed twice. The row is lost but the signal is not.
func (w *Writer) fallback(ctx context.Context, event *models.SecurityEvent, cause error) {
	metrics.EventWriteFallbacks.Inc()

	payload, marshalErr := json.Marshal(event)
	if marshalErr != nil {
		payload = []byte(event.EventType + " " + event.Message)
	}

	w.logger.ErrorContext(ctx, "security event storage unavailable, emitting to fallback log",
		logging.EventID(event.ID),
		logging.EventType(event.EventType),
		logging.Severity(string(event.Severity)),
		logging.Err(cause),
	)
	w.logger.ErrorContext(ctx, "SECURITY_EVENT_FALLBACK "+string(payload))
}
