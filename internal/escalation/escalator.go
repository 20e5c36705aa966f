// Package escalation turns recorded security events into alerts. State that
// must be shared across serving instances (repeat counters, dedup markers)
// lives in Redis; alert rows live in the durable store.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/cantolico/guard/internal/dispatch"
	"github.com/cantolico/guard/internal/logging"
	"github.com/cantolico/guard/internal/metrics"
	"github.com/cantolico/guard/internal/models"
	"github.com/cantolico/guard/internal/repository"
)

// AlertStore is the slice of the repository the escalator needs.
type AlertStore interface {
	InsertSecurityAlert(ctx context.Context, alert *models.SecurityAlert) error
	FindOpenAlert(ctx context.Context, actorKey, eventType string, since time.Time) (*models.SecurityAlert, error)
}

// Config tunes escalation thresholds.
type Config struct {
	// Window is the rolling window for repeat counting and alert dedup.
	Window time.Duration
	// RepeatThreshold is the number of MEDIUM deny events for the same
	// actor/IP within Window that raises an alert.
	RepeatThreshold int
}

// Escalator evaluates security events against the escalation rules.
type Escalator struct {
	redis      *redis.Client
	store      AlertStore
	dispatcher dispatch.Dispatcher
	logger     *logging.Logger
	window     time.Duration
	threshold  int
}

// NewEscalator creates an escalator. dispatcher may be nil when no
// notification delivery is configured.
func NewEscalator(redisClient *redis.Client, store AlertStore, dispatcher dispatch.Dispatcher, logger *logging.Logger, cfg Config) *Escalator {
	if cfg.Window == 0 {
		cfg.Window = 15 * time.Minute
	}
	if cfg.RepeatThreshold == 0 {
		cfg.RepeatThreshold = 5
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Escalator{
		redis:      redisClient,
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
		window:     cfg.Window,
		threshold:  cfg.RepeatThreshold,
	}
}

// Evaluate applies the escalation rules to a single event:
//
//   - HIGH severity raises an alert immediately;
//   - MEDIUM unauthorized/forbidden access raises an alert once the same
//     actor or IP repeats it RepeatThreshold times within the window;
//   - everything else is ignored.
//
// Evaluating the same condition twice within a window never creates a
// second alert.
func (e *Escalator) Evaluate(ctx context.Context, event *models.SecurityEvent) (*models.SecurityAlert, error) {
	switch {
	case event.Severity == models.SeverityHigh:
		reason := fmt.Sprintf("high severity event: %s", event.EventType)
		return e.raise(ctx, event, reason, []string{event.ID})

	case event.Severity == models.SeverityMedium && isRepeatable(event.EventType):
		count, err := e.bump(ctx, event)
		if err != nil {
			return nil, fmt.Errorf("failed to count repeat events: %w", err)
		}
		if count < int64(e.threshold) {
			return nil, nil
		}
		reason := fmt.Sprintf("%s repeated %d times within %s", event.EventType, count, e.window)
		return e.raise(ctx, event, reason, []string{event.ID})
	}

	return nil, nil
}

func isRepeatable(eventType string) bool {
	return eventType == models.EventUnauthorizedAccess || eventType == models.EventForbiddenAccess
}

// bump atomically increments the repeat counter for the event's actor key.
// The counter expires with the window; a single conditional increment keeps
// two concurrent denials from both seeing threshold-1.
func (e *Escalator) bump(ctx context.Context, event *models.SecurityEvent) (int64, error) {
	key := e.counterKey(event)

	count, err := e.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := e.redis.Expire(ctx, key, e.window).Err(); err != nil {
			return 0, err
		}
	}

	return count, nil
}

// raise creates the alert exactly once per (actor key, event type, window).
// A Redis SET NX marker settles races between concurrent evaluations on any
// instance; the open-alert lookup in the store covers marker expiry against
// long-lived unacknowledged alerts.
func (e *Escalator) raise(ctx context.Context, event *models.SecurityEvent, reason string, eventIDs []string) (*models.SecurityAlert, error) {
	marker := e.dedupKey(event)

	won, err := e.redis.SetNX(ctx, marker, event.ID, e.window).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire alert marker: %w", err)
	}
	if !won {
		metrics.AlertsDeduplicated.Inc()
		return nil, nil
	}

	since := time.Now().UTC().Add(-e.window)
	if existing, err := e.store.FindOpenAlert(ctx, event.ActorKey(), event.EventType, since); err == nil && existing != nil {
		metrics.AlertsDeduplicated.Inc()
		return nil, nil
	} else if err != nil && !errors.Is(err, repository.ErrAlertNotFound) {
		e.redis.Del(ctx, marker)
		return nil, fmt.Errorf("failed to check for open alert: %w", err)
	}

	id, _ := uuid.NewV7()
	alert := &models.SecurityAlert{
		ID:        id.String(),
		EventIDs:  eventIDs,
		Reason:    reason,
		Severity:  event.Severity,
		ActorKey:  event.ActorKey(),
		EventType: event.EventType,
		CreatedAt: time.Now().UTC(),
	}

	if err := e.store.InsertSecurityAlert(ctx, alert); err != nil {
		// Release the marker so a later event can retry the alert.
		e.redis.Del(ctx, marker)
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}

	metrics.AlertsRaised.WithLabelValues(string(alert.Severity)).Inc()
	e.logger.InfoContext(ctx, "security alert raised",
		logging.AlertID(alert.ID),
		logging.ActorKey(alert.ActorKey),
		logging.EventType(alert.EventType),
		logging.Severity(string(alert.Severity)),
	)

	if e.dispatcher != nil {
		e.dispatcher.Dispatch(alert)
	}

	return alert, nil
}

func (e *Escalator) counterKey(event *models.SecurityEvent) string {
	return fmt.Sprintf("guard:esc:count:%s:%s", event.ActorKey(), event.EventType)
}

func (e *Escalator) dedupKey(event *models.SecurityEvent) string {
	return fmt.Sprintf("guard:esc:alert:%s:%s", event.ActorKey(), event.EventType)
}
