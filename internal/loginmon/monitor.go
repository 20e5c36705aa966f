// Package loginmon tracks failed authentication attempts per account or
// source IP and locks the key out after repeated failures. Counters and
// locks live in Redis so that every serving instance sees the same state.
package loginmon

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cantolico/guard/internal/logging"
	"github.com/cantolico/guard/internal/metrics"
	"github.com/cantolico/guard/internal/models"
)

// State of a tracked key.
type State int

const (
	StateClean State = iota
	StateWatching
	StateLocked
)

func (s State) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateWatching:
		return "watching"
	case StateLocked:
		return "locked"
	}
	return "unknown"
}

// Recorder persists the synthesized lockout event.
type Recorder interface {
	Record(ctx context.Context, input *models.SecurityEventInput) *models.SecurityEvent
}

// Config tunes failure counting and lockout. LockoutDuration is deliberately
// separate from FailureWindow.
type Config struct {
	FailureWindow    time.Duration
	FailureThreshold int
	LockoutDuration  time.Duration
}

// Monitor is the per-key login failure state machine.
type Monitor struct {
	redis     *redis.Client
	recorder  Recorder
	logger    *logging.Logger
	window    time.Duration
	threshold int
	lockout   time.Duration
}

// NewMonitor creates a login monitor. recorder may be nil (no lockout event
// is synthesized, the lock itself still applies).
func NewMonitor(redisClient *redis.Client, recorder Recorder, logger *logging.Logger, cfg Config) *Monitor {
	if cfg.FailureWindow == 0 {
		cfg.FailureWindow = 15 * time.Minute
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.LockoutDuration == 0 {
		cfg.LockoutDuration = cfg.FailureWindow
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Monitor{
		redis:     redisClient,
		recorder:  recorder,
		logger:    logger,
		window:    cfg.FailureWindow,
		threshold: cfg.FailureThreshold,
		lockout:   cfg.LockoutDuration,
	}
}

// Key identifies the tracked principal: the account when known, otherwise
// the source IP.
func Key(actorID *int64, ip string) string {
	if actorID != nil {
		return fmt.Sprintf("actor:%d", *actorID)
	}
	return "ip:" + ip
}

// IsLocked reports whether the key is currently locked out.
func (m *Monitor) IsLocked(ctx context.Context, key string) (bool, error) {
	n, err := m.redis.Exists(ctx, m.lockKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check lockout: %w", err)
	}
	return n > 0, nil
}

// RecordFailure registers a failed login attempt and returns the resulting
// state. Crossing the failure threshold locks the key and synthesizes a
// HIGH severity lockout event; the SET NX on the lock key guarantees a
// single lockout event per transition even under concurrent failures.
func (m *Monitor) RecordFailure(ctx context.Context, key string, actorID *int64, ip, userAgent string) (State, error) {
	metrics.LoginFailures.Inc()

	locked, err := m.IsLocked(ctx, key)
	if err != nil {
		return StateClean, err
	}
	if locked {
		return StateLocked, nil
	}

	count, err := m.redis.Incr(ctx, m.failKey(key)).Result()
	if err != nil {
		return StateClean, fmt.Errorf("failed to count login failure: %w", err)
	}
	if count == 1 {
		if err := m.redis.Expire(ctx, m.failKey(key), m.window).Err(); err != nil {
			return StateWatching, fmt.Errorf("failed to start failure window: %w", err)
		}
	}

	if count < int64(m.threshold) {
		return StateWatching, nil
	}

	won, err := m.redis.SetNX(ctx, m.lockKey(key), time.Now().UTC().Format(time.RFC3339), m.lockout).Result()
	if err != nil {
		return StateWatching, fmt.Errorf("failed to set lockout: %w", err)
	}
	if !won {
		return StateLocked, nil
	}

	// The counter has done its job; the lock key owns the state now.
	m.redis.Del(ctx, m.failKey(key))

	metrics.Lockouts.Inc()
	m.logger.WarnContext(ctx, "login lockout triggered",
		logging.ActorKey(key),
		logging.IP(ip),
	)

	if m.recorder != nil {
		m.recorder.Record(ctx, &models.SecurityEventInput{
			Message:   fmt.Sprintf("login locked out after %d failures within %s", count, m.window),
			EventType: models.EventLoginLockout,
			Severity:  models.SeverityHigh,
			ActorID:   actorID,
			IPAddress: ip,
			UserAgent: userAgent,
			Metadata: map[string]interface{}{
				"failure_count":    count,
				"lockout_duration": m.lockout.String(),
			},
		})
	}

	return StateLocked, nil
}

// RecordSuccess resets the failure counter for the key. A successful login
// returns the key to Clean.
func (m *Monitor) RecordSuccess(ctx context.Context, key string) error {
	if err := m.redis.Del(ctx, m.failKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to reset failure counter: %w", err)
	}
	return nil
}

// CurrentState inspects the key without mutating it.
func (m *Monitor) CurrentState(ctx context.Context, key string) (State, error) {
	locked, err := m.IsLocked(ctx, key)
	if err != nil {
		return StateClean, err
	}
	if locked {
		return StateLocked, nil
	}

	n, err := m.redis.Exists(ctx, m.failKey(key)).Result()
	if err != nil {
		return StateClean, fmt.Errorf("failed to check failure counter: %w", err)
	}
	if n > 0 {
		return StateWatching, nil
	}
	return StateClean, nil
}

// Unlock clears the lock and counter for a key. Admin remediation hook.
func (m *Monitor) Unlock(ctx context.Context, key string) error {
	if err := m.redis.Del(ctx, m.lockKey(key), m.failKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to unlock key: %w", err)
	}
	return nil
}

func (m *Monitor) failKey(key string) string {
	return "guard:login:fail:" + key
}

func (m *Monitor) lockKey(key string) string {
	return "guard:login:lock:" + key
}
