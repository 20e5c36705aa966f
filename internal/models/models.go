package models

import (
	"strconv"
	"time"
)

// Role is the catalog-wide user role. Role comparisons happen only in the
// authz package; everything else treats Role as opaque.
type Role string

const (
	RoleUser     Role = "user"
	RoleTrusted  Role = "trusted"
	RoleReviewer Role = "reviewer"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleTrusted, RoleReviewer, RoleAdmin:
		return true
	}
	return false
}

// Identity is the authenticated user context attached to a request.
// It is immutable for the lifetime of the request.
type Identity struct {
	ID    int64  `json:"id"`
	Role  Role   `json:"role"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Severity levels for security events and alerts.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// Security event types. Unknown inbound types are coerced to
// EventUnknown rather than rejected so that a signal is never dropped.
const (
	EventUnauthorizedAccess = "unauthorized_access"
	EventForbiddenAccess    = "forbidden_access"
	EventLoginFailure       = "login_failure"
	EventLoginSuccess       = "login_success"
	EventLoginLockout       = "login_lockout"
	EventAccountChange      = "account_change"
	EventContentModeration  = "content_moderation"
	EventUnknown            = "unknown_event"
)

// severityByType assigns the default severity for each known event type.
var severityByType = map[string]Severity{
	EventUnauthorizedAccess: SeverityMedium,
	EventForbiddenAccess:    SeverityMedium,
	EventLoginFailure:       SeverityLow,
	EventLoginSuccess:       SeverityLow,
	EventLoginLockout:       SeverityHigh,
	EventAccountChange:      SeverityMedium,
	EventContentModeration:  SeverityLow,
	EventUnknown:            SeverityMedium,
}

// KnownEventType reports whether t is one of the recognized event types.
func KnownEventType(t string) bool {
	_, ok := severityByType[t]
	return ok
}

// DefaultSeverity returns the severity assigned to an event type when the
// caller did not supply one.
func DefaultSeverity(eventType string) Severity {
	if s, ok := severityByType[eventType]; ok {
		return s
	}
	return severityByType[EventUnknown]
}

// SecurityEvent is an immutable audit record of a security-relevant
// occurrence. Rows are append-only and never mutated after creation.
type SecurityEvent struct {
	ID         string                 `json:"id"`
	EventType  string                 `json:"event_type"`
	Severity   Severity               `json:"severity"`
	Message    string                 `json:"message"`
	ActorID    *int64                 `json:"actor_id,omitempty"`
	IPAddress  string                 `json:"ip_address,omitempty"`
	UserAgent  string                 `json:"user_agent,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// ActorKey returns the escalation key for the event: the actor id when
// present, otherwise the source IP.
func (e *SecurityEvent) ActorKey() string {
	if e.ActorID != nil {
		return "actor:" + strconv.FormatInt(*e.ActorID, 10)
	}
	if e.IPAddress != "" {
		return "ip:" + e.IPAddress
	}
	return "unknown"
}

// SecurityAlert summarizes one or more events that crossed a risk
// threshold. Alerts are mutable only through acknowledgement.
type SecurityAlert struct {
	ID             string     `json:"id"`
	EventIDs       []string   `json:"event_ids"`
	Reason         string     `json:"reason"`
	Severity       Severity   `json:"severity"`
	ActorKey       string     `json:"actor_key"`
	EventType      string     `json:"event_type"`
	CreatedAt      time.Time  `json:"created_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	AcknowledgedBy *int64     `json:"acknowledged_by,omitempty"`
}

// Open reports whether the alert has not yet been acknowledged.
func (a *SecurityAlert) Open() bool {
	return a.AcknowledgedAt == nil
}

// User is a catalog account. Only the fields the guard service needs for
// authentication and role resolution are modeled here.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsActive reports whether the account may authenticate.
func (u *User) IsActive() bool {
	return u.Enabled
}
