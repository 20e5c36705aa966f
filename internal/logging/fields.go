package logging

import "log/slog"

// Common field names for consistent logging across the service.
const (
	FieldService   = "service"
	FieldActorID   = "actor_id"
	FieldActorKey  = "actor_key"
	FieldIP        = "ip"
	FieldEventID   = "event_id"
	FieldEventType = "event_type"
	FieldSeverity  = "severity"
	FieldAlertID   = "alert_id"
	FieldError     = "error"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// ActorID returns a slog attribute for the acting user's id.
func ActorID(id int64) slog.Attr {
	return slog.Int64(FieldActorID, id)
}

// ActorKey returns a slog attribute for the escalation key.
func ActorKey(key string) slog.Attr {
	return slog.String(FieldActorKey, key)
}

// IP returns a slog attribute for the source IP address.
func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

// EventID returns a slog attribute for the security event id.
func EventID(id string) slog.Attr {
	return slog.String(FieldEventID, id)
}

// EventType returns a slog attribute for the security event type.
func EventType(t string) slog.Attr {
	return slog.String(FieldEventType, t)
}

// Severity returns a slog attribute for the event or alert severity.
func Severity(s string) slog.Attr {
	return slog.String(FieldSeverity, s)
}

// AlertID returns a slog attribute for the alert id.
func AlertID(id string) slog.Attr {
	return slog.String(FieldAlertID, id)
}

// Err returns a slog attribute for an error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}
