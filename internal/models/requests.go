package models

// SecurityEventInput is the wire form of a security event accepted by the
// internal log endpoint and by the audit writer. Severity and EventType are
// validated by the writer, not here.
type SecurityEventInput struct {
	Message   string                 `json:"message"`
	Severity  Severity               `json:"severity,omitempty"`
	EventType string                 `json:"eventType"`
	ActorID   *int64                 `json:"actorId,omitempty"`
	IPAddress string                 `json:"ipAddress,omitempty"`
	UserAgent string                 `json:"userAgent,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

type AckAlertRequest struct {
	// Empty body today; the acknowledging admin comes from the session.
}

type ListEventsRequest struct {
	ActorID   *int64
	EventType string
	From      string
	To        string
	Limit     int
}
