package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/cantolico/guard/internal/models"
)

// Channel defines the interface for alert notification delivery.
type Channel interface {
	Send(ctx context.Context, alert *models.SecurityAlert) error
	Type() string
}

// EmailChannel notifies the admin list by email via SMTP.
type EmailChannel struct {
	Host       string
	Port       int
	From       string
	Recipients []string
	auth       smtp.Auth
}

// NewEmailChannel creates an SMTP notification channel. Auth is optional;
// pass empty username to send unauthenticated (local relay).
func NewEmailChannel(host string, port int, from, username, password string, recipients []string) *EmailChannel {
	ch := &EmailChannel{
		Host:       host,
		Port:       port,
		From:       from,
		Recipients: recipients,
	}
	if username != "" {
		ch.auth = smtp.PlainAuth("", username, password, host)
	}
	return ch
}

func (e *EmailChannel) Type() string {
	return "email"
}

func (e *EmailChannel) Send(_ context.Context, alert *models.SecurityAlert) error {
	if len(e.Recipients) == 0 {
		return fmt.Errorf("no recipients configured")
	}

	subject := fmt.Sprintf("[Cantólico] Security alert: %s (%s)", alert.EventType, alert.Severity)

	var body bytes.Buffer
	fmt.Fprintf(&body, "From: %s\r\n", e.From)
	fmt.Fprintf(&body, "To: %s\r\n", strings.Join(e.Recipients, ", "))
	fmt.Fprintf(&body, "Subject: %s\r\n", subject)
	body.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&body, "Alert %s\r\n\r\n", alert.ID)
	fmt.Fprintf(&body, "Reason:    %s\r\n", alert.Reason)
	fmt.Fprintf(&body, "Severity:  %s\r\n", alert.Severity)
	fmt.Fprintf(&body, "Actor:     %s\r\n", alert.ActorKey)
	fmt.Fprintf(&body, "Events:    %d\r\n", len(alert.EventIDs))
	fmt.Fprintf(&body, "Raised at: %s\r\n", alert.CreatedAt.UTC().Format(time.RFC3339))

	addr := fmt.Sprintf("%s:%d", e.Host, e.Port)
	if err := smtp.SendMail(addr, e.auth, e.From, e.Recipients, body.Bytes()); err != nil {
		return fmt.Errorf("send alert email: %w", err)
	}

	return nil
}

// WebhookChannel sends alert notifications via HTTP POST.
type WebhookChannel struct {
	URL     string
	Timeout time.Duration
	client  *http.Client
}

// NewWebhookChannel creates a webhook notification channel.
func NewWebhookChannel(url string, timeout time.Duration) *WebhookChannel {
	return &WebhookChannel{
		URL:     url,
		Timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (w *WebhookChannel) Type() string {
	return "webhook"
}

func (w *WebhookChannel) Send(ctx context.Context, alert *models.SecurityAlert) error {
	payload := map[string]interface{}{
		"alert_id":    alert.ID,
		"reason":      alert.Reason,
		"severity":    alert.Severity,
		"actor_key":   alert.ActorKey,
		"event_type":  alert.EventType,
		"event_ids":   alert.EventIDs,
		"event_count": len(alert.EventIDs),
		"timestamp":   alert.CreatedAt.UTC().Format(time.RFC3339),
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Cantolico-Guard/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// LogChannel writes alert notifications to logs (for testing/debugging).
type LogChannel struct {
	logger func(format string, v ...interface{})
}

// NewLogChannel creates a log-based notification channel.
func NewLogChannel(logger func(format string, v ...interface{})) *LogChannel {
	return &LogChannel{logger: logger}
}

func (l *LogChannel) Type() string {
	return "log"
}

func (l *LogChannel) Send(_ context.Context, alert *models.SecurityAlert) error {
	l.logger("SECURITY ALERT: %s (id=%s, severity=%s, actor=%s, events=%d)",
		alert.Reason, alert.ID, alert.Severity, alert.ActorKey, len(alert.EventIDs))
	return nil
}

// MultiChannel sends notifications to multiple channels.
type MultiChannel struct {
	channels []Channel
}

// NewMultiChannel creates a notification channel that fans out to multiple channels.
func NewMultiChannel(channels ...Channel) *MultiChannel {
	return &MultiChannel{channels: channels}
}

func (m *MultiChannel) Type() string {
	return "multi"
}

func (m *MultiChannel) Send(ctx context.Context, alert *models.SecurityAlert) error {
	var lastErr error
	successCount := 0

	for _, ch := range m.channels {
		if err := ch.Send(ctx, alert); err != nil {
			lastErr = fmt.Errorf("%s channel failed: %w", ch.Type(), err)
		} else {
			successCount++
		}
	}

	if successCount == 0 && len(m.channels) > 0 {
		return fmt.Errorf("all notification channels failed: %w", lastErr)
	}

	return nil
}
