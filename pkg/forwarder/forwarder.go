// Package forwarder is the client side of the security log endpoint. It is
// meant to be called from request paths that must never slow down or fail
// because of telemetry, so sends are asynchronous and errors are swallowed
// after logging.
package forwarder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cantolico/guard/internal/models"
)

const defaultTimeout = 2 * time.Second

// Client ships security events to the guard service.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	wg      sync.WaitGroup
}

// New creates a forwarder client. token is optional; when set it is sent as
// a bearer token on every request.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		client: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// Forward sends the event in a detached goroutine and returns immediately.
// Delivery failures are logged and dropped. The caller's request is never
// blocked or failed by this call.
func (c *Client) Forward(input *models.SecurityEventInput) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.send(input); err != nil {
			slog.Warn("failed to forward security event",
				slog.String("event_type", input.EventType),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// ForwardSync sends the event on the calling goroutine. Intended for
// shutdown paths that want the event delivered before exiting.
func (c *Client) ForwardSync(input *models.SecurityEventInput) error {
	return c.send(input)
}

// Wait blocks until all in-flight forwards have completed. Test hook and
// shutdown drain.
func (c *Client) Wait() {
	c.wg.Wait()
}

func (c *Client) send(input *models.SecurityEventInput) error {
	body, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/internal/logs/security", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach security log endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("security log endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
