package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cantolico/guard/internal/models"
)

// Client talks to the guard service API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Login(email, password string) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	err := c.do(http.MethodPost, "/api/v1/auth/login", models.LoginRequest{
		Email:    email,
		Password: password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ListAlerts(onlyOpen bool, limit int) ([]*models.SecurityAlert, error) {
	q := url.Values{}
	if onlyOpen {
		q.Set("open", "true")
	}
	q.Set("limit", strconv.Itoa(limit))

	var alerts []*models.SecurityAlert
	if err := c.do(http.MethodGet, "/api/v1/alerts?"+q.Encode(), nil, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

func (c *Client) GetAlert(id string) (*models.SecurityAlert, error) {
	var alert models.SecurityAlert
	if err := c.do(http.MethodGet, "/api/v1/alerts/"+id, nil, &alert); err != nil {
		return nil, err
	}
	return &alert, nil
}

func (c *Client) AckAlert(id string) (*models.SecurityAlert, error) {
	var alert models.SecurityAlert
	if err := c.do(http.MethodPost, "/api/v1/alerts/"+id+"/ack", nil, &alert); err != nil {
		return nil, err
	}
	return &alert, nil
}

func (c *Client) ListEvents(eventType string, actorID *int64, limit int) ([]*models.SecurityEvent, error) {
	q := url.Values{}
	if eventType != "" {
		q.Set("eventType", eventType)
	}
	if actorID != nil {
		q.Set("actorId", strconv.FormatInt(*actorID, 10))
	}
	q.Set("limit", strconv.Itoa(limit))

	var events []*models.SecurityEvent
	if err := c.do(http.MethodGet, "/api/v1/events?"+q.Encode(), nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *Client) PostEvent(input *models.SecurityEventInput) error {
	return c.do(http.MethodPost, "/internal/logs/security", input, nil)
}

func (c *Client) do(method, path string, body, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	req, err := http.NewRequest(method, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
