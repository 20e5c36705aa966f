package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/cantolico/guard/internal/httputil"
	"github.com/cantolico/guard/internal/models"
)

// PostSecurityEvent is the sink for the edge forwarder. The body carries the
// well-known event fields at the top level; any unrecognized keys are folded
// into the event metadata, so edge callers can spread extra context inline.
func (h *Handler) PostSecurityEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input, err := decodeEventInput(raw)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if input.IPAddress == "" {
		input.IPAddress = httputil.GetClientIP(r)
	}
	if input.UserAgent == "" {
		input.UserAgent = r.Header.Get("User-Agent")
	}

	h.writer.Record(r.Context(), input)
	httputil.WriteSuccess(w)
}

func decodeEventInput(raw map[string]json.RawMessage) (*models.SecurityEventInput, error) {
	input := &models.SecurityEventInput{}

	scalar := map[string]interface{}{
		"message":   &input.Message,
		"severity":  &input.Severity,
		"eventType": &input.EventType,
		"actorId":   &input.ActorID,
		"ipAddress": &input.IPAddress,
		"userAgent": &input.UserAgent,
	}
	for key, dst := range scalar {
		if v, ok := raw[key]; ok {
			if err := json.Unmarshal(v, dst); err != nil {
				return nil, err
			}
			delete(raw, key)
		}
	}

	metadata := make(map[string]interface{})
	if v, ok := raw["metadata"]; ok {
		if err := json.Unmarshal(v, &metadata); err != nil {
			return nil, err
		}
		delete(raw, "metadata")
	}
	// Remaining top-level keys are treated as inline metadata.
	for key, v := range raw {
		var value interface{}
		if err := json.Unmarshal(v, &value); err != nil {
			return nil, err
		}
		metadata[key] = value
	}
	if len(metadata) > 0 {
		input.Metadata = metadata
	}
	return input, nil
}
