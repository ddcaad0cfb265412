// Package backend implements the HTTP client for the DineHall platform
// backend, where validated tool calls actually execute. The gateway
// treats it as a dumb pipe: no retries, no result interpretation.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dinehall/dinehall/gateway/pkg/models"
)

// HTTPBackend executes tool calls by POSTing to the platform backend's
// tool endpoint.
type HTTPBackend struct {
	baseURL string
	client  *http.Client
}

// NewHTTPBackend creates a backend client for the given base URL.
func NewHTTPBackend(baseURL string) *HTTPBackend {
	return &HTTPBackend{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type toolRequest struct {
	Tool    string               `json:"tool"`
	Input   json.RawMessage      `json:"input"`
	Context models.ClientContext `json:"context"`
}

type toolResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error,omitempty"`
}

// ExecuteTool sends one validated tool call and returns the raw result.
func (b *HTTPBackend) ExecuteTool(ctx context.Context, toolName string, input json.RawMessage, cc models.ClientContext) (json.RawMessage, error) {
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	body, err := json.Marshal(toolRequest{Tool: toolName, Input: input, Context: cc})
	if err != nil {
		return nil, fmt.Errorf("marshal tool request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/tools/execute", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build tool request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cc.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+cc.AuthToken)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute %s: %w", toolName, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", toolName, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("execute %s: backend HTTP %d", toolName, resp.StatusCode)
	}

	var out toolResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", toolName, err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("execute %s: %s", toolName, out.Error)
	}
	return out.Result, nil
}
