// Package notify delivers admin escalation events over an HTTP webhook
// with optional HMAC-SHA256 signing. The webhook is the built-in channel;
// other channels (Slack, email) can be added behind contracts.Notifier.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/dinehall/dinehall/gateway/pkg/models"
)

// escalationEvent is the webhook payload for one escalated incident.
// Note fields are already sanitized by the ledger, so forwarding them is
// safe.
type escalationEvent struct {
	Type       string    `json:"type"`
	IncidentID string    `json:"incident_id"`
	TenantID   string    `json:"tenant_id"`
	Severity   string    `json:"severity"`
	Triggers   []string  `json:"triggers"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
}

// WebhookNotifier posts escalation events to the admin channel URL.
type WebhookNotifier struct {
	url    string
	secret string
	client *http.Client

	// maxElapsed caps the retry window per delivery.
	maxElapsed time.Duration
}

// NewWebhookNotifier creates a notifier for the given webhook URL. An
// empty secret disables request signing.
func NewWebhookNotifier(url, secret string) *WebhookNotifier {
	return &WebhookNotifier{
		url:        url,
		secret:     secret,
		client:     &http.Client{Timeout: 15 * time.Second},
		maxElapsed: 30 * time.Second,
	}
}

// EscalateIncident delivers an incident escalation, retrying with
// exponential backoff until the retry window closes or the context is
// cancelled.
func (n *WebhookNotifier) EscalateIncident(ctx context.Context, inc *models.Incident) error {
	event := escalationEvent{
		Type:       "incident_escalated",
		IncidentID: inc.ID,
		TenantID:   inc.TenantID,
		Severity:   string(inc.Severity),
		Triggers:   inc.Triggers,
		Status:     string(inc.Status),
		Timestamp:  time.Now().UTC(),
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal escalation event: %w", err)
	}

	policy := backoff.WithContext(
		backoff.NewExponentialBackOff(backoff.WithMaxElapsedTime(n.maxElapsed)), ctx)
	err = backoff.Retry(func() error {
		return n.post(ctx, body)
	}, policy)
	if err != nil {
		return fmt.Errorf("escalate incident %s: %w", inc.ID, err)
	}

	log.Info().Str("incident", inc.ID).Str("severity", event.Severity).Msg("escalation delivered")
	return nil
}

func (n *WebhookNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build webhook request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "DineHall-Gateway/1.0")
	if n.secret != "" {
		mac := hmac.New(sha256.New, []byte(n.secret))
		mac.Write(body)
		req.Header.Set("X-DineHall-Signature", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// Client errors will not heal on retry.
		return backoff.Permanent(fmt.Errorf("webhook HTTP %d", resp.StatusCode))
	default:
		return fmt.Errorf("webhook HTTP %d", resp.StatusCode)
	}
}
