// Package contracts defines the service interfaces at the boundary of
// the DineHall agent gateway.
//
// The gateway decides whether and how a tool call is allowed; everything
// that actually executes or persists lives behind these interfaces. The
// backend client is a single chokepoint, which makes it the natural place
// for cross-cutting audit logging.
package contracts

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dinehall/dinehall/gateway/pkg/models"
)

// ── Backend Client ──────────────────────────────────────────

// Backend executes a validated tool call against the platform backend.
// Implementations must preserve the contract exactly: tool name, validated
// input, and context in; typed result out; error on failure. Wrappers
// never retry — retry policy belongs to the caller or the backend.
type Backend interface {
	ExecuteTool(ctx context.Context, toolName string, input json.RawMessage, cc models.ClientContext) (json.RawMessage, error)
}

// ── Session Control ─────────────────────────────────────────

// SessionControl applies blocks and cooldowns to guest sessions. The
// gateway treats these as possibly-failing remote calls: a failure here
// must never prevent the allow/deny verdict from reaching the caller.
type SessionControl interface {
	// BlockSession blocks the session for the given duration.
	BlockSession(ctx context.Context, sessionKey string, d time.Duration) error

	// IsBlocked reports whether the session is currently blocked.
	IsBlocked(ctx context.Context, sessionKey string) (bool, error)

	// Cooldown applies a rate-limit cooldown to the session.
	Cooldown(ctx context.Context, sessionKey string, d time.Duration) error

	// AllowMessage consumes one message from the session's rate budget.
	AllowMessage(ctx context.Context, sessionKey string) (bool, error)
}

// ── Notifier ────────────────────────────────────────────────

// Notifier delivers escalation events to the admin channel.
type Notifier interface {
	EscalateIncident(ctx context.Context, incident *models.Incident) error
}
