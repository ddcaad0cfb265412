// Package policy maps detection severities to concrete response actions
// and applies their side effects. The action table is static data: any
// change to it ships as a deploy, which keeps the response posture
// auditable.
package policy

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dinehall/dinehall/gateway/internal/incident"
	"github.com/dinehall/dinehall/gateway/pkg/contracts"
	"github.com/dinehall/dinehall/gateway/pkg/models"
)

// actionTable is the severity → response mapping. Restriction is
// monotonic in severity: no field loosens as severity increases.
var actionTable = map[models.Severity]models.ResponseAction{
	models.SeverityLow: {},
	models.SeverityMedium: {
		LogIncident:      true,
		RateLimit:        true,
		RateLimitSeconds: 30,
		UserMessageKey:   "rate_limited",
	},
	models.SeverityHigh: {
		Block:                true,
		BlockDurationMinutes: 15,
		LogIncident:          true,
		RateLimit:            true,
		RateLimitSeconds:     60,
		UserMessageKey:       "injection_refusal",
	},
	models.SeverityCritical: {
		Block:                true,
		BlockDurationMinutes: 60,
		LogIncident:          true,
		EscalateToAdmin:      true,
		RateLimit:            true,
		RateLimitSeconds:     300,
		RequireReauth:        true,
		UserMessageKey:       "blocked",
	},
}

// ActionFor returns the response action for a severity. Unknown
// severities are treated as low.
func ActionFor(severity models.Severity) models.ResponseAction {
	if action, ok := actionTable[severity]; ok {
		return action
	}
	return actionTable[models.SeverityLow]
}

// ── Engine ──────────────────────────────────────────────────

// Engine applies response actions. All side effects are best-effort
// relative to the allow/deny verdict: a failing collaborator is logged
// and skipped, never propagated, because the chat surface staying up
// outweighs audit completeness.
type Engine struct {
	ledger   *incident.Ledger
	sessions contracts.SessionControl
	notifier contracts.Notifier
}

// NewEngine creates a policy engine over its collaborators. Sessions and
// notifier may be nil; the corresponding side effects are then skipped.
func NewEngine(ledger *incident.Ledger, sessions contracts.SessionControl, notifier contracts.Notifier) *Engine {
	return &Engine{ledger: ledger, sessions: sessions, notifier: notifier}
}

// Apply executes the side effects of an action for one detection:
// incident creation, session block, cooldown, and admin escalation, each
// gated by its own flag. It returns the created incident's id, or ""
// when no incident was logged.
func (e *Engine) Apply(ctx context.Context, action models.ResponseAction, detection models.DetectionResult, cc models.ClientContext, excerpt string) string {
	if !action.LogIncident {
		return ""
	}

	var incidentID string
	inc, err := e.ledger.Create(ctx, detection, cc, excerpt)
	if err != nil {
		log.Error().Err(err).Str("tenant", cc.TenantID).Msg("incident creation failed; continuing")
	} else {
		incidentID = inc.ID
	}

	if action.Block && e.sessions != nil {
		d := time.Duration(action.BlockDurationMinutes) * time.Minute
		if err := e.sessions.BlockSession(ctx, cc.SessionKey, d); err != nil {
			log.Error().Err(err).Str("session", cc.SessionKey).Msg("session block failed; continuing")
		}
	}

	if action.RateLimit && e.sessions != nil {
		d := time.Duration(action.RateLimitSeconds) * time.Second
		if err := e.sessions.Cooldown(ctx, cc.SessionKey, d); err != nil {
			log.Error().Err(err).Str("session", cc.SessionKey).Msg("cooldown failed; continuing")
		}
	}

	if action.EscalateToAdmin && e.notifier != nil && inc != nil {
		if err := e.notifier.EscalateIncident(ctx, inc); err != nil {
			log.Error().Err(err).Str("incident", inc.ID).Msg("admin escalation failed; continuing")
		}
	}

	return incidentID
}
