// Package gateway is the safety entry point for free-text user turns
// and the home of the fraud/risk tools. CheckMessage is the mandatory
// pre-flight call before any agent processes a guest message.
package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dinehall/dinehall/gateway/internal/detect"
	"github.com/dinehall/dinehall/gateway/internal/incident"
	"github.com/dinehall/dinehall/gateway/internal/policy"
	"github.com/dinehall/dinehall/gateway/internal/safemsg"
	"github.com/dinehall/dinehall/gateway/internal/store"
	"github.com/dinehall/dinehall/gateway/pkg/contracts"
	"github.com/dinehall/dinehall/gateway/pkg/models"
)

// Gateway runs detection, consults policy, applies side effects, and
// returns allow/deny verdicts. Stateless per call: all mutation happens
// in its collaborators.
type Gateway struct {
	detector  *detect.Detector
	engine    *policy.Engine
	sessions  contracts.SessionControl
	ledger    *incident.Ledger
	approvals store.ApprovalStore
}

// New assembles the gateway. Sessions may be nil, which disables the
// pre-flight block and budget checks.
func New(detector *detect.Detector, engine *policy.Engine, sessions contracts.SessionControl, ledger *incident.Ledger, approvals store.ApprovalStore) *Gateway {
	return &Gateway{
		detector:  detector,
		engine:    engine,
		sessions:  sessions,
		ledger:    ledger,
		approvals: approvals,
	}
}

// CheckMessage scores one inbound message and applies the response
// policy. Blocked messages are normal results, never errors; the caller
// renders the safe message and moves on.
func (g *Gateway) CheckMessage(ctx context.Context, text string, cc models.ClientContext) models.CheckResult {
	if verdict, done := g.preflight(ctx, cc); done {
		return verdict
	}

	injection := g.detector.PromptInjection(text, &cc)
	abuse := g.detector.Abuse(text)
	det := detect.Max(injection, abuse)

	action := policy.ActionFor(det.Severity)

	// Low severity returns immediately: no incident, no side effects.
	// Keeping noise out of the ledger is deliberate volume control.
	var incidentID string
	if action.LogIncident {
		incidentID = g.engine.Apply(ctx, action, det, cc, text)
	} else {
		log.Debug().
			Str("tenant", cc.TenantID).
			Str("severity", string(det.Severity)).
			Float64("score", det.Score).
			Msg("message passed")
	}

	var message string
	if action.UserMessageKey != "" {
		message = safemsg.Get(safemsg.CategoryGuest, action.UserMessageKey)
	}

	return models.CheckResult{
		Allowed:    !det.ShouldBlock,
		Severity:   det.Severity,
		Message:    message,
		IncidentID: incidentID,
	}
}

// preflight rejects messages from blocked or over-budget sessions before
// any scoring happens. Session-control failures fail open: the message
// still gets scored, which is the stronger check.
func (g *Gateway) preflight(ctx context.Context, cc models.ClientContext) (models.CheckResult, bool) {
	if g.sessions == nil {
		return models.CheckResult{}, false
	}

	blocked, err := g.sessions.IsBlocked(ctx, cc.SessionKey)
	if err != nil {
		log.Warn().Err(err).Str("session", cc.SessionKey).Msg("block check failed; scoring anyway")
	} else if blocked {
		return models.CheckResult{
			Allowed:  false,
			Severity: models.SeverityLow,
			Message:  safemsg.Get(safemsg.CategoryGuest, "blocked"),
		}, true
	}

	ok, err := g.sessions.AllowMessage(ctx, cc.SessionKey)
	if err != nil {
		log.Warn().Err(err).Str("session", cc.SessionKey).Msg("rate check failed; scoring anyway")
	} else if !ok {
		return models.CheckResult{
			Allowed:  false,
			Severity: models.SeverityLow,
			Message:  safemsg.Get(safemsg.CategoryGuest, "rate_limited"),
		}, true
	}

	return models.CheckResult{}, false
}

// ── Order risk ──────────────────────────────────────────────

// OrderStats is the behavioral input to the order risk scorer, assembled
// by the caller from recent session activity.
type OrderStats struct {
	SubmitsLast10Min int     `json:"submits_last_10min"`
	CancelsLast10Min int     `json:"cancels_last_10min"`
	OrderTotal       float64 `json:"order_total"`
	GuestOrderCount  int     `json:"guest_order_count"`
}

// Order risk rule weights. Plain additive heuristics, no learning.
const (
	weightRapidSubmits  = 0.4
	weightCancelSpam    = 0.4
	weightHighValueNew  = 0.2
	rapidSubmitFloor    = 3
	cancelSpamFloor     = 2
	highValueTotalFloor = 200.0
)

// ScoreOrder scores an order for fraud signals with fixed-weight rules.
func (g *Gateway) ScoreOrder(stats OrderStats) models.OrderRiskResult {
	var score float64
	var signals []string

	if stats.SubmitsLast10Min >= rapidSubmitFloor {
		score += weightRapidSubmits
		signals = append(signals, "rapid_repeat_submits")
	}
	if stats.CancelsLast10Min >= cancelSpamFloor {
		score += weightCancelSpam
		signals = append(signals, "cancel_spam")
	}
	if stats.OrderTotal >= highValueTotalFloor && stats.GuestOrderCount == 0 {
		score += weightHighValueNew
		signals = append(signals, "high_value_first_order")
	}

	return models.OrderRiskResult{
		Score:   score,
		Level:   riskLevel(score),
		Signals: signals,
	}
}

func riskLevel(score float64) models.Severity {
	switch {
	case score >= 0.9:
		return models.SeverityCritical
	case score >= 0.7:
		return models.SeverityHigh
	case score >= 0.4:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// ── Risk block ──────────────────────────────────────────────

// BlockRequest records a request to block an actor. It never blocks
// anything itself: the result always requires approval, and the
// freshly-created approval starts waiting. A failed write is a real
// error — an unrecorded block request has no audit trail to approve.
func (g *Gateway) BlockRequest(ctx context.Context, reason string, cc models.ClientContext) (models.BlockRequestResult, error) {
	rec := &models.ApprovalRecord{
		ID:          uuid.NewString(),
		TenantID:    cc.TenantID,
		RequestID:   cc.RequestID,
		Kind:        "risk_block",
		Reason:      reason,
		Status:      models.ApprovalWaiting,
		RequestedAt: time.Now().UTC(),
	}
	if err := g.approvals.CreateApproval(ctx, rec); err != nil {
		return models.BlockRequestResult{}, err
	}

	log.Info().Str("approval", rec.ID).Str("tenant", cc.TenantID).Msg("block request recorded; waiting for approval")
	return models.BlockRequestResult{
		ApprovalRequired: true,
		ApprovalID:       rec.ID,
		Status:           string(models.ApprovalWaiting),
	}, nil
}
