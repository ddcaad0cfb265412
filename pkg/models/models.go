// Package models defines the shared data types for the DineHall agent
// security gateway: agent specifications, detection results, response
// actions, incidents, and approval records.
package models

import (
	"time"
)

// ── Severity ─────────────────────────────────────────────────

// Severity grades a detection result. Ordering is low < medium < high < critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the numeric rank of a severity for ordering comparisons.
// Unknown severities rank as low.
func (s Severity) Rank() int {
	switch s {
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	default:
		return 0
	}
}

// ── Client Context ───────────────────────────────────────────

// ClientContext is the per-request execution context carried by every
// tool call and detection run. Tenant and venue scoping comes from this
// context only — never from user-supplied free text.
type ClientContext struct {
	TenantID   string `json:"tenant_id"`
	VenueID    string `json:"venue_id,omitempty"`
	SessionKey string `json:"session_key"`
	AuthToken  string `json:"-"`
	RequestID  string `json:"request_id"`
}

// ── Detection ────────────────────────────────────────────────

// DetectionResult is the outcome of scoring a piece of free text against
// one detector family. Ephemeral — computed per message, never persisted
// directly.
type DetectionResult struct {
	Severity    Severity `json:"severity"`
	Score       float64  `json:"score"`
	Triggers    []string `json:"triggers"`
	ShouldBlock bool     `json:"should_block"`
}

// ── Response Policy ──────────────────────────────────────────

// ResponseAction is the concrete set of side effects derived from a
// detection severity. Each effect is independently gated by its own flag.
type ResponseAction struct {
	Block                bool   `json:"block"`
	BlockDurationMinutes int    `json:"block_duration_minutes,omitempty"`
	LogIncident          bool   `json:"log_incident"`
	EscalateToAdmin      bool   `json:"escalate_to_admin"`
	RateLimit            bool   `json:"rate_limit"`
	RateLimitSeconds     int    `json:"rate_limit_seconds,omitempty"`
	RequireReauth        bool   `json:"require_reauth"`
	UserMessageKey       string `json:"user_message_key,omitempty"`
}

// ── Incident ─────────────────────────────────────────────────

type IncidentStatus string

const (
	IncidentOpen        IncidentStatus = "open"
	IncidentTriaging    IncidentStatus = "triaging"
	IncidentRemediating IncidentStatus = "remediating"
	IncidentClosed      IncidentStatus = "closed"
)

// IncidentEntry is one append-only note or action log line on an incident.
type IncidentEntry struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
}

// Incident is a security incident record owned by the security subsystem.
// Notes are sanitized before storage; notes and the actions log are
// append-only.
type Incident struct {
	ID         string          `json:"id" db:"id"`
	RequestID  string          `json:"request_id" db:"request_id"`
	SessionKey string          `json:"session_key" db:"session_key"`
	TenantID   string          `json:"tenant_id" db:"tenant_id"`
	ActorID    string          `json:"actor_id,omitempty" db:"actor_id"`
	Severity   Severity        `json:"severity" db:"severity"`
	Triggers   []string        `json:"triggers"`
	Status     IncidentStatus  `json:"status" db:"status"`
	Notes      []IncidentEntry `json:"notes"`
	ActionsLog []IncidentEntry `json:"actions_log"`
	Outcome    string          `json:"outcome,omitempty" db:"outcome"`
	FollowUp   string          `json:"follow_up,omitempty" db:"follow_up"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

// IncidentUpdate carries the mutable fields for UpdateIncident. Nil/empty
// fields are left untouched; Note and Action append, never overwrite.
type IncidentUpdate struct {
	Status IncidentStatus `json:"status,omitempty"`
	Note   string         `json:"note,omitempty"`
	Action string         `json:"action,omitempty"`
}

// IncidentFilter provides query options for listing incidents.
type IncidentFilter struct {
	TenantID string
	Status   IncidentStatus
	Severity Severity
	Limit    int
}

// ── Agent Specifications ─────────────────────────────────────

// SecurityLevel marks agents with reduced capability envelopes.
type SecurityLevel string

// SecuritySandbox grants zero mutation capability. The research analyst
// runs at this level: its output artifacts are always drafts.
const SecuritySandbox SecurityLevel = "sandbox"

// AgentSpec is the immutable per-persona agent definition. Constructed at
// process start from static configuration and never mutated afterwards.
type AgentSpec struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name"`
	Role               string            `json:"role"`
	AllowedTools       []string          `json:"allowed_tools"`
	SystemPrompt       string            `json:"system_prompt"`
	ResponseFormat     map[string]string `json:"response_format"`
	EscalationTriggers []string          `json:"escalation_triggers,omitempty"`
	SecurityLevel      SecurityLevel     `json:"security_level,omitempty"`
}

// ── Safety Gateway Results ───────────────────────────────────

// CheckResult is the verdict returned by the safety gateway for one
// inbound message. A blocked message is a normal result, not an error.
type CheckResult struct {
	Allowed    bool     `json:"allowed"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message,omitempty"`
	IncidentID string   `json:"incident_id,omitempty"`
}

// OrderRiskResult is the outcome of the weighted-rule order risk scorer.
type OrderRiskResult struct {
	Score   float64  `json:"score"`
	Level   Severity `json:"level"`
	Signals []string `json:"signals"`
}

// BlockRequestResult is returned by risk.block_request. Blocking can never
// execute without separate human approval, so ApprovalRequired is always
// true and ApprovalID references a freshly created waiting approval.
type BlockRequestResult struct {
	ApprovalRequired bool   `json:"approval_required"`
	ApprovalID       string `json:"approval_id"`
	Status           string `json:"status"`
}

// ── Approvals ────────────────────────────────────────────────

type ApprovalStatus string

const (
	ApprovalWaiting  ApprovalStatus = "waiting"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// ApprovalRecord captures a pending human decision. Durable — required
// for the audit trail of every gated action.
type ApprovalRecord struct {
	ID          string         `json:"id" db:"id"`
	TenantID    string         `json:"tenant_id" db:"tenant_id"`
	RequestID   string         `json:"request_id" db:"request_id"`
	Kind        string         `json:"kind" db:"kind"` // "risk_block", "proposal", "refund"
	Reason      string         `json:"reason,omitempty" db:"reason"`
	Status      ApprovalStatus `json:"status" db:"status"`
	RequestedAt time.Time      `json:"requested_at" db:"requested_at"`
	ResolvedAt  *time.Time     `json:"resolved_at,omitempty" db:"resolved_at"`
}

// ── Research Artifacts ───────────────────────────────────────

// ProposedAction is one draft action inside a proposal bundle.
type ProposedAction struct {
	Kind    string                 `json:"kind"`
	Target  string                 `json:"target,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// ProposalBundle is a draft-only artifact produced by the research
// analyst. Never auto-applied: RequiresApproval is always true and
// Status starts (and stays) "draft" until a human promotes it.
type ProposalBundle struct {
	ID               string           `json:"id"`
	TenantID         string           `json:"tenant_id"`
	Title            string           `json:"title"`
	Actions          []ProposedAction `json:"actions"`
	EvidenceRefs     []string         `json:"evidence_refs,omitempty"`
	RequiresApproval bool             `json:"requires_approval"`
	Status           string           `json:"status"`
	CreatedAt        time.Time        `json:"created_at"`
}

// IntelDigest is a draft research summary for one geo target.
type IntelDigest struct {
	ID               string    `json:"id"`
	TenantID         string    `json:"tenant_id"`
	GeoID            string    `json:"geo_id"`
	Summary          string    `json:"summary"`
	Sources          []string  `json:"sources,omitempty"`
	RequiresApproval bool      `json:"requires_approval"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}
