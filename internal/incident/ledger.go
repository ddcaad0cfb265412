// Package incident manages the security incident ledger. Incidents are
// created by the safety gateway on qualifying detections, updated as
// remediation proceeds, and closed with an outcome. All history fields
// are append-only, and excerpts are sanitized before they are stored:
// raw, unsanitized user text must never reach a note field.
package incident

import (
	"context"
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dinehall/dinehall/gateway/internal/store"
	"github.com/dinehall/dinehall/gateway/pkg/models"
)

// maxExcerptLen is the truncation limit applied before redaction.
const maxExcerptLen = 200

// longTokenPattern matches contiguous runs of 20+ word characters — a
// heuristic scrubber for secrets, tokens, and keys embedded in excerpts.
var longTokenPattern = regexp.MustCompile(`[A-Za-z0-9_\-]{20,}`)

// Ledger creates and mutates incident records over an IncidentStore.
type Ledger struct {
	store store.IncidentStore
}

// NewLedger creates a Ledger over the given store.
func NewLedger(s store.IncidentStore) *Ledger {
	return &Ledger{store: s}
}

// Create opens a new incident from a detection result. The excerpt is
// sanitized before it is stored, and the actions log is seeded with a
// creation marker.
func (l *Ledger) Create(ctx context.Context, detection models.DetectionResult, cc models.ClientContext, excerpt string) (*models.Incident, error) {
	now := time.Now().UTC()
	inc := &models.Incident{
		ID:         uuid.NewString(),
		RequestID:  cc.RequestID,
		SessionKey: cc.SessionKey,
		TenantID:   cc.TenantID,
		Severity:   detection.Severity,
		Triggers:   append([]string(nil), detection.Triggers...),
		Status:     models.IncidentOpen,
		Notes: []models.IncidentEntry{
			{At: now, Text: "excerpt: " + Sanitize(excerpt)},
		},
		ActionsLog: []models.IncidentEntry{
			{At: now, Text: "incident created"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := l.store.CreateIncident(ctx, inc); err != nil {
		return nil, fmt.Errorf("create incident: %w", err)
	}

	log.Info().
		Str("incident", inc.ID).
		Str("tenant", inc.TenantID).
		Str("severity", string(inc.Severity)).
		Strs("triggers", inc.Triggers).
		Msg("incident opened")
	return inc, nil
}

// Update applies an IncidentUpdate: a status transition and/or appended
// note and action entries. Prior history entries are never altered.
// Closed incidents only accept notes, not status changes.
func (l *Ledger) Update(ctx context.Context, id string, upd models.IncidentUpdate) (*models.Incident, error) {
	inc, err := l.store.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if upd.Status != "" {
		if err := validTransition(inc.Status, upd.Status); err != nil {
			return nil, err
		}
		inc.Status = upd.Status
		inc.ActionsLog = append(inc.ActionsLog, models.IncidentEntry{At: now, Text: "status → " + string(upd.Status)})
	}
	if upd.Note != "" {
		inc.Notes = append(inc.Notes, models.IncidentEntry{At: now, Text: Sanitize(upd.Note)})
	}
	if upd.Action != "" {
		inc.ActionsLog = append(inc.ActionsLog, models.IncidentEntry{At: now, Text: upd.Action})
	}
	inc.UpdatedAt = now

	if err := l.store.UpdateIncident(ctx, inc); err != nil {
		return nil, fmt.Errorf("update incident: %w", err)
	}
	return inc, nil
}

// Close resolves an incident with an outcome and optional follow-up.
func (l *Ledger) Close(ctx context.Context, id, outcome, followUp string) (*models.Incident, error) {
	inc, err := l.store.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}
	if inc.Status == models.IncidentClosed {
		return nil, fmt.Errorf("incident %s is already closed", id)
	}

	now := time.Now().UTC()
	inc.Status = models.IncidentClosed
	inc.Outcome = Sanitize(outcome)
	inc.FollowUp = Sanitize(followUp)
	inc.ActionsLog = append(inc.ActionsLog, models.IncidentEntry{At: now, Text: "closed: " + inc.Outcome})
	inc.UpdatedAt = now

	if err := l.store.UpdateIncident(ctx, inc); err != nil {
		return nil, fmt.Errorf("close incident: %w", err)
	}

	log.Info().Str("incident", inc.ID).Str("outcome", inc.Outcome).Msg("incident closed")
	return inc, nil
}

// Get returns one incident by id.
func (l *Ledger) Get(ctx context.Context, id string) (*models.Incident, error) {
	return l.store.GetIncident(ctx, id)
}

// List returns incidents matching the filter.
func (l *Ledger) List(ctx context.Context, filter models.IncidentFilter) ([]models.Incident, error) {
	return l.store.ListIncidents(ctx, filter)
}

// validTransition enforces the one-directional incident lifecycle:
// open → triaging → remediating → closed. Closing is allowed from any
// non-closed state; everything else may only move forward.
func validTransition(from, to models.IncidentStatus) error {
	if from == models.IncidentClosed {
		return fmt.Errorf("incident is closed; status cannot change")
	}
	if to == models.IncidentClosed {
		return nil
	}
	order := map[models.IncidentStatus]int{
		models.IncidentOpen:        0,
		models.IncidentTriaging:    1,
		models.IncidentRemediating: 2,
	}
	fromRank, ok1 := order[from]
	toRank, ok2 := order[to]
	if !ok1 || !ok2 {
		return fmt.Errorf("unknown incident status %q", to)
	}
	if toRank < fromRank {
		return fmt.Errorf("incident status cannot move backwards (%s → %s)", from, to)
	}
	return nil
}

// Sanitize prepares user-controlled text for storage: truncate to 200
// bytes, then replace any contiguous run of 20 or more
// alphanumeric/underscore/hyphen characters with [REDACTED]. The result
// is a fixed point: sanitizing already-sanitized text changes nothing.
func Sanitize(text string) string {
	if len(text) > maxExcerptLen {
		// Back off to a rune boundary so the cut never leaves a split
		// multi-byte character behind.
		cut := maxExcerptLen
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return longTokenPattern.ReplaceAllString(text, "[REDACTED]")
}
