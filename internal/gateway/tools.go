package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dinehall/dinehall/gateway/internal/tools"
	"github.com/dinehall/dinehall/gateway/pkg/models"
)

// RegisterTools attaches the safety, fraud, risk, incident, and approval
// tools to the dispatch table. These handlers run in-process rather than
// delegating to the platform backend: the gateway owns their semantics.
func (g *Gateway) RegisterTools(r *tools.Registry) {
	r.Register("abuse.check_message", g.checkMessageTool)
	r.Register("fraud.score_order", g.scoreOrderTool)
	r.Register("risk.block_request", g.blockRequestTool)
	r.Register("incidents.list", g.incidentsListTool)
	r.Register("incidents.get", g.incidentsGetTool)
	r.Register("incidents.update", g.incidentsUpdateTool)
	r.Register("incidents.close", g.incidentsCloseTool)
	r.Register("approvals.list", g.approvalsListTool)
	r.Register("approvals.resolve", g.approvalsResolveTool)
}

// decode mirrors the wrapper validation posture: unknown fields,
// malformed JSON, and trailing garbage fail closed before any work
// happens, with the same error type the wrappers use so handlers map
// bad input to 400 rather than 500.
func decode(toolName string, input json.RawMessage, v interface{}) error {
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(input))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &tools.ValidationError{Tool: toolName, Reason: err.Error()}
	}
	if dec.More() {
		return &tools.ValidationError{Tool: toolName, Reason: "trailing data after JSON object"}
	}
	return nil
}

// ── Safety ──────────────────────────────────────────────────

type checkMessageInput struct {
	Text     string `json:"text"`
	TenantID string `json:"tenant_id,omitempty"`
}

func (g *Gateway) checkMessageTool(ctx context.Context, input json.RawMessage, cc models.ClientContext) (json.RawMessage, error) {
	var in checkMessageInput
	if err := decode("abuse.check_message", input, &in); err != nil {
		return nil, err
	}
	if in.Text == "" {
		return nil, &tools.ValidationError{Tool: "abuse.check_message", Reason: "text is required"}
	}
	// Tenant scoping comes from the execution context. The input field
	// only fills a gap, it never overrides.
	if cc.TenantID == "" {
		cc.TenantID = in.TenantID
	}
	return json.Marshal(g.CheckMessage(ctx, in.Text, cc))
}

func (g *Gateway) scoreOrderTool(_ context.Context, input json.RawMessage, _ models.ClientContext) (json.RawMessage, error) {
	var in OrderStats
	if err := decode("fraud.score_order", input, &in); err != nil {
		return nil, err
	}
	return json.Marshal(g.ScoreOrder(in))
}

type blockRequestInput struct {
	Reason string `json:"reason"`
}

func (g *Gateway) blockRequestTool(ctx context.Context, input json.RawMessage, cc models.ClientContext) (json.RawMessage, error) {
	var in blockRequestInput
	if err := decode("risk.block_request", input, &in); err != nil {
		return nil, err
	}
	result, err := g.BlockRequest(ctx, in.Reason, cc)
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

// ── Incidents ───────────────────────────────────────────────

type incidentsListInput struct {
	Status   string `json:"status,omitempty"`
	Severity string `json:"severity,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

func (g *Gateway) incidentsListTool(ctx context.Context, input json.RawMessage, cc models.ClientContext) (json.RawMessage, error) {
	var in incidentsListInput
	if err := decode("incidents.list", input, &in); err != nil {
		return nil, err
	}
	list, err := g.ledger.List(ctx, models.IncidentFilter{
		TenantID: cc.TenantID,
		Status:   models.IncidentStatus(in.Status),
		Severity: models.Severity(in.Severity),
		Limit:    in.Limit,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(list)
}

type incidentIDInput struct {
	IncidentID string `json:"incident_id"`
}

func (g *Gateway) incidentsGetTool(ctx context.Context, input json.RawMessage, _ models.ClientContext) (json.RawMessage, error) {
	var in incidentIDInput
	if err := decode("incidents.get", input, &in); err != nil {
		return nil, err
	}
	inc, err := g.ledger.Get(ctx, in.IncidentID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(inc)
}

type incidentsUpdateInput struct {
	IncidentID string `json:"incident_id"`
	Status     string `json:"status,omitempty"`
	Note       string `json:"note,omitempty"`
	Action     string `json:"action,omitempty"`
}

func (g *Gateway) incidentsUpdateTool(ctx context.Context, input json.RawMessage, _ models.ClientContext) (json.RawMessage, error) {
	var in incidentsUpdateInput
	if err := decode("incidents.update", input, &in); err != nil {
		return nil, err
	}
	inc, err := g.ledger.Update(ctx, in.IncidentID, models.IncidentUpdate{
		Status: models.IncidentStatus(in.Status),
		Note:   in.Note,
		Action: in.Action,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(inc)
}

type incidentsCloseInput struct {
	IncidentID string `json:"incident_id"`
	Outcome    string `json:"outcome"`
	FollowUp   string `json:"follow_up,omitempty"`
}

func (g *Gateway) incidentsCloseTool(ctx context.Context, input json.RawMessage, _ models.ClientContext) (json.RawMessage, error) {
	var in incidentsCloseInput
	if err := decode("incidents.close", input, &in); err != nil {
		return nil, err
	}
	if in.Outcome == "" {
		return nil, &tools.ValidationError{Tool: "incidents.close", Reason: "outcome is required"}
	}
	inc, err := g.ledger.Close(ctx, in.IncidentID, in.Outcome, in.FollowUp)
	if err != nil {
		return nil, err
	}
	return json.Marshal(inc)
}

// ── Approvals ───────────────────────────────────────────────

type approvalsListInput struct {
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

func (g *Gateway) approvalsListTool(ctx context.Context, input json.RawMessage, cc models.ClientContext) (json.RawMessage, error) {
	var in approvalsListInput
	if err := decode("approvals.list", input, &in); err != nil {
		return nil, err
	}
	list, err := g.approvals.ListApprovals(ctx, cc.TenantID, models.ApprovalStatus(in.Status), in.Limit)
	if err != nil {
		return nil, err
	}
	return json.Marshal(list)
}

type approvalsResolveInput struct {
	ApprovalID string `json:"approval_id"`
	Approve    bool   `json:"approve"`
}

func (g *Gateway) approvalsResolveTool(ctx context.Context, input json.RawMessage, _ models.ClientContext) (json.RawMessage, error) {
	var in approvalsResolveInput
	if err := decode("approvals.resolve", input, &in); err != nil {
		return nil, err
	}
	rec, err := g.approvals.GetApproval(ctx, in.ApprovalID)
	if err != nil {
		return nil, err
	}
	if rec.Status != models.ApprovalWaiting {
		return nil, fmt.Errorf("approval %s already resolved (%s)", rec.ID, rec.Status)
	}

	now := time.Now().UTC()
	rec.Status = models.ApprovalRejected
	if in.Approve {
		rec.Status = models.ApprovalApproved
	}
	rec.ResolvedAt = &now
	if err := g.approvals.UpdateApproval(ctx, rec); err != nil {
		return nil, err
	}
	return json.Marshal(rec)
}
