// Package handlers implements the HTTP handlers for the gateway API.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/dinehall/dinehall/gateway/internal/agents"
	"github.com/dinehall/dinehall/gateway/internal/gateway"
	"github.com/dinehall/dinehall/gateway/internal/incident"
	"github.com/dinehall/dinehall/gateway/internal/store"
	"github.com/dinehall/dinehall/gateway/internal/tools"
	pkgmw "github.com/dinehall/dinehall/gateway/pkg/middleware"
	"github.com/dinehall/dinehall/gateway/pkg/models"
)

// maxBodyBytes caps request bodies; tool inputs and guest messages are
// small by nature.
const maxBodyBytes = 1 << 20

// Handlers holds the service dependencies for all HTTP handlers.
type Handlers struct {
	gateway  *gateway.Gateway
	plugin   *agents.Plugin
	registry *tools.Registry
	ledger   *incident.Ledger
	store    store.Store
}

// New creates the handler set.
func New(gw *gateway.Gateway, plugin *agents.Plugin, registry *tools.Registry, ledger *incident.Ledger, s store.Store) *Handlers {
	return &Handlers{gateway: gw, plugin: plugin, registry: registry, ledger: ledger, store: s}
}

// ── Safety ──────────────────────────────────────────────────

type safetyCheckRequest struct {
	Text string `json:"text"`
}

// SafetyCheck is the mandatory pre-flight for free-text guest turns.
func (h *Handlers) SafetyCheck(w http.ResponseWriter, r *http.Request) {
	var req safetyCheckRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Text == "" {
		respondError(w, http.StatusBadRequest, "text is required")
		return
	}

	cc := pkgmw.GetClientContext(r.Context())
	respondJSON(w, http.StatusOK, h.gateway.CheckMessage(r.Context(), req.Text, cc))
}

// ── Tools ───────────────────────────────────────────────────

// InvokeTool dispatches one tool call. The caller agent comes from the
// X-Agent-Id header; the body is the tool input, forwarded as-is to the
// wrapper's validation.
func (h *Handlers) InvokeTool(w http.ResponseWriter, r *http.Request) {
	toolName := chi.URLParam(r, "toolName")
	agentID := r.Header.Get("X-Agent-Id")
	if agentID == "" {
		respondError(w, http.StatusBadRequest, "X-Agent-Id header is required")
		return
	}

	input, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "unreadable request body")
		return
	}

	cc := pkgmw.GetClientContext(r.Context())
	out, err := h.registry.Invoke(r.Context(), agentID, toolName, input, cc)
	if err != nil {
		respondToolError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

// ── Agents ──────────────────────────────────────────────────

func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.plugin.Agents)
}

func (h *Handlers) GetAgent(w http.ResponseWriter, r *http.Request) {
	spec, err := h.plugin.Spec(chi.URLParam(r, "agentID"))
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, spec)
}

// ── Incidents ───────────────────────────────────────────────

func (h *Handlers) ListIncidents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	filter := models.IncidentFilter{
		TenantID: pkgmw.GetClientContext(r.Context()).TenantID,
		Status:   models.IncidentStatus(q.Get("status")),
		Severity: models.Severity(q.Get("severity")),
		Limit:    limit,
	}
	list, err := h.ledger.List(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "list incidents failed")
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handlers) GetIncident(w http.ResponseWriter, r *http.Request) {
	inc, err := h.ledger.Get(r.Context(), chi.URLParam(r, "incidentID"))
	if err != nil {
		respondToolError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, inc)
}

func (h *Handlers) UpdateIncident(w http.ResponseWriter, r *http.Request) {
	var upd models.IncidentUpdate
	if err := decodeBody(r, &upd); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	inc, err := h.ledger.Update(r.Context(), chi.URLParam(r, "incidentID"), upd)
	if err != nil {
		var notFound *store.ErrNotFound
		if errors.As(err, &notFound) {
			respondError(w, http.StatusNotFound, err.Error())
		} else {
			respondError(w, http.StatusConflict, err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, inc)
}

type closeIncidentRequest struct {
	Outcome  string `json:"outcome"`
	FollowUp string `json:"follow_up,omitempty"`
}

func (h *Handlers) CloseIncident(w http.ResponseWriter, r *http.Request) {
	var req closeIncidentRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Outcome == "" {
		respondError(w, http.StatusBadRequest, "outcome is required")
		return
	}

	inc, err := h.ledger.Close(r.Context(), chi.URLParam(r, "incidentID"), req.Outcome, req.FollowUp)
	if err != nil {
		var notFound *store.ErrNotFound
		if errors.As(err, &notFound) {
			respondError(w, http.StatusNotFound, err.Error())
		} else {
			respondError(w, http.StatusConflict, err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, inc)
}

// ── Approvals ───────────────────────────────────────────────

func (h *Handlers) ListApprovals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	tenant := pkgmw.GetClientContext(r.Context()).TenantID

	list, err := h.store.ListApprovals(r.Context(), tenant, models.ApprovalStatus(q.Get("status")), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "list approvals failed")
		return
	}
	respondJSON(w, http.StatusOK, list)
}

type resolveApprovalRequest struct {
	Approve bool `json:"approve"`
}

func (h *Handlers) ResolveApproval(w http.ResponseWriter, r *http.Request) {
	var req resolveApprovalRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	input, _ := json.Marshal(map[string]interface{}{
		"approval_id": chi.URLParam(r, "approvalID"),
		"approve":     req.Approve,
	})
	cc := pkgmw.GetClientContext(r.Context())
	out, err := h.registry.Invoke(r.Context(), agents.PlatformAdmin, "approvals.resolve", input, cc)
	if err != nil {
		respondToolError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

// ── Helpers ─────────────────────────────────────────────────

func decodeBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response failed")
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// respondToolError maps the tool error taxonomy onto HTTP statuses:
// policy denials are 403, validation failures 400, missing records 404.
func respondToolError(w http.ResponseWriter, err error) {
	var denied *tools.DeniedError
	var invalid *tools.ValidationError
	var notFound *store.ErrNotFound

	switch {
	case errors.As(err, &denied):
		respondError(w, http.StatusForbidden, denied.Error())
	case errors.As(err, &invalid):
		respondError(w, http.StatusBadRequest, invalid.Error())
	case errors.As(err, &notFound):
		respondError(w, http.StatusNotFound, notFound.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
