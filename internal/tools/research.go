package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dinehall/dinehall/gateway/internal/fence"
	"github.com/dinehall/dinehall/gateway/pkg/models"
)

// ── Research (fenced) ───────────────────────────────────────

type searchWebInput struct {
	GeoID string `json:"geo_id"`
	Query string `json:"query"`
}

// searchWebBackendInput is what actually reaches the backend: the
// geo-augmented query plus the domain allowlist as a search constraint.
// Query-level and URL-level checks together are the fence's defense in
// depth.
type searchWebBackendInput struct {
	GeoID          string   `json:"geo_id"`
	Query          string   `json:"query"`
	AllowedDomains []string `json:"allowed_domains"`
}

func (r *Registry) researchSearchWeb(ctx context.Context, input json.RawMessage, cc models.ClientContext) (json.RawMessage, error) {
	var in searchWebInput
	if err := decodeStrict("research.search_web", input, &in); err != nil {
		return nil, err
	}
	if in.GeoID == "" || in.Query == "" {
		return nil, &ValidationError{Tool: "research.search_web", Reason: "geo_id and query are required"}
	}

	geo, err := r.fence.ResolveGeo(in.GeoID)
	if err != nil {
		return nil, &DeniedError{Tool: "research.search_web", Reason: err.Error()}
	}

	backendInput, err := json.Marshal(searchWebBackendInput{
		GeoID:          geo.ID,
		Query:          fence.AugmentQuery(in.Query, geo),
		AllowedDomains: r.fence.Domains(),
	})
	if err != nil {
		return nil, err
	}
	return r.backend.ExecuteTool(ctx, "research.search_web", backendInput, cc)
}

type openURLInput struct {
	URL string `json:"url"`
}

func (r *Registry) researchOpenURL(ctx context.Context, input json.RawMessage, cc models.ClientContext) (json.RawMessage, error) {
	var in openURLInput
	if err := decodeStrict("research.open_url", input, &in); err != nil {
		return nil, err
	}
	if in.URL == "" {
		return nil, &ValidationError{Tool: "research.open_url", Reason: "url is required"}
	}
	if !r.fence.IsDomainAllowed(in.URL) {
		return nil, &DeniedError{Tool: "research.open_url", Reason: "domain not allowlisted"}
	}
	return r.backend.ExecuteTool(ctx, "research.open_url", input, cc)
}

type composeDigestInput struct {
	GeoID   string   `json:"geo_id"`
	Summary string   `json:"summary"`
	Sources []string `json:"sources,omitempty"`
}

// researchComposeDigest packages a research summary into a draft
// IntelDigest. Every cited source must pass the domain fence; the digest
// always requires approval before it reaches anyone.
func (r *Registry) researchComposeDigest(ctx context.Context, input json.RawMessage, cc models.ClientContext) (json.RawMessage, error) {
	var in composeDigestInput
	if err := decodeStrict("research.compose_digest", input, &in); err != nil {
		return nil, err
	}
	if in.GeoID == "" || in.Summary == "" {
		return nil, &ValidationError{Tool: "research.compose_digest", Reason: "geo_id and summary are required"}
	}

	geo, err := r.fence.ResolveGeo(in.GeoID)
	if err != nil {
		return nil, &DeniedError{Tool: "research.compose_digest", Reason: err.Error()}
	}
	for _, src := range in.Sources {
		if !r.fence.IsDomainAllowed(src) {
			return nil, &DeniedError{Tool: "research.compose_digest", Reason: "source domain not allowlisted: " + src}
		}
	}

	digest := models.IntelDigest{
		ID:               uuid.NewString(),
		TenantID:         cc.TenantID,
		GeoID:            geo.ID,
		Summary:          in.Summary,
		Sources:          in.Sources,
		RequiresApproval: true,
		Status:           "draft",
		CreatedAt:        time.Now().UTC(),
	}
	backendInput, err := json.Marshal(digest)
	if err != nil {
		return nil, err
	}
	return r.backend.ExecuteTool(ctx, "research.compose_digest", backendInput, cc)
}

// ── Proposals ───────────────────────────────────────────────

type proposeActionsInput struct {
	Title        string                  `json:"title"`
	Actions      []models.ProposedAction `json:"actions"`
	EvidenceRefs []string                `json:"evidence_refs,omitempty"`
}

// proposeActions packages draft actions into a ProposalBundle. The
// bundle always requires approval and always starts as a draft; the
// sandboxed research agent cannot produce anything self-applying.
func (r *Registry) proposeActions(ctx context.Context, input json.RawMessage, cc models.ClientContext) (json.RawMessage, error) {
	var in proposeActionsInput
	if err := decodeStrict("proposals.propose_actions", input, &in); err != nil {
		return nil, err
	}
	if in.Title == "" {
		return nil, &ValidationError{Tool: "proposals.propose_actions", Reason: "title is required"}
	}
	if len(in.Actions) == 0 {
		return nil, &ValidationError{Tool: "proposals.propose_actions", Reason: "at least one action is required"}
	}
	for i, a := range in.Actions {
		if a.Kind == "" {
			return nil, &ValidationError{Tool: "proposals.propose_actions", Reason: fmt.Sprintf("action %d has no kind", i)}
		}
	}

	bundle := models.ProposalBundle{
		ID:               uuid.NewString(),
		TenantID:         cc.TenantID,
		Title:            in.Title,
		Actions:          in.Actions,
		EvidenceRefs:     in.EvidenceRefs,
		RequiresApproval: true,
		Status:           "draft",
		CreatedAt:        time.Now().UTC(),
	}
	backendInput, err := json.Marshal(bundle)
	if err != nil {
		return nil, err
	}
	return r.backend.ExecuteTool(ctx, "proposals.propose_actions", backendInput, cc)
}
