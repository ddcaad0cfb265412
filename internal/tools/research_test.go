package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestSearchWeb_AugmentsQueryAndConstrainsDomains(t *testing.T) {
	r, backend := testRegistry()

	input := json.RawMessage(`{"geo_id":"RW-KGL","query":"new bar openings"}`)
	if _, err := r.Invoke(context.Background(), "research-analyst", "research.search_web", input, cc); err != nil {
		t.Fatalf("Invoke(research.search_web) error = %v", err)
	}

	var forwarded struct {
		GeoID          string   `json:"geo_id"`
		Query          string   `json:"query"`
		AllowedDomains []string `json:"allowed_domains"`
	}
	if err := json.Unmarshal(backend.calls[0].Input, &forwarded); err != nil {
		t.Fatalf("backend input is not JSON: %v", err)
	}

	if !strings.Contains(forwarded.Query, "new bar openings") {
		t.Errorf("augmented query lost the original: %q", forwarded.Query)
	}
	if !strings.Contains(forwarded.Query, "Kigali") {
		t.Errorf("augmented query missing geo keywords: %q", forwarded.Query)
	}
	if !strings.Contains(forwarded.Query, " AND ") {
		t.Errorf("keywords not ANDed in: %q", forwarded.Query)
	}
	if len(forwarded.AllowedDomains) == 0 {
		t.Error("domain allowlist not passed to the backend")
	}
}

func TestSearchWeb_UnknownGeoIsHardDenial(t *testing.T) {
	r, backend := testRegistry()

	input := json.RawMessage(`{"geo_id":"US-NYC","query":"pizza"}`)
	_, err := r.Invoke(context.Background(), "research-analyst", "research.search_web", input, cc)
	if _, ok := err.(*DeniedError); !ok {
		t.Errorf("Invoke(unknown geo) error = %v, want *DeniedError", err)
	}
	if len(backend.calls) != 0 {
		t.Error("unknown geo reached the backend")
	}
}

func TestOpenURL_FenceChecks(t *testing.T) {
	r, backend := testRegistry()
	ctx := context.Background()

	allowed := json.RawMessage(`{"url":"https://timesofmalta.com/article/openings"}`)
	if _, err := r.Invoke(ctx, "research-analyst", "research.open_url", allowed, cc); err != nil {
		t.Fatalf("Invoke(allowed url) error = %v", err)
	}

	for _, raw := range []string{
		`{"url":"https://evil.com/timesofmalta.com"}`,
		`{"url":"https://timesofmalta.com.evil.com/x"}`,
		`{"url":"not a url"}`,
	} {
		before := len(backend.calls)
		_, err := r.Invoke(ctx, "research-analyst", "research.open_url", json.RawMessage(raw), cc)
		if _, ok := err.(*DeniedError); !ok {
			t.Errorf("Invoke(%s) error = %v, want *DeniedError", raw, err)
		}
		if len(backend.calls) != before {
			t.Errorf("disallowed url %s reached the backend", raw)
		}
	}
}

func TestComposeDigest_DraftWithFencedSources(t *testing.T) {
	r, backend := testRegistry()
	ctx := context.Background()

	input := json.RawMessage(`{"geo_id":"MT-VLT","summary":"Valletta brunch demand up","sources":["https://timesofmalta.com/food"]}`)
	if _, err := r.Invoke(ctx, "research-analyst", "research.compose_digest", input, cc); err != nil {
		t.Fatalf("Invoke(research.compose_digest) error = %v", err)
	}

	var digest struct {
		ID               string `json:"id"`
		GeoID            string `json:"geo_id"`
		RequiresApproval bool   `json:"requires_approval"`
		Status           string `json:"status"`
	}
	if err := json.Unmarshal(backend.calls[0].Input, &digest); err != nil {
		t.Fatalf("backend input is not JSON: %v", err)
	}
	if !digest.RequiresApproval || digest.Status != "draft" {
		t.Errorf("digest = %+v, want requires_approval=true status=draft", digest)
	}
	if digest.GeoID != "MT-VLT" || digest.ID == "" {
		t.Errorf("digest geo/id = %q/%q", digest.GeoID, digest.ID)
	}

	before := len(backend.calls)
	bad := json.RawMessage(`{"geo_id":"MT-VLT","summary":"x","sources":["https://sketchy.example.net/a"]}`)
	if _, err := r.Invoke(ctx, "research-analyst", "research.compose_digest", bad, cc); err == nil {
		t.Error("off-allowlist source should be denied")
	}
	if len(backend.calls) != before {
		t.Error("denied digest reached the backend")
	}
}

func TestProposeActions_AlwaysDraftRequiringApproval(t *testing.T) {
	r, backend := testRegistry()

	input := json.RawMessage(`{"title":"Kigali happy hour push","actions":[{"kind":"menu_change","target":"venue-7"}]}`)
	if _, err := r.Invoke(context.Background(), "research-analyst", "proposals.propose_actions", input, cc); err != nil {
		t.Fatalf("Invoke(proposals.propose_actions) error = %v", err)
	}

	var bundle struct {
		ID               string `json:"id"`
		TenantID         string `json:"tenant_id"`
		RequiresApproval bool   `json:"requires_approval"`
		Status           string `json:"status"`
	}
	if err := json.Unmarshal(backend.calls[0].Input, &bundle); err != nil {
		t.Fatalf("backend input is not JSON: %v", err)
	}
	if !bundle.RequiresApproval || bundle.Status != "draft" {
		t.Errorf("bundle = %+v, want requires_approval=true status=draft", bundle)
	}
	if bundle.ID == "" || bundle.TenantID != "tenant-a" {
		t.Errorf("bundle id/tenant = %q/%q", bundle.ID, bundle.TenantID)
	}
}

func TestProposeActions_RejectsEmptyActions(t *testing.T) {
	r, _ := testRegistry()
	input := json.RawMessage(`{"title":"empty","actions":[]}`)
	_, err := r.Invoke(context.Background(), "research-analyst", "proposals.propose_actions", input, cc)
	if _, ok := err.(*ValidationError); !ok {
		t.Errorf("error = %v, want *ValidationError", err)
	}
}
