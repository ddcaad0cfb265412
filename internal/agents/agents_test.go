package agents

import (
	"context"
	"strings"
	"testing"

	"github.com/dinehall/dinehall/gateway/pkg/models"
)

func TestSpecs_FiveAgents(t *testing.T) {
	specs := Specs()
	if len(specs) != 5 {
		t.Fatalf("Specs() returned %d agents, want 5", len(specs))
	}

	want := map[string]bool{Waiter: false, VenueManager: false, PlatformAdmin: false, ResearchAnalyst: false, UIOrchestrator: false}
	for _, spec := range specs {
		if _, ok := want[spec.ID]; !ok {
			t.Errorf("unexpected agent id %q", spec.ID)
		}
		want[spec.ID] = true
	}
	for id, seen := range want {
		if !seen {
			t.Errorf("agent %q missing from Specs()", id)
		}
	}
}

func TestSpecs_PromptsShareCoreRules(t *testing.T) {
	for _, spec := range Specs() {
		if !strings.HasPrefix(spec.SystemPrompt, coreRules) {
			t.Errorf("agent %s prompt does not start with the core rules", spec.ID)
		}
		if len(spec.SystemPrompt) <= len(coreRules) {
			t.Errorf("agent %s has no persona rules", spec.ID)
		}
		if len(spec.ResponseFormat) == 0 {
			t.Errorf("agent %s has no response format", spec.ID)
		}
	}
}

func TestSpecs_ResearchAnalystIsSandboxed(t *testing.T) {
	var analyst models.AgentSpec
	for _, spec := range Specs() {
		if spec.ID == ResearchAnalyst {
			analyst = spec
		}
	}
	if analyst.SecurityLevel != models.SecuritySandbox {
		t.Errorf("research analyst security level = %q, want sandbox", analyst.SecurityLevel)
	}

	// No mutation-capable tool families.
	for _, pattern := range analyst.AllowedTools {
		for _, forbidden := range []string{"cart.", "order.", "incidents.", "approvals.", "risk."} {
			if strings.HasPrefix(pattern, forbidden) {
				t.Errorf("research analyst holds mutating tool pattern %q", pattern)
			}
		}
	}
}

func TestCompileTriggers_FiresOnMatchingDetection(t *testing.T) {
	spec, _ := mustPlugin(t).Spec(Waiter)
	set, err := CompileTriggers(spec)
	if err != nil {
		t.Fatalf("CompileTriggers() error = %v", err)
	}

	high := models.DetectionResult{Severity: models.SeverityHigh, Score: 0.8, Triggers: []string{"match_ignore_rules"}}
	if !set.ShouldEscalate(high) {
		t.Error("ShouldEscalate(high) = false, want true")
	}

	crossTenant := models.DetectionResult{Severity: models.SeverityMedium, Score: 0.6, Triggers: []string{"cross_tenant_ids"}}
	if !set.ShouldEscalate(crossTenant) {
		t.Error("ShouldEscalate(cross_tenant_ids) = false, want true")
	}

	benign := models.DetectionResult{Severity: models.SeverityLow, Score: 0.2}
	if set.ShouldEscalate(benign) {
		t.Error("ShouldEscalate(low) = true, want false")
	}
}

func TestCompileTriggers_RejectsBadExpression(t *testing.T) {
	spec := models.AgentSpec{ID: "broken", EscalationTriggers: []string{"severity >>> nonsense"}}
	if _, err := CompileTriggers(spec); err == nil {
		t.Error("CompileTriggers() should fail on a malformed expression")
	}
}

func TestNewPlugin(t *testing.T) {
	p := mustPlugin(t)

	if p.Name != "dinehall-agents" {
		t.Errorf("plugin name = %q", p.Name)
	}
	if err := p.OnInit(context.Background()); err != nil {
		t.Errorf("OnInit() error = %v", err)
	}

	reg := p.Registry()
	if !reg.Allowed(Waiter, "cart.add_item") {
		t.Error("waiter should be allowed cart.add_item")
	}
	if reg.Allowed(Waiter, "risk.block_request") {
		t.Error("waiter should not be allowed risk.block_request")
	}
	if !reg.Allowed(PlatformAdmin, "risk.block_request") {
		t.Error("platform admin should be allowed risk.block_request")
	}

	if _, err := p.Spec("ghost"); err == nil {
		t.Error("Spec(ghost) should fail")
	}
}

func mustPlugin(t *testing.T) *Plugin {
	t.Helper()
	p, err := NewPlugin("test")
	if err != nil {
		t.Fatalf("NewPlugin() error = %v", err)
	}
	return p
}
