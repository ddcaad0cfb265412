// Package detect provides the pure text-scoring detectors for the safety
// gateway. It scores free text against configured pattern families:
//
//   - prompt injection: instruction override, secret requests, tool-call
//     injection, authority claims, policy bypass requests
//   - abuse: harassment, sexual harassment, threats
//   - web content injection: hidden instructions and credential harvesting
//     in fetched page content
//   - cross-tenant leakage: UUID-shaped tokens that differ from the
//     request's tenant id
//
// Detectors are pure functions — no side effects, no persistence. Pattern
// families and weights are data, so they can be extended through the
// policy overlay without touching the scoring logic.
package detect

import (
	"regexp"
	"strings"

	"github.com/dinehall/dinehall/gateway/pkg/models"
)

// ── Pattern Families ────────────────────────────────────────

// Family is one named group of patterns with a fixed score weight.
// A family contributes its weight at most once per message, no matter
// how many of its patterns match.
type Family struct {
	Trigger  string
	Weight   float64
	Patterns []string
}

// Config holds the tunable scoring parameters. The shipped values are a
// starting configuration, not calibrated constants — tune them against
// real traffic through the policy overlay.
type Config struct {
	InjectionBase     float64
	AbuseBase         float64
	WebContentBase    float64
	CrossTenantWeight float64

	MediumThreshold   float64
	HighThreshold     float64
	CriticalThreshold float64

	InjectionFamilies []Family
	AbuseFamilies     []Family
	WebFamilies       []Family
}

// DefaultConfig returns the built-in scoring configuration.
func DefaultConfig() Config {
	return Config{
		InjectionBase:     0.2,
		AbuseBase:         0.1,
		WebContentBase:    0.3, // web content is inherently less trusted
		CrossTenantWeight: 0.5,

		MediumThreshold:   0.5,
		HighThreshold:     0.7,
		CriticalThreshold: 0.9,

		InjectionFamilies: []Family{
			{
				Trigger: "match_ignore_rules",
				Weight:  0.5,
				Patterns: []string{
					`(?i)ignore\s+(all\s+)?(previous|prior|above|earlier)\s+(instructions?|prompts?|rules?|directions?)`,
					`(?i)disregard\s+(all\s+)?(previous|prior|above)\s+(instructions?|prompts?|rules?)`,
					`(?i)forget\s+(all\s+)?(previous|prior|above|your)\s+(instructions?|prompts?|rules?|context)`,
					`(?i)new\s+instructions?\s*:`,
					`(?i)you\s+are\s+now\s+(a|an|my)\s+`,
				},
			},
			{
				Trigger: "secret_request",
				Weight:  0.5,
				Patterns: []string{
					`(?i)reveal\s+(your|the)\s+(system\s+)?(prompt|instructions?|rules?|secrets?)`,
					`(?i)(show|print|repeat|output)\s+(me\s+)?(your|the)\s+(system\s+)?(prompt|instructions?)`,
					`(?i)what\s+(is|are)\s+your\s+(system\s+)?(prompt|instructions?|api\s+keys?)`,
					`(?i)(api|secret)\s+keys?\b`,
				},
			},
			{
				Trigger: "tool_call_injection",
				Weight:  0.6,
				Patterns: []string{
					`(?i)call\s+the\s+\w+[._]\w+\s+tool`,
					`(?i)invoke\s+[a-z]+\.[a-z_]+`,
					`(?i)"tool_calls?"\s*:`,
					`(?i)<\s*tool_(use|call)\s*>`,
				},
			},
			{
				Trigger: "authority_claim",
				Weight:  0.4,
				Patterns: []string{
					`(?i)i\s+am\s+(the|an?)\s+(admin|administrator|developer|owner|manager)\b`,
					`(?i)as\s+(the|an?)\s+(admin|administrator|system\s+operator)\b`,
					`(?i)(the\s+)?(support|security)\s+team\s+(told|asked|authorized)\s+me`,
				},
			},
			{
				Trigger: "policy_bypass",
				Weight:  0.4,
				Patterns: []string{
					`(?i)(bypass|override|disable)\s+(your|the|all)\s+(safety|security|policy|filters?|restrictions?)`,
					`(?i)pretend\s+you\s+(are|have)\s+no\s+(restrictions?|rules?|guidelines?)`,
					`(?i)\bjailbreak\b`,
					`(?i)\bdo\s+anything\s+now\b`,
				},
			},
		},

		AbuseFamilies: []Family{
			{
				Trigger: "harassment",
				Weight:  0.3,
				Patterns: []string{
					`(?i)\byou('?re| are)\s+(stupid|useless|worthless|pathetic|garbage)\b`,
					`(?i)\b(shut\s+up|screw\s+you|piece\s+of\s+(shit|trash))\b`,
					`(?i)\b(idiot|moron|imbecile)\b`,
				},
			},
			{
				Trigger: "sexual_harassment",
				Weight:  0.5,
				Patterns: []string{
					`(?i)\bsend\s+(me\s+)?(nudes?|explicit)\b`,
					`(?i)\bsexual\s+(favors?|acts?)\b`,
					`(?i)\b(strip|undress)\s+for\s+me\b`,
				},
			},
			{
				Trigger: "threat",
				Weight:  0.6,
				Patterns: []string{
					`(?i)\bi('ll| will)\s+(hurt|kill|find|destroy)\s+you\b`,
					`(?i)\byou('ll| will)\s+(regret|pay\s+for)\b`,
					`(?i)\b(bomb|shoot\s+up|burn\s+down)\b.{0,40}\b(restaurant|venue|place)\b`,
				},
			},
		},

		WebFamilies: []Family{
			{
				Trigger: "hidden_instruction",
				Weight:  0.5,
				Patterns: []string{
					`(?i)<!--.{0,200}(instruction|prompt|system).{0,200}-->`,
					`(?i)\[SYSTEM\]`,
					`(?i)AI\s+assistants?\s+(reading|processing)\s+this`,
					`(?i)if\s+you\s+are\s+an?\s+(ai|llm|language\s+model|assistant)\b`,
				},
			},
			{
				Trigger: "credential_harvest",
				Weight:  0.6,
				Patterns: []string{
					`(?i)(enter|submit|paste)\s+(your|the)\s+(password|token|api\s+key|credentials?)`,
					`(?i)verify\s+your\s+(account|identity)\s+(here|below|now)`,
					`(?i)(send|forward)\s+(your|the)\s+(auth|session|bearer)\s+token`,
				},
			},
		},
	}
}

// uuidPattern matches UUID-shaped tokens for the cross-tenant scan.
var uuidPattern = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

// ── Detector ────────────────────────────────────────────────

// compiledFamily is a Family with its patterns compiled.
type compiledFamily struct {
	trigger  string
	weight   float64
	patterns []*regexp.Regexp
}

// Detector scores text against compiled pattern families. Safe for
// concurrent use: all state is read-only after construction.
type Detector struct {
	cfg       Config
	injection []compiledFamily
	abuse     []compiledFamily
	web       []compiledFamily
}

// New compiles the configured pattern families into a Detector.
// Invalid patterns are skipped with an error rather than panicking so a
// bad overlay entry cannot take the gateway down.
func New(cfg Config) (*Detector, error) {
	d := &Detector{cfg: cfg}
	var err error
	if d.injection, err = compileFamilies(cfg.InjectionFamilies); err != nil {
		return nil, err
	}
	if d.abuse, err = compileFamilies(cfg.AbuseFamilies); err != nil {
		return nil, err
	}
	if d.web, err = compileFamilies(cfg.WebFamilies); err != nil {
		return nil, err
	}
	return d, nil
}

// MustNew is New with the default config, panicking on compile errors.
// Only the built-in tables go through this path.
func MustNew() *Detector {
	d, err := New(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return d
}

func compileFamilies(families []Family) ([]compiledFamily, error) {
	out := make([]compiledFamily, 0, len(families))
	for _, f := range families {
		cf := compiledFamily{trigger: f.Trigger, weight: f.Weight}
		for _, p := range f.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, err
			}
			cf.patterns = append(cf.patterns, re)
		}
		out = append(out, cf)
	}
	return out, nil
}

// ── Scoring ─────────────────────────────────────────────────

// PromptInjection scores free text for prompt-injection attempts. When a
// non-nil context is supplied it also runs the cross-tenant UUID scan —
// a hard tenant-isolation guard, not merely an injection heuristic.
func (d *Detector) PromptInjection(text string, ctx *models.ClientContext) models.DetectionResult {
	score, triggers := scoreFamilies(d.injection, text, d.cfg.InjectionBase)

	if ctx != nil {
		if leaked := foreignTenantIDs(text, ctx.TenantID); leaked {
			score += d.cfg.CrossTenantWeight
			triggers = append(triggers, "cross_tenant_ids")
		}
	}

	return d.result(score, triggers)
}

// Abuse scores free text for harassment, sexual harassment, and threats.
func (d *Detector) Abuse(text string) models.DetectionResult {
	score, triggers := scoreFamilies(d.abuse, text, d.cfg.AbuseBase)
	return d.result(score, triggers)
}

// WebContent scores fetched web content. It runs both the injection
// families and the web-specific families against the content, starting
// from the higher web base score.
func (d *Detector) WebContent(content string) models.DetectionResult {
	score, triggers := scoreFamilies(d.injection, content, d.cfg.WebContentBase)
	webScore, webTriggers := scoreFamilies(d.web, content, 0)
	score += webScore
	triggers = append(triggers, webTriggers...)
	return d.result(score, triggers)
}

// Max returns the higher-scored of two detection results. Callers running
// multiple detectors on the same message take the worst outcome.
func Max(a, b models.DetectionResult) models.DetectionResult {
	if b.Score > a.Score {
		return b
	}
	return a
}

func scoreFamilies(families []compiledFamily, text string, base float64) (float64, []string) {
	score := base
	triggers := []string{}
	for _, f := range families {
		for _, re := range f.patterns {
			if re.MatchString(text) {
				score += f.weight
				triggers = append(triggers, f.trigger)
				break // one hit per family
			}
		}
	}
	return score, triggers
}

// foreignTenantIDs reports whether text contains a UUID-shaped token that
// is not the request's own tenant id.
func foreignTenantIDs(text, tenantID string) bool {
	for _, m := range uuidPattern.FindAllString(text, -1) {
		if !strings.EqualFold(m, tenantID) {
			return true
		}
	}
	return false
}

func (d *Detector) result(score float64, triggers []string) models.DetectionResult {
	sev := d.severityFor(score)
	return models.DetectionResult{
		Severity:    sev,
		Score:       score,
		Triggers:    triggers,
		ShouldBlock: sev == models.SeverityHigh || sev == models.SeverityCritical,
	}
}

func (d *Detector) severityFor(score float64) models.Severity {
	switch {
	case score >= d.cfg.CriticalThreshold:
		return models.SeverityCritical
	case score >= d.cfg.HighThreshold:
		return models.SeverityHigh
	case score >= d.cfg.MediumThreshold:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}
