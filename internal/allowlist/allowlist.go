// Package allowlist implements the per-agent tool allowlist registry.
//
// Each agent id maps to an ordered list of tool-name patterns: either an
// exact name ("order.submit") or a wildcard-suffixed prefix ("cart.*").
// Absence from the list is an implicit denial, not an error — callers
// must check membership before invoking a tool. The same MatchPattern
// helper is shared by the tool dispatch table so "what's allowed" and
// "what's registered" cannot drift apart.
package allowlist

import (
	"strings"
)

// Foundation is the cross-cutting base grant present in every allowlist.
const Foundation = "foundation.*"

// Registry maps agent ids to their permitted tool-name patterns.
// Read-only after construction, safe under arbitrary concurrency.
type Registry struct {
	lists map[string][]string
}

// New builds a registry from an agent id → patterns map. The foundation
// grant is added to any list that does not already carry it.
func New(lists map[string][]string) *Registry {
	r := &Registry{lists: make(map[string][]string, len(lists))}
	for agent, patterns := range lists {
		out := make([]string, 0, len(patterns)+1)
		out = append(out, patterns...)
		if !contains(out, Foundation) {
			out = append(out, Foundation)
		}
		r.lists[agent] = out
	}
	return r
}

// Allowed reports whether the agent may invoke the named tool.
// Unknown agents are denied everything.
func (r *Registry) Allowed(agentID, toolName string) bool {
	for _, pattern := range r.lists[agentID] {
		if MatchPattern(pattern, toolName) {
			return true
		}
	}
	return false
}

// Patterns returns the agent's pattern list, or nil for unknown agents.
func (r *Registry) Patterns(agentID string) []string {
	return r.lists[agentID]
}

// Lists returns the full agent → patterns map for registration surfaces.
func (r *Registry) Lists() map[string][]string {
	return r.lists
}

// MatchPattern reports whether a tool name matches a single allowlist
// pattern. A pattern is either an exact tool name or a "prefix.*"
// wildcard that matches any tool in that family.
func MatchPattern(pattern, toolName string) bool {
	if prefix, ok := strings.CutSuffix(pattern, ".*"); ok {
		return strings.HasPrefix(toolName, prefix+".")
	}
	return pattern == toolName
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
