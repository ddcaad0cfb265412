// Package tools implements the tool invocation boundary: a dispatch
// table of wrappers that validate input, enforce the caller agent's
// allowlist and the research fence, and delegate to the backend
// execution client. Wrappers never retry and never mutate input in ways
// that could hide fields from validation.
package tools

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/dinehall/dinehall/gateway/internal/allowlist"
	"github.com/dinehall/dinehall/gateway/internal/fence"
	"github.com/dinehall/dinehall/gateway/pkg/contracts"
	"github.com/dinehall/dinehall/gateway/pkg/models"
)

// Handler executes one named tool against validated input.
type Handler func(ctx context.Context, input json.RawMessage, cc models.ClientContext) (json.RawMessage, error)

// Registry is the tool dispatch table. Tool names share the glob
// vocabulary of the allowlist registry, so permission checks and
// dispatch can never disagree about what a name means.
type Registry struct {
	backend  contracts.Backend
	fence    *fence.Fence
	allow    *allowlist.Registry
	handlers map[string]Handler
}

// NewRegistry builds the dispatch table with the built-in tool wrappers.
// Additional handlers (the safety gateway's tools, the admin incident
// tools) are attached with Register at composition time.
func NewRegistry(backend contracts.Backend, f *fence.Fence, allow *allowlist.Registry) *Registry {
	r := &Registry{
		backend:  backend,
		fence:    f,
		allow:    allow,
		handlers: make(map[string]Handler),
	}
	r.registerBuiltins()
	return r
}

// Register attaches or replaces a handler for a tool name.
func (r *Registry) Register(toolName string, h Handler) {
	r.handlers[toolName] = h
}

// Tools returns the sorted-input-order list of registered tool names.
func (r *Registry) Tools() []string {
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	return out
}

// Invoke dispatches one tool call on behalf of an agent. Order of
// checks: the tool must exist, the agent's allowlist must match, then
// the wrapper validates and executes. Unknown tools and allowlist misses
// are both denials — an attacker probing for tool names learns nothing
// from the difference.
func (r *Registry) Invoke(ctx context.Context, agentID, toolName string, input json.RawMessage, cc models.ClientContext) (json.RawMessage, error) {
	handler, ok := r.handlers[toolName]
	if !ok {
		return nil, &DeniedError{Agent: agentID, Tool: toolName, Reason: "no such tool"}
	}
	if !r.allow.Allowed(agentID, toolName) {
		return nil, &DeniedError{Agent: agentID, Tool: toolName, Reason: "not in agent allowlist"}
	}
	return handler(ctx, input, cc)
}

// decodeStrict unmarshals tool input into v, rejecting unknown fields
// and trailing garbage. A nil/empty input decodes as an empty object so
// tools without required fields accept a bare call.
func decodeStrict(toolName string, input json.RawMessage, v interface{}) error {
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(input))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &ValidationError{Tool: toolName, Reason: err.Error()}
	}
	if dec.More() {
		return &ValidationError{Tool: toolName, Reason: "trailing data after JSON object"}
	}
	return nil
}
