package tools

import "fmt"

// DeniedError is a policy denial: the agent may not invoke the tool, or
// the invocation violates a fence. Handlers map it to 403. Denials are
// loud by design — downgrading one to a warning is a security regression.
type DeniedError struct {
	Agent  string
	Tool   string
	Reason string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("agent %q denied tool %q: %s", e.Agent, e.Tool, e.Reason)
}

// ValidationError is a malformed-input rejection, raised before any
// backend call. Permanent: retrying without correcting the input cannot
// succeed.
type ValidationError struct {
	Tool   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tool %q: invalid input: %s", e.Tool, e.Reason)
}
