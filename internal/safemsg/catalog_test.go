package safemsg_test

import (
	"strings"
	"testing"

	"github.com/dinehall/dinehall/gateway/internal/safemsg"
)

func TestGet_KnownKeys(t *testing.T) {
	tests := []struct {
		category safemsg.Category
		key      string
	}{
		{safemsg.CategoryGuest, "injection_refusal"},
		{safemsg.CategoryGuest, "blocked"},
		{safemsg.CategoryStaff, "approval_pending"},
		{safemsg.CategoryAdmin, "escalation_notice"},
	}
	for _, tt := range tests {
		if got := safemsg.Get(tt.category, tt.key); got == "" {
			t.Errorf("Get(%s, %s) = empty string", tt.category, tt.key)
		}
	}
}

func TestGet_UnknownKeyFallsBack(t *testing.T) {
	got := safemsg.Get(safemsg.CategoryStaff, "no_such_key")
	want := safemsg.Get(safemsg.CategoryStaff, safemsg.GenericErrorKey)
	if got != want {
		t.Errorf("Get(staff, unknown) = %q, want staff generic error %q", got, want)
	}
}

func TestGet_IsTotal(t *testing.T) {
	// No input combination may produce an empty message.
	inputs := []struct {
		category safemsg.Category
		key      string
	}{
		{"", ""},
		{"nonsense", "nonsense"},
		{safemsg.CategoryGuest, ""},
		{"GUEST", "injection_refusal"},
	}
	for _, in := range inputs {
		if got := safemsg.Get(in.category, in.key); got == "" {
			t.Errorf("Get(%q, %q) = empty string, want guest generic error", in.category, in.key)
		}
	}
}

func TestGuestMessagesLeakNothing(t *testing.T) {
	// Guest refusals must not reference rules, scores, or detection internals.
	msg := strings.ToLower(safemsg.Get(safemsg.CategoryGuest, "injection_refusal"))
	for _, banned := range []string{"injection", "rule", "score", "pattern"} {
		if strings.Contains(msg, banned) {
			t.Errorf("guest message %q leaks detection internals (%q)", msg, banned)
		}
	}
}
