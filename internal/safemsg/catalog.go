// Package safemsg holds the role-scoped catalog of user-facing safety
// messages. Messages are deliberately generic: a guest is never told
// which rule fired, and staff/admin strings may mention that an incident
// or approval exists but never expose rule names or scores.
package safemsg

// Category scopes messages to an audience.
type Category string

const (
	CategoryGuest Category = "guest"
	CategoryStaff Category = "staff"
	CategoryAdmin Category = "admin"
)

// GenericErrorKey is the universal fallback message key.
const GenericErrorKey = "generic_error"

var catalog = map[Category]map[string]string{
	CategoryGuest: {
		GenericErrorKey:     "Sorry, something went wrong. Please try again.",
		"injection_refusal": "I can only help with menu, ordering, and service questions.",
		"abuse_refusal":     "I can't continue with this conversation. A member of staff can help you directly.",
		"blocked":           "This session is temporarily paused. Please try again shortly.",
		"rate_limited":      "You're sending messages a little fast. Give it a moment and try again.",
		"order_unavailable": "We couldn't process that order right now. Please flag a member of staff.",
	},
	CategoryStaff: {
		GenericErrorKey:    "The request could not be completed. Please retry or contact support.",
		"incident_created": "This message was flagged for review. An incident record has been created.",
		"approval_pending": "This action needs manager approval before it can proceed.",
		"session_blocked":  "The guest session has been paused by the safety system.",
	},
	CategoryAdmin: {
		GenericErrorKey:     "Operation failed. Check the incident ledger for details.",
		"incident_created":  "A security incident was opened for this session.",
		"escalation_notice": "A high-severity event was escalated. Review the open incidents queue.",
		"approval_created":  "An approval request was created and is waiting for a decision.",
	},
}

// Get returns the message for the category and key. It is total: an
// unknown key within a known category falls back to that category's
// generic error, and anything else falls back to the guest generic
// error. It never returns an empty string.
func Get(category Category, key string) string {
	if msgs, ok := catalog[category]; ok {
		if msg, ok := msgs[key]; ok {
			return msg
		}
		if msg, ok := msgs[GenericErrorKey]; ok {
			return msg
		}
	}
	return catalog[CategoryGuest][GenericErrorKey]
}
