// Package audit captures the consent-grade trail of circle mutations. Events
// are transport-agnostic so sinks can fan out; delivery never blocks a core
// operation.
package audit

import (
	"time"

	"circles/pkg/domain"
)

// Category classifies audit events by their primary purpose. This enables
// different retention policies, storage backends, and routing.
type Category string

const (
	// CategoryConsent covers events that change who may see what: identity
	// creation, invites, acceptance, revocation. These carry the consent
	// history and want long retention.
	CategoryConsent Category = "consent"

	// CategorySecurity covers events relevant to monitoring and forensics:
	// denied handshakes, blocks, law violations.
	CategorySecurity Category = "security"

	// CategoryOperations covers routine activity useful for debugging. These
	// can be sampled or aggregated with short retention.
	CategoryOperations Category = "operations"
)

// Action names one auditable operation.
type Action string

const (
	// Consent trail
	ActionIdentityCreated   Action = "identity_created"
	ActionInviteCreated     Action = "invite_created"
	ActionInviteAccepted    Action = "invite_accepted"
	ActionConnectionRevoked Action = "connection_revoked"

	// Security trail
	ActionUserBlocked  Action = "user_blocked"
	ActionInviteDenied Action = "invite_denied"
	ActionLawViolation Action = "law_violation"

	// Operations trail
	ActionDisplayHintSet    Action = "display_hint_set"
	ActionSignalSet         Action = "signal_set"
	ActionSignalMapResolved Action = "signal_map_resolved"
)

// actionCategories maps each action to its category.
var actionCategories = map[Action]Category{
	ActionIdentityCreated:   CategoryConsent,
	ActionInviteCreated:     CategoryConsent,
	ActionInviteAccepted:    CategoryConsent,
	ActionConnectionRevoked: CategoryConsent,

	ActionUserBlocked:  CategorySecurity,
	ActionInviteDenied: CategorySecurity,
	ActionLawViolation: CategorySecurity,

	ActionDisplayHintSet:    CategoryOperations,
	ActionSignalSet:         CategoryOperations,
	ActionSignalMapResolved: CategoryOperations,
}

// Category returns the category for this action. Unknown actions default to
// CategoryOperations.
func (a Action) Category() Category {
	if cat, ok := actionCategories[a]; ok {
		return cat
	}
	return CategoryOperations
}

// Event is one audit record. Subject identifies the entity acted on
// (connection id, redacted token); Outcome is "ok" or the coded failure;
// Reason carries the operational cause on denials and violations, never
// user-shared content.
type Event struct {
	Category  Category      `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	UserID    domain.UserID `json:"user_id"`
	Action    Action        `json:"action"`
	Subject   string        `json:"subject,omitempty"`
	Outcome   string        `json:"outcome"`
	Reason    string        `json:"reason,omitempty"`
}

// NewEvent builds an event stamped at now with the action's category.
func NewEvent(action Action, userID domain.UserID, subject, outcome string, now time.Time) Event {
	return Event{
		Category:  action.Category(),
		Timestamp: now,
		UserID:    userID,
		Action:    action,
		Subject:   subject,
		Outcome:   outcome,
	}
}
