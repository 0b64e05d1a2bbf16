package domain

import dErrors "circles/pkg/domain-errors"

// ConnectionStatus is the lifecycle state of a connection record. Legal
// transitions are encoded here so illegal states are unrepresentable:
// nothing ever returns to pending, and blocked is terminal.
type ConnectionStatus string

const (
	ConnectionStatusPending ConnectionStatus = "pending"
	ConnectionStatusActive  ConnectionStatus = "active"
	ConnectionStatusRevoked ConnectionStatus = "revoked"
	ConnectionStatusBlocked ConnectionStatus = "blocked"
)

// validConnectionStatuses is the single source of truth for the status enum.
var validConnectionStatuses = map[ConnectionStatus]bool{
	ConnectionStatusPending: true,
	ConnectionStatusActive:  true,
	ConnectionStatusRevoked: true,
	ConnectionStatusBlocked: true,
}

// connectionTransitions encodes the full state machine:
// pending -> active (invite acceptance only), active -> revoked,
// any state -> blocked. Blocked has no exits.
var connectionTransitions = map[ConnectionStatus]map[ConnectionStatus]bool{
	ConnectionStatusPending: {
		ConnectionStatusActive:  true,
		ConnectionStatusBlocked: true,
	},
	ConnectionStatusActive: {
		ConnectionStatusRevoked: true,
		ConnectionStatusBlocked: true,
	},
	ConnectionStatusRevoked: {
		ConnectionStatusBlocked: true,
	},
	ConnectionStatusBlocked: {},
}

// ParseConnectionStatus constructs a ConnectionStatus from stored or external
// input.
//
// Errors: returns CodeInvalidInput when the value is empty or not a member of
// the enum; no other errors are expected.
func ParseConnectionStatus(s string) (ConnectionStatus, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "status cannot be empty")
	}
	st := ConnectionStatus(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid connection status")
	}
	return st, nil
}

// IsValid checks if the status is one of the supported enum values.
func (s ConnectionStatus) IsValid() bool {
	return validConnectionStatuses[s]
}

// CanTransitionTo reports whether moving from s to next is a legal
// transition. Same-state "transitions" are not legal; idempotent mutations
// are handled as no-op successes by the registry, not by the state machine.
func (s ConnectionStatus) CanTransitionTo(next ConnectionStatus) bool {
	return connectionTransitions[s][next]
}

// IsTerminal reports whether the status admits no further transitions.
func (s ConnectionStatus) IsTerminal() bool {
	return len(connectionTransitions[s]) == 0
}

// String returns the string representation of the status.
func (s ConnectionStatus) String() string {
	return string(s)
}

// InitiatedBy records which party of a pair created the connection, from the
// perspective of the record's owner.
type InitiatedBy string

const (
	InitiatedByLocal  InitiatedBy = "local"
	InitiatedByRemote InitiatedBy = "remote"
)

// ParseInitiatedBy constructs an InitiatedBy from stored input.
//
// Errors: returns CodeInvalidInput when the value is not local or remote.
func ParseInitiatedBy(s string) (InitiatedBy, error) {
	switch InitiatedBy(s) {
	case InitiatedByLocal:
		return InitiatedByLocal, nil
	case InitiatedByRemote:
		return InitiatedByRemote, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid initiatedBy")
	}
}

// Opposite returns the counterpart perspective. The two records of a pair
// always carry opposite values.
func (i InitiatedBy) Opposite() InitiatedBy {
	if i == InitiatedByLocal {
		return InitiatedByRemote
	}
	return InitiatedByLocal
}

// IsValid checks if the value is one of the two perspectives.
func (i InitiatedBy) IsValid() bool {
	return i == InitiatedByLocal || i == InitiatedByRemote
}

// String returns the string representation.
func (i InitiatedBy) String() string {
	return string(i)
}
