package domain

import (
	"github.com/google/uuid"

	dErrors "circles/pkg/domain-errors"
)

// Typed identifiers. Distinct types prevent a connection id from being
// passed where a user id belongs; the compiler enforces what runtime
// checks cannot.
//
// Invariant: IDs must be valid, non-empty, non-nil UUIDs. Construct via the
// Parse functions at trust boundaries; direct casting bypasses validation.

// UserID identifies a local or remote identity.
type UserID uuid.UUID

// ConnectionID identifies one perspective record of a connection pair.
type ConnectionID uuid.UUID

// NewUserID generates a fresh random UserID.
func NewUserID() UserID {
	return UserID(uuid.New())
}

// NewConnectionID generates a fresh random ConnectionID.
func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.New())
}

// ParseUserID constructs a UserID from external input.
//
// Errors: returns CodeInvalidInput when the value is empty, malformed, or the
// nil UUID; no other errors are expected.
func ParseUserID(s string) (UserID, error) {
	id, err := parseID(s)
	if err != nil {
		return UserID{}, err
	}
	return UserID(id), nil
}

// ParseConnectionID constructs a ConnectionID from external input.
//
// Errors: returns CodeInvalidInput when the value is empty, malformed, or the
// nil UUID; no other errors are expected.
func ParseConnectionID(s string) (ConnectionID, error) {
	id, err := parseID(s)
	if err != nil {
		return ConnectionID{}, err
	}
	return ConnectionID(id), nil
}

func parseID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return id, nil
}

func (id UserID) String() string {
	return uuid.UUID(id).String()
}

func (id UserID) IsZero() bool {
	return uuid.UUID(id) == uuid.Nil
}

// MarshalText lets UserID serve as a JSON object key and text field.
func (id UserID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id ConnectionID) String() string {
	return uuid.UUID(id).String()
}

func (id ConnectionID) IsZero() bool {
	return uuid.UUID(id) == uuid.Nil
}

// MarshalText lets ConnectionID key the resolver's signal map when callers
// marshal it to JSON.
func (id ConnectionID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ConnectionID) UnmarshalText(b []byte) error {
	parsed, err := ParseConnectionID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
