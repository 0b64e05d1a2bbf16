package domain

import (
	"fmt"
	"time"

	dErrors "circles/pkg/domain-errors"
)

// TTL bounds. A signal may live no less than 15 minutes and no more than
// 4 hours; outside that window the write is rejected before touching the
// store.
const (
	TTLMin     = 15 * time.Minute
	TTLMax     = 4 * time.Hour
	TTLDefault = time.Hour
)

// TTL is a validated signal lifetime. The zero TTL is not constructible
// through NewTTL, so holding a TTL means the bounds already held.
type TTL time.Duration

// NewTTL constructs a TTL from a duration. Passing zero selects the default
// lifetime; any other value must lie within [TTLMin, TTLMax].
//
// Errors: returns CodeValidation when the duration is out of bounds.
func NewTTL(d time.Duration) (TTL, error) {
	if d == 0 {
		return TTL(TTLDefault), nil
	}
	if d < TTLMin || d > TTLMax {
		return 0, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("ttl must be between %s and %s", TTLMin, TTLMax))
	}
	return TTL(d), nil
}

// NewTTLFromMillis constructs a TTL from a millisecond count, the unit used
// by stored records and the CLI.
func NewTTLFromMillis(ms int64) (TTL, error) {
	return NewTTL(time.Duration(ms) * time.Millisecond)
}

// Duration returns the underlying duration.
func (t TTL) Duration() time.Duration {
	return time.Duration(t)
}

// Millis returns the lifetime as a millisecond count.
func (t TTL) Millis() int64 {
	return time.Duration(t).Milliseconds()
}

// ExpiryFrom computes the expiry instant for a signal written at now.
func (t TTL) ExpiryFrom(now time.Time) time.Time {
	return now.Add(time.Duration(t))
}

// String returns the duration representation.
func (t TTL) String() string {
	return time.Duration(t).String()
}
