// Package laws is the invariant enforcement layer. Every structural rule the
// core guarantees is encoded here as an assert that either passes or returns
// a typed *Violation. Mutating operations call the relevant asserts on their
// inputs and on their outputs before returning.
//
// A Violation is not a user error. It signals an implementation defect:
// callers propagate it, the facade logs it at Error level and counts it, and
// tests treat it as fatal. Nothing in production logic may swallow one.
package laws

import (
	"errors"
	"fmt"
	"sync"
)

// LawID names one enforced rule. The set is closed; asserts never invent ids.
type LawID string

const (
	LawConnectionCeiling      LawID = "connection-ceiling"
	LawTTLBounds              LawID = "ttl-bounds"
	LawPayloadDenylist        LawID = "payload-denylist"
	LawSelfConnection         LawID = "self-connection"
	LawStatusMembership       LawID = "status-membership"
	LawInviteSingleUse        LawID = "invite-single-use"
	LawPairSymmetry           LawID = "pair-symmetry"
	LawRevocationCompleteness LawID = "revocation-completeness"
	LawStorageNamespace       LawID = "storage-namespace"
)

// MaxActiveConnections is the per-identity ceiling on active connections.
const MaxActiveConnections = 25

// StorageNamespace is the fixed prefix every persisted key must carry.
const StorageNamespace = "circles:"

// Violation carries the broken law, a human message, and structured context.
type Violation struct {
	Law     LawID
	Message string
	Context map[string]any
}

func (v *Violation) Error() string {
	return fmt.Sprintf("law %s violated: %s", v.Law, v.Message)
}

// AsViolation extracts a *Violation from an error chain.
func AsViolation(err error) (*Violation, bool) {
	var v *Violation
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

var (
	observerMu sync.RWMutex
	observer   func(*Violation)
)

// SetObserver installs a hook invoked once for every violation raised, before
// the violation is returned to the caller. The facade uses it to count
// violations per law. Passing nil removes the hook.
func SetObserver(fn func(*Violation)) {
	observerMu.Lock()
	defer observerMu.Unlock()
	observer = fn
}

func violated(law LawID, message string, context map[string]any) error {
	v := &Violation{Law: law, Message: message, Context: context}

	observerMu.RLock()
	fn := observer
	observerMu.RUnlock()
	if fn != nil {
		fn(v)
	}
	return v
}
