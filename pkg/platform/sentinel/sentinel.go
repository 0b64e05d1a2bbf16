package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Store adapters return these
// (optionally wrapped) so services can translate them into coded domain
// errors without knowing which backend they sit on.
//
// ErrNotFound states a fact: the key holds nothing. Whether that is an error
// at all depends on the caller; a missing signal projects as unknown, a
// missing invite is CodeNotFound. Validation failures never use sentinels,
// they are coded in pkg/domain-errors directly.
var ErrNotFound = errors.New("not found")
