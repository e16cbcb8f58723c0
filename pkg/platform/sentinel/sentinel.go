package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors with
// user-facing messages.
//
// These represent factual states about rows, not rule violations:
// - ErrNotFound: row does not exist in the store
// - ErrAlreadyUsed: a uniqueness constraint already holds the key
//   (duplicate enrollment, duplicate offering, taken course code or username)
// - ErrConflict: the row is still referenced and cannot be removed
// - ErrUnavailable: the backing store is temporarily unreachable
//
// Eligibility and ownership rules live in the services; stores never encode
// them.
var (
	ErrNotFound    = errors.New("not found")
	ErrAlreadyUsed = errors.New("already used")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
