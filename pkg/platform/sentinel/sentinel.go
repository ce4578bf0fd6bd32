package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and upstream adapters return
// these (optionally wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: entity does not exist in the store
//   - ErrConflict: unique key already taken (document already on file)
//   - ErrInvalidState: entity in wrong state for the operation (decision already recorded)
//   - ErrUnavailable: backing service temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
