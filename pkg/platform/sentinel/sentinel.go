package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Entity stores, consent registries and
// audit sinks return these (optionally wrapped) so services can translate them
// into domain errors at the boundary.
//
//   - ErrNotFound: key does not exist in the store
//   - ErrConflict: key already exists where a create was requested
//   - ErrInvalidState: record is in the wrong shape for the requested operation
//   - ErrUnavailable: backend temporarily unreachable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
