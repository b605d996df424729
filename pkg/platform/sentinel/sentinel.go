package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, clients and caches return
// these (optionally wrapped) so services can translate them into domain errors.
//
// - ErrNotFound: key, payload or provider key does not exist
// - ErrConflict: remote state disagrees with the request
// - ErrUnavailable: backend or storage temporarily unavailable
// - ErrInvalidState: component used in a state that does not allow the operation
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("unavailable")
	ErrInvalidState = errors.New("invalid state")
)
