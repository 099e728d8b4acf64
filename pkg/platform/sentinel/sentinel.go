package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so guards can translate them into decisions.
//
// These represent factual states about resources, not policy verdicts:
// - ErrNotFound: entity does not exist in store
// - ErrExpired: token/window has expired
// - ErrMalformed: wire data could not be decoded
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrUnavailable: backing store temporarily unavailable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrMalformed    = errors.New("malformed")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
