package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, allocators and the asset
// adapter return these (optionally wrapped); the registration service
// translates them into domain-error codes.
//
//   - ErrNotFound: record or object does not exist
//   - ErrAlreadyUsed: a one-shot write (profile lock) already happened
//   - ErrInvalidState: the row is in the wrong state for the write (locked draft)
//   - ErrConflict: the row changed after the caller read it
//   - ErrExpired: a signed token is past its expiry
//   - ErrUnavailable: backend unreachable or timed out
var (
	ErrNotFound     = errors.New("not found")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrUnavailable  = errors.New("unavailable")
)
