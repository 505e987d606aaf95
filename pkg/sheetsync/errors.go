package sheetsync

import "errors"

var (
	// ErrStoreNotConfigured is returned by a row store that is missing credentials or ids
	ErrStoreNotConfigured = errors.New("row store not configured")

	// ErrInvalidRange is returned for ranges that are not valid A1 notation
	ErrInvalidRange = errors.New("invalid range")

	// ErrConflict is returned by a conditional write when the observed cells changed
	ErrConflict = errors.New("row store write conflict")

	// ErrInvalidIntent is returned for intents missing their key
	ErrInvalidIntent = errors.New("invalid intent")

	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)
