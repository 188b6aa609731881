// Package common defines shared constants, entity-kind and role enums, and
// sentinel errors used across client and server layers. Callers should use
// errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Transport-level errors. A round that fails with ErrUnavailable is safe
	// to retry on the next cycle with no local state changed.
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")

	// Validation errors.
	ErrUnknownRole       = errors.New("client id carries no known role prefix")
	ErrUnknownEntityKind = errors.New("unknown entity kind")
)
