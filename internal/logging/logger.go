// Package logging is the structured-logging port every component of the
// engine takes instead of a concrete logger handle.
package logging

import "context"

// Logger is a context-aware, structured logger. The variadic args are
// alternating key/value pairs:
//
//	log.Info(ctx, "sync round complete", "sent", n, "cursor", cursor)
type Logger interface {
	Info(ctx context.Context, msg string, args ...any)

	// Warn records unusual but non-fatal conditions, such as a degraded
	// cache or a lost wake hint.
	Warn(ctx context.Context, msg string, args ...any)

	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always carries the given pairs.
	With(args ...any) Logger
}
