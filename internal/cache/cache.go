// Package cache provides a small cache abstraction with an explicit
// invalidation contract. The client uses the in-memory implementation; the
// server uses the Redis-backed one for durable-delta watermarks.
package cache

import (
	"context"
	"time"
)

// Cache stores serializable values under string keys with a TTL.
//
// Get reports whether the key was present; a miss is not an error. Writers
// that change underlying data must call Delete for the affected keys:
// invalidation is explicit, never ad hoc.
type Cache interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string, dest any) (bool, error)
	Delete(ctx context.Context, key string) error
}

// SubjectKey builds the canonical cache key for state scoped to one subject.
func SubjectKey(prefix, subjectID string) string {
	return prefix + ":" + subjectID
}
