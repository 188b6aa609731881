// Package outbox persists not-yet-confirmed local mutations in a durable
// FIFO queue. Entries are produced by the mutation layer and consumed only
// by the sync client after a confirmed round-trip.
package outbox

import (
	"context"

	"github.com/beeroutine/haircareplus-sync/internal/client/models"
	"github.com/beeroutine/haircareplus-sync/internal/common"
)

// Repository describes the outbox queue operations.
//
// Enqueue never blocks on the network; storage errors propagate to the
// caller, which must surface or retry them. A failed enqueue must not drop
// the mutation silently.
type Repository interface {
	// Enqueue appends a pending entry and returns its queue id.
	Enqueue(ctx context.Context, kind common.EntityKind, payload []byte, localEntityID string) (int64, error)

	// ListPending returns all pending entries, oldest first.
	ListPending(ctx context.Context) ([]models.OutboxEntry, error)

	// MarkStatus updates the status of the given entries. Called only by the
	// sync client after a round-trip.
	MarkStatus(ctx context.Context, ids []int64, status models.OutboxStatus) error

	// IncrementRetry bumps the retry counter and reverts the entries to
	// pending so they are resent on the next cycle.
	IncrementRetry(ctx context.Context, ids []int64) error

	// Delete removes entries; legal only once they are acked.
	Delete(ctx context.Context, ids []int64) error

	// CountPending reports the backlog size for monitoring.
	CountPending(ctx context.Context) (int64, error)
}
