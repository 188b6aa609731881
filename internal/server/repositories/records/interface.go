// Package records provides the relay's authoritative store for durable-kind
// entities, with last-write-wins conflict resolution.
package records

import (
	"context"

	"github.com/beeroutine/haircareplus-sync/internal/server/models"
)

type Repository interface {
	// UpsertNewer inserts the record, or updates it when the incoming
	// modified_at_ms is strictly newer than the stored one. It reports
	// whether a write happened; a stale write is not an error.
	UpsertNewer(ctx context.Context, rec *models.DurableRecord) (bool, error)

	// SelectUpdated returns records with modified_at_ms > sinceMs, oldest
	// change first, id as the tiebreak.
	SelectUpdated(ctx context.Context, sinceMs int64, limit int) ([]*models.DurableRecord, error)

	// SelectTiedAfter returns, in id order, the records whose modified_at_ms
	// equals modifiedAtMs and whose id sorts after afterID. It completes a
	// delta page whose limit fell inside a group of same-millisecond writes;
	// a page must never split such a group, or the cursor would step over
	// the remainder.
	SelectTiedAfter(ctx context.Context, modifiedAtMs int64, afterID string) ([]*models.DurableRecord, error)

	// MaxModified returns the largest modified_at_ms in the store, 0 when
	// empty. It is the high watermark the delta cache keeps.
	MaxModified(ctx context.Context) (int64, error)

	// DeleteOlderThan removes records with modified_at_ms < cutoffMs and
	// returns how many rows went.
	DeleteOlderThan(ctx context.Context, cutoffMs int64) (int64, error)

	// ReferencedBlobURLs returns the distinct non-empty blob URLs still
	// referenced by stored records.
	ReferencedBlobURLs(ctx context.Context) ([]string, error)
}
