// Package packets provides the relay's delivery queue: per-role packet
// storage with receiver/delivered bitmask accounting.
package packets

import (
	"context"
	"time"

	"github.com/beeroutine/haircareplus-sync/internal/server/models"
)

type Repository interface {
	// Enqueue stores the packets. Enqueueing an id that already exists is an
	// error; packet ids are generated server-side per ingest.
	Enqueue(ctx context.Context, pkts []*models.DeliveryPacket) error

	// PendingFor returns packets addressed to any role in roleMask that this
	// role has not yet acknowledged and that are not expired, oldest first.
	PendingFor(ctx context.Context, roleMask uint8, limit int) ([]*models.DeliveryPacket, error)

	// Acknowledge ORs roleMask into the delivered mask of the given packets.
	Acknowledge(ctx context.Context, ids []string, roleMask uint8) error

	// Reclaimable returns packets whose every receiver bit is delivered, or
	// whose expiry has passed.
	Reclaimable(ctx context.Context, now time.Time) ([]*models.DeliveryPacket, error)

	// DeleteByIDs removes the given packets.
	DeleteByIDs(ctx context.Context, ids []string) error

	// ReferencedBlobURLs returns the distinct non-empty blob URLs still
	// referenced by queued packets.
	ReferencedBlobURLs(ctx context.Context) ([]string, error)
}
