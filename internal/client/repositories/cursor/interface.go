// Package cursor persists the client's synchronization watermark and the
// packet ids awaiting acknowledgement. Both must survive process restarts
// and failed rounds: the pending-ack list is what makes acknowledgement
// at-least-once instead of best-effort.
package cursor

import "context"

// Repository stores the sync cursor and the pending-ack id list.
type Repository interface {
	// Cursor returns the last confirmed server watermark in epoch ms
	// (zero when the client has never completed a round).
	Cursor(ctx context.Context) (int64, error)

	// SetCursor advances the watermark. Regressions are ignored: the cursor
	// is monotonically non-decreasing.
	SetCursor(ctx context.Context, cursor int64) error

	// PendingAcks returns packet ids received but not yet acknowledged
	// server-side.
	PendingAcks(ctx context.Context) ([]string, error)

	// AddPendingAcks appends ids to the pending-ack list (deduplicated).
	AddPendingAcks(ctx context.Context, ids []string) error

	// RemovePendingAcks drops exactly the given ids, keeping any that were
	// accumulated after they were snapshotted for a request.
	RemovePendingAcks(ctx context.Context, ids []string) error
}
