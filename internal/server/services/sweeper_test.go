package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beeroutine/haircareplus-sync/internal/server/models"
)

var errBlobDown = errors.New("blob store is down")

func newSweeper(t *testing.T, opts ...SweepOption) (*Sweeper, *fakePackets, *fakeRecords, *fakeBlobStore) {
	t.Helper()
	pkts := newFakePackets()
	recs := newFakeRecords()
	blobs := newFakeBlobStore()
	s := NewSweeper(pkts, recs, blobs, testLogger(), opts...)
	s.now = func() time.Time { return time.UnixMilli(1_000_000) }
	return s, pkts, recs, blobs
}

func packet(id string, receivers, delivered uint8, blobURL string, expiresAt time.Time) *models.DeliveryPacket {
	return &models.DeliveryPacket{
		ID:            id,
		Kind:          "photo_report",
		SubjectID:     "subj1",
		Payload:       []byte(`{}`),
		BlobURL:       blobURL,
		ReceiversMask: receivers,
		DeliveredMask: delivered,
		CreatedAt:     time.UnixMilli(0),
		ExpiresAt:     expiresAt,
	}
}

func TestSweepOnce_ReclaimsDeliveredAndExpiredPackets(t *testing.T) {
	s, pkts, _, blobs := newSweeper(t)
	ctx := context.Background()

	future := time.UnixMilli(2_000_000)
	past := time.UnixMilli(500_000)
	blobs.objs["http://blob/a"] = time.UnixMilli(0)
	require.NoError(t, pkts.Enqueue(ctx, []*models.DeliveryPacket{
		packet("delivered", 2, 2, "http://blob/a", future),
		packet("expired", 2, 0, "", past),
		packet("pending", 2, 0, "", future),
	}))

	s.SweepOnce(ctx)

	assert.NotContains(t, pkts.pkts, "delivered")
	assert.NotContains(t, pkts.pkts, "expired")
	assert.Contains(t, pkts.pkts, "pending")
	assert.Contains(t, blobs.deleted, "http://blob/a")
}

func TestSweepOnce_BlobDeleteFailureKeepsRow(t *testing.T) {
	s, pkts, _, blobs := newSweeper(t)
	ctx := context.Background()

	blobs.objs["http://blob/a"] = time.UnixMilli(0)
	blobs.failDelete["http://blob/a"] = true
	require.NoError(t, pkts.Enqueue(ctx, []*models.DeliveryPacket{
		packet("p1", 2, 2, "http://blob/a", time.UnixMilli(2_000_000)),
	}))

	s.SweepOnce(ctx)

	assert.Contains(t, pkts.pkts, "p1", "row must survive until the blob is gone")

	// Next pass, with the store healthy again, finishes the job.
	blobs.failDelete["http://blob/a"] = false
	s.SweepOnce(ctx)
	assert.NotContains(t, pkts.pkts, "p1")
	assert.Contains(t, blobs.deleted, "http://blob/a")
}

func TestSweepOnce_AgesOutDurableRecords(t *testing.T) {
	retention := 100 * time.Hour
	s, _, recs, _ := newSweeper(t, WithRetention(retention))
	ctx := context.Background()

	cutoff := time.UnixMilli(1_000_000).Add(-retention).UnixMilli()
	_, err := recs.UpsertNewer(ctx, &models.DurableRecord{ID: "old", Kind: "chat_message", ModifiedAtMs: cutoff - 1})
	require.NoError(t, err)
	_, err = recs.UpsertNewer(ctx, &models.DurableRecord{ID: "fresh", Kind: "chat_message", ModifiedAtMs: cutoff + 1})
	require.NoError(t, err)

	s.SweepOnce(ctx)

	assert.NotContains(t, recs.recs, "old")
	assert.Contains(t, recs.recs, "fresh")
}

func TestSweepOnce_OrphanBlobSweep(t *testing.T) {
	s, pkts, recs, blobs := newSweeper(t, WithOrphanGrace(time.Second))
	ctx := context.Background()

	old := time.UnixMilli(0)
	blobs.objs["http://blob/orphan"] = old
	blobs.objs["http://blob/young-orphan"] = time.UnixMilli(999_999)
	blobs.objs["http://blob/packet-ref"] = old
	blobs.objs["http://blob/record-ref"] = old

	require.NoError(t, pkts.Enqueue(ctx, []*models.DeliveryPacket{
		packet("p1", 2, 0, "http://blob/packet-ref", time.UnixMilli(2_000_000)),
	}))
	_, err := recs.UpsertNewer(ctx, &models.DurableRecord{
		ID: "c1", Kind: "photo_comment", BlobURL: "http://blob/record-ref", ModifiedAtMs: 999_000,
	})
	require.NoError(t, err)

	s.SweepOnce(ctx)

	assert.Equal(t, []string{"http://blob/orphan"}, blobs.deleted,
		"referenced and recently uploaded blobs must survive")
}
