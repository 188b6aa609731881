package services

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/beeroutine/haircareplus-sync/internal/common"
	"github.com/beeroutine/haircareplus-sync/internal/dbx"
	"github.com/beeroutine/haircareplus-sync/internal/server/blob"
	"github.com/beeroutine/haircareplus-sync/internal/server/models"
	"github.com/beeroutine/haircareplus-sync/internal/server/repositories/packets"
	"github.com/beeroutine/haircareplus-sync/internal/server/repositories/records"
)

type fakeRecords struct {
	recs        map[string]*models.DurableRecord
	selectCalls int
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{recs: make(map[string]*models.DurableRecord)}
}

func (f *fakeRecords) UpsertNewer(_ context.Context, rec *models.DurableRecord) (bool, error) {
	existing, ok := f.recs[rec.ID]
	if ok && existing.ModifiedAtMs >= rec.ModifiedAtMs {
		return false, nil
	}
	clone := *rec
	f.recs[rec.ID] = &clone
	return true, nil
}

func (f *fakeRecords) SelectUpdated(_ context.Context, sinceMs int64, limit int) ([]*models.DurableRecord, error) {
	f.selectCalls++
	var result []*models.DurableRecord
	for _, rec := range f.recs {
		if rec.ModifiedAtMs > sinceMs {
			result = append(result, rec)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ModifiedAtMs != result[j].ModifiedAtMs {
			return result[i].ModifiedAtMs < result[j].ModifiedAtMs
		}
		return result[i].ID < result[j].ID
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (f *fakeRecords) SelectTiedAfter(_ context.Context, modifiedAtMs int64, afterID string) ([]*models.DurableRecord, error) {
	var result []*models.DurableRecord
	for _, rec := range f.recs {
		if rec.ModifiedAtMs == modifiedAtMs && rec.ID > afterID {
			result = append(result, rec)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (f *fakeRecords) MaxModified(context.Context) (int64, error) {
	var max int64
	for _, rec := range f.recs {
		if rec.ModifiedAtMs > max {
			max = rec.ModifiedAtMs
		}
	}
	return max, nil
}

func (f *fakeRecords) DeleteOlderThan(_ context.Context, cutoffMs int64) (int64, error) {
	var n int64
	for id, rec := range f.recs {
		if rec.ModifiedAtMs < cutoffMs {
			delete(f.recs, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeRecords) ReferencedBlobURLs(context.Context) ([]string, error) {
	var urls []string
	for _, rec := range f.recs {
		if rec.BlobURL != "" {
			urls = append(urls, rec.BlobURL)
		}
	}
	return urls, nil
}

type fakePackets struct {
	pkts map[string]*models.DeliveryPacket
}

func newFakePackets() *fakePackets {
	return &fakePackets{pkts: make(map[string]*models.DeliveryPacket)}
}

func (f *fakePackets) Enqueue(_ context.Context, pkts []*models.DeliveryPacket) error {
	for _, p := range pkts {
		clone := *p
		f.pkts[p.ID] = &clone
	}
	return nil
}

func (f *fakePackets) PendingFor(_ context.Context, roleMask uint8, limit int) ([]*models.DeliveryPacket, error) {
	var result []*models.DeliveryPacket
	for _, p := range f.pkts {
		if p.ReceiversMask&roleMask != 0 && p.DeliveredMask&roleMask == 0 {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (f *fakePackets) Acknowledge(_ context.Context, ids []string, roleMask uint8) error {
	for _, id := range ids {
		if p, ok := f.pkts[id]; ok {
			p.DeliveredMask |= roleMask
		}
	}
	return nil
}

func (f *fakePackets) Reclaimable(_ context.Context, now time.Time) ([]*models.DeliveryPacket, error) {
	var result []*models.DeliveryPacket
	for _, p := range f.pkts {
		if p.Delivered() || !p.ExpiresAt.After(now) {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (f *fakePackets) DeleteByIDs(_ context.Context, ids []string) error {
	for _, id := range ids {
		delete(f.pkts, id)
	}
	return nil
}

func (f *fakePackets) ReferencedBlobURLs(context.Context) ([]string, error) {
	var urls []string
	for _, p := range f.pkts {
		if p.BlobURL != "" {
			urls = append(urls, p.BlobURL)
		}
	}
	return urls, nil
}

type fakeManager struct {
	recs *fakeRecords
	pkts *fakePackets
}

func (m *fakeManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeManager) Packets(dbx.DBTX) packets.Repository          { return m.pkts }
func (m *fakeManager) Records(dbx.DBTX) records.Repository          { return m.recs }

type fakeHinter struct {
	published []common.Role
}

func (h *fakeHinter) Publish(_ context.Context, role common.Role) {
	h.published = append(h.published, role)
}

type fakeBlobStore struct {
	objs       map[string]time.Time
	failDelete map[string]bool
	deleted    []string
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objs: make(map[string]time.Time), failDelete: make(map[string]bool)}
}

func (b *fakeBlobStore) Upload(_ context.Context, _ []byte, _ string) (string, error) {
	return "", nil
}

func (b *fakeBlobStore) Delete(_ context.Context, url string) error {
	if b.failDelete[url] {
		return errBlobDown
	}
	delete(b.objs, url)
	b.deleted = append(b.deleted, url)
	return nil
}

func (b *fakeBlobStore) List(context.Context) ([]blob.ObjectInfo, error) {
	var result []blob.ObjectInfo
	for url, mod := range b.objs {
		result = append(result, blob.ObjectInfo{URL: url, LastModified: mod})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].URL < result[j].URL })
	return result, nil
}
