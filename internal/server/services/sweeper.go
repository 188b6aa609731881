package services

import (
	"context"
	"time"

	"github.com/beeroutine/haircareplus-sync/internal/logging"
	"github.com/beeroutine/haircareplus-sync/internal/metrics"
	"github.com/beeroutine/haircareplus-sync/internal/server/blob"
	"github.com/beeroutine/haircareplus-sync/internal/server/repositories/packets"
	"github.com/beeroutine/haircareplus-sync/internal/server/repositories/records"
)

const (
	// DefaultSweepInterval is the cadence of the retention pass.
	DefaultSweepInterval = time.Hour
	// DefaultRetention is how long durable records are kept.
	DefaultRetention = 365 * 24 * time.Hour
	// DefaultOrphanGrace protects blobs uploaded moments ago whose referencing
	// row has not landed yet.
	DefaultOrphanGrace = time.Hour
)

// Sweeper reclaims delivered and expired packets, ages out durable records
// and collects orphaned blobs. Blobs always go before their rows, so a crash
// mid-pass leaves a retriable row, never an unreachable blob.
type Sweeper struct {
	packets     packets.Repository
	records     records.Repository
	blobs       blob.Store
	logger      logging.Logger
	interval    time.Duration
	retention   time.Duration
	orphanGrace time.Duration
	now         func() time.Time
}

// SweepOption customizes a Sweeper.
type SweepOption func(*Sweeper)

// WithSweepInterval overrides the pass cadence.
func WithSweepInterval(d time.Duration) SweepOption {
	return func(s *Sweeper) { s.interval = d }
}

// WithRetention overrides the durable record retention window.
func WithRetention(d time.Duration) SweepOption {
	return func(s *Sweeper) { s.retention = d }
}

// WithOrphanGrace overrides the minimum age before an unreferenced blob is
// collected.
func WithOrphanGrace(d time.Duration) SweepOption {
	return func(s *Sweeper) { s.orphanGrace = d }
}

// NewSweeper wires the retention sweeper.
func NewSweeper(pkts packets.Repository, recs records.Repository, blobs blob.Store,
	logger logging.Logger, opts ...SweepOption) *Sweeper {
	s := &Sweeper{
		packets:     pkts,
		records:     recs,
		blobs:       blobs,
		logger:      logger,
		interval:    DefaultSweepInterval,
		retention:   DefaultRetention,
		orphanGrace: DefaultOrphanGrace,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run drives SweepOnce on the configured interval until the context is
// cancelled. The first pass runs immediately.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.SweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs one full retention pass. Each stage logs its own failures
// and the pass continues; everything skipped is retried on the next pass.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	start := s.now()

	s.sweepPackets(ctx)
	s.sweepDurable(ctx)
	s.sweepOrphanBlobs(ctx)

	metrics.SweepDuration.Observe(time.Since(start).Seconds())
}

func (s *Sweeper) sweepPackets(ctx context.Context) {
	reclaimable, err := s.packets.Reclaimable(ctx, s.now())
	if err != nil {
		s.logger.Error(ctx, "reclaimable packet query failed", "error", err)
		return
	}

	var deletable []string
	for _, p := range reclaimable {
		if p.BlobURL != "" && s.blobs != nil {
			if err := s.blobs.Delete(ctx, p.BlobURL); err != nil {
				// Keep the row so the blob delete is retried next pass.
				s.logger.Warn(ctx, "packet blob delete failed, keeping row",
					"packet_id", p.ID, "blob_url", p.BlobURL, "error", err)
				continue
			}
			metrics.BlobsDeleted.Inc()
		}
		deletable = append(deletable, p.ID)
	}

	if err := s.packets.DeleteByIDs(ctx, deletable); err != nil {
		s.logger.Error(ctx, "packet delete failed", "error", err)
		return
	}
	metrics.PacketsSwept.Add(float64(len(deletable)))
	if len(deletable) > 0 {
		s.logger.Info(ctx, "packets reclaimed", "count", len(deletable))
	}
}

func (s *Sweeper) sweepDurable(ctx context.Context) {
	cutoff := s.now().Add(-s.retention).UnixMilli()
	n, err := s.records.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error(ctx, "durable retention delete failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info(ctx, "aged durable records deleted", "count", n)
	}
}

func (s *Sweeper) sweepOrphanBlobs(ctx context.Context) {
	if s.blobs == nil {
		return
	}

	referenced := make(map[string]bool)
	for _, source := range []func(context.Context) ([]string, error){
		s.packets.ReferencedBlobURLs,
		s.records.ReferencedBlobURLs,
	} {
		urls, err := source(ctx)
		if err != nil {
			// Without the full reference set any deletion would be unsafe.
			s.logger.Error(ctx, "blob reference query failed, skipping orphan sweep", "error", err)
			return
		}
		for _, u := range urls {
			referenced[u] = true
		}
	}

	objs, err := s.blobs.List(ctx)
	if err != nil {
		s.logger.Error(ctx, "blob listing failed, skipping orphan sweep", "error", err)
		return
	}

	minAge := s.now().Add(-s.orphanGrace)
	var deleted int
	for _, obj := range objs {
		if referenced[obj.URL] || obj.LastModified.After(minAge) {
			continue
		}
		if err := s.blobs.Delete(ctx, obj.URL); err != nil {
			s.logger.Warn(ctx, "orphan blob delete failed", "blob_url", obj.URL, "error", err)
			continue
		}
		metrics.BlobsDeleted.Inc()
		deleted++
	}
	if deleted > 0 {
		s.logger.Info(ctx, "orphan blobs collected", "count", deleted)
	}
}
