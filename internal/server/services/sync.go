// Package services implements the relay's core behavior: the batch sync
// exchange and the retention sweeper.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/beeroutine/haircareplus-sync/internal/cache"
	"github.com/beeroutine/haircareplus-sync/internal/common"
	"github.com/beeroutine/haircareplus-sync/internal/dbx"
	"github.com/beeroutine/haircareplus-sync/internal/logging"
	"github.com/beeroutine/haircareplus-sync/internal/metrics"
	"github.com/beeroutine/haircareplus-sync/internal/server/models"
	"github.com/beeroutine/haircareplus-sync/internal/server/repositories/records"
	"github.com/beeroutine/haircareplus-sync/internal/server/repositories/repomanager"
	"github.com/beeroutine/haircareplus-sync/internal/syncmsg"
)

const (
	// DefaultPacketTTL bounds how long an unclaimed packet stays queued.
	DefaultPacketTTL = 30 * 24 * time.Hour
	// DefaultPullLimit caps durable deltas and packets per response.
	DefaultPullLimit = 500

	hwmCacheKey = "sync:hwm"
	hwmCacheTTL = time.Minute
)

// Hinter is the best-effort wake channel port. Publish never returns an
// error; a lost hint only delays the next periodic round.
type Hinter interface {
	Publish(ctx context.Context, role common.Role)
}

// NopHinter is used when no redis is configured.
type NopHinter struct{}

func (NopHinter) Publish(context.Context, common.Role) {}

// SyncService handles one batch sync exchange per request.
type SyncService struct {
	db        *sql.DB
	manager   repomanager.RepositoryManager
	cache     cache.Cache
	hinter    Hinter
	logger    logging.Logger
	now       func() time.Time
	packetTTL time.Duration
	pullLimit int
}

// SyncOption customizes a SyncService.
type SyncOption func(*SyncService)

// WithPacketTTL overrides the delivery packet time-to-live.
func WithPacketTTL(d time.Duration) SyncOption {
	return func(s *SyncService) { s.packetTTL = d }
}

// WithPullLimit overrides the per-response result cap.
func WithPullLimit(n int) SyncOption {
	return func(s *SyncService) { s.pullLimit = n }
}

// NewSyncService wires the handler service.
func NewSyncService(db *sql.DB, manager repomanager.RepositoryManager, c cache.Cache,
	hinter Hinter, logger logging.Logger, opts ...SyncOption) *SyncService {
	s := &SyncService{
		db:        db,
		manager:   manager,
		cache:     c,
		hinter:    hinter,
		logger:    logger,
		now:       time.Now,
		packetTTL: DefaultPacketTTL,
		pullLimit: DefaultPullLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleSync runs one round for the calling device: ingest the pushed batch,
// acknowledge delivered packets, then assemble the pull side. Individual
// invalid items are rejected and reported; only storage failures fail the
// request. The ingest runs in one transaction, so a half-applied batch can
// never be observed.
func (s *SyncService) HandleSync(ctx context.Context, req *syncmsg.Request) (*syncmsg.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	role, err := common.RoleFromClientID(req.ClientID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	resp := &syncmsg.Response{}

	var durableWritten, packetsEnqueued int
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		recRepo := s.manager.Records(tx)
		pktRepo := s.manager.Packets(tx)

		var newPackets []*models.DeliveryPacket
		for kind, changes := range req.Changes {
			for _, change := range changes {
				if reason := rejectReason(kind, change); reason != "" {
					resp.Rejected = append(resp.Rejected,
						syncmsg.RejectedItem{ID: change.ID, Kind: kind, Reason: reason})
					metrics.ItemsRejected.WithLabelValues(string(kind)).Inc()
					continue
				}

				if kind.Durable() {
					written, err := recRepo.UpsertNewer(ctx, &models.DurableRecord{
						ID:           change.ID,
						Kind:         string(kind),
						SubjectID:    change.SubjectID,
						Payload:      change.Payload,
						BlobURL:      change.BlobURL,
						CreatedAtMs:  change.CreatedAt,
						ModifiedAtMs: change.ModifiedAt,
					})
					if err != nil {
						return err
					}
					if written {
						durableWritten++
						metrics.DurableUpserts.WithLabelValues(string(kind)).Inc()
					}
					continue
				}

				// Ephemeral kinds are relay-only: the full wire envelope is
				// queued for the other side and never stored durably.
				envelope, err := json.Marshal(change)
				if err != nil {
					return err
				}
				newPackets = append(newPackets, &models.DeliveryPacket{
					ID:            uuid.NewString(),
					Kind:          string(kind),
					SubjectID:     change.SubjectID,
					Payload:       envelope,
					BlobURL:       change.BlobURL,
					ReceiversMask: role.Complement().Mask(),
					CreatedAt:     now,
					ExpiresAt:     now.Add(s.packetTTL),
				})
			}
		}

		if err := pktRepo.Enqueue(ctx, newPackets); err != nil {
			return err
		}
		packetsEnqueued = len(newPackets)
		for _, p := range newPackets {
			metrics.PacketsEnqueued.WithLabelValues(p.Kind).Inc()
		}

		if err := pktRepo.Acknowledge(ctx, req.AckIDs, role.Mask()); err != nil {
			return err
		}
		metrics.PacketsAcked.Add(float64(len(req.AckIDs)))
		return nil
	})
	if err != nil {
		return nil, err
	}

	if durableWritten > 0 {
		if err := s.cache.Delete(ctx, hwmCacheKey); err != nil {
			s.logger.Warn(ctx, "high watermark invalidation failed", "error", err)
		}
	}
	if packetsEnqueued > 0 {
		s.hinter.Publish(ctx, role.Complement())
	}

	newCursor, err := s.pullDurable(ctx, req.Cursor, req.Headers, now, resp)
	if err != nil {
		return nil, err
	}
	if err := s.pullPackets(ctx, role, resp); err != nil {
		return nil, err
	}
	resp.NewCursor = newCursor

	s.logger.Info(ctx, "sync exchange complete",
		"client_id", req.ClientID, "role", role.String(),
		"durable_written", durableWritten, "packets_enqueued", packetsEnqueued,
		"acked", len(req.AckIDs), "rejected", len(resp.Rejected),
		"packets_out", len(resp.Packets), "cursor", newCursor)
	return resp, nil
}

// pullDurable fills resp.Changes with durable records modified after the
// cursor and returns the cursor the client should keep. When the result hits
// the limit the cursor stops at the last delivered change so the remainder
// arrives next round; otherwise it jumps to now. Records the client reported
// in its headers at the same or newer modification time are not echoed back,
// which in particular covers the client's own pushes from this round.
func (s *SyncService) pullDurable(ctx context.Context, cursor int64, headers []syncmsg.Header, now time.Time, resp *syncmsg.Response) (int64, error) {
	recRepo := s.manager.Records(s.db)

	newCursor := now.UnixMilli()
	if cursor > newCursor {
		newCursor = cursor
	}

	hwm, ok := s.highWatermark(ctx, recRepo)
	if ok && hwm <= cursor {
		return newCursor, nil
	}

	recs, err := recRepo.SelectUpdated(ctx, cursor, s.pullLimit)
	if err != nil {
		return 0, err
	}
	if len(recs) == 0 {
		return newCursor, nil
	}

	if len(recs) == s.pullLimit {
		// The page ends at a millisecond that may hold further records with
		// greater ids. Deliver the whole millisecond group now: the cursor is
		// held at the boundary, so anything left there would be stepped over
		// on the next round.
		last := recs[len(recs)-1]
		ties, err := recRepo.SelectTiedAfter(ctx, last.ModifiedAtMs, last.ID)
		if err != nil {
			return 0, err
		}
		recs = append(recs, ties...)
		newCursor = last.ModifiedAtMs
	}

	held := make(map[string]int64, len(headers))
	for _, h := range headers {
		held[h.ID] = h.ModifiedAt
	}

	resp.Changes = make(map[common.EntityKind][]syncmsg.ChangeRecord)
	for _, rec := range recs {
		if m, ok := held[rec.ID]; ok && m >= rec.ModifiedAtMs {
			continue
		}
		kind := common.EntityKind(rec.Kind)
		resp.Changes[kind] = append(resp.Changes[kind], syncmsg.ChangeRecord{
			ID:         rec.ID,
			SubjectID:  rec.SubjectID,
			Payload:    rec.Payload,
			BlobURL:    rec.BlobURL,
			CreatedAt:  rec.CreatedAtMs,
			ModifiedAt: rec.ModifiedAtMs,
		})
	}
	if len(resp.Changes) == 0 {
		resp.Changes = nil
	}
	return newCursor, nil
}

// highWatermark answers "is there anything newer than the cursor" without a
// table scan on the common idle round. Cache trouble just means the delta
// query runs; it never fails the request.
func (s *SyncService) highWatermark(ctx context.Context, repo records.Repository) (int64, bool) {
	var hwm int64
	found, err := s.cache.Get(ctx, hwmCacheKey, &hwm)
	if err != nil {
		s.logger.Warn(ctx, "high watermark cache read failed", "error", err)
		return 0, false
	}
	if found {
		return hwm, true
	}

	hwm, err = repo.MaxModified(ctx)
	if err != nil {
		s.logger.Warn(ctx, "high watermark query failed", "error", err)
		return 0, false
	}
	if err := s.cache.Set(ctx, hwmCacheKey, hwm, hwmCacheTTL); err != nil {
		s.logger.Warn(ctx, "high watermark cache write failed", "error", err)
	}
	return hwm, true
}

func (s *SyncService) pullPackets(ctx context.Context, role common.Role, resp *syncmsg.Response) error {
	pkts, err := s.manager.Packets(s.db).PendingFor(ctx, role.Mask(), s.pullLimit)
	if err != nil {
		return err
	}
	for _, p := range pkts {
		resp.Packets = append(resp.Packets, syncmsg.Packet{
			ID:        p.ID,
			Kind:      common.EntityKind(p.Kind),
			SubjectID: p.SubjectID,
			Payload:   p.Payload,
			BlobURL:   p.BlobURL,
		})
	}
	return nil
}

// rejectReason validates one submitted change, returning "" when it is fine.
func rejectReason(kind common.EntityKind, change syncmsg.ChangeRecord) string {
	if !kind.Valid() {
		return "unknown entity kind"
	}
	if err := change.Validate(); err != nil {
		return err.Error()
	}
	return ""
}
