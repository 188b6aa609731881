// Package applier idempotently merges server-delivered changes into local
// storage. Applying the same response twice yields the same local state.
package applier

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/beeroutine/haircareplus-sync/internal/cache"
	"github.com/beeroutine/haircareplus-sync/internal/client/models"
	"github.com/beeroutine/haircareplus-sync/internal/client/repositories/records"
	"github.com/beeroutine/haircareplus-sync/internal/common"
	"github.com/beeroutine/haircareplus-sync/internal/logging"
	"github.com/beeroutine/haircareplus-sync/internal/metrics"
	"github.com/beeroutine/haircareplus-sync/internal/syncmsg"
)

// NaturalKeyWindow bounds the createdAt distance within which two records of
// the same subject and a day-grained kind are treated as the same logical
// record. Ids are client-generated, so duplicates are expected, not
// exceptional. Kinds that can repeat within a day never use this window.
const NaturalKeyWindow = 24 * time.Hour

// SubjectCachePrefix keys per-subject cached reads that must be invalidated
// whenever the applier writes a record for that subject.
const SubjectCachePrefix = "subject"

// Applier merges one sync response into the local record store.
type Applier struct {
	records  records.Repository
	notifier Notifier
	cache    cache.Cache
	logger   logging.Logger
}

// New wires the applier with its storage, notification port and cache.
func New(repo records.Repository, notifier Notifier, c cache.Cache, logger logging.Logger) *Applier {
	return &Applier{records: repo, notifier: notifier, cache: c, logger: logger}
}

// Apply merges every entity collection in the response into local storage and
// returns the ids of packets that were handled and can be acknowledged on the
// next round. A failure on one record is logged and skipped; the server keeps
// the packet until it is acknowledged, so the record is retried next cycle.
func (a *Applier) Apply(ctx context.Context, resp *syncmsg.Response) ([]string, error) {
	// In-batch dedup: the same logical record can appear twice in one
	// response, and must be applied once.
	seen := make(map[string]bool)

	for kind, changes := range resp.Changes {
		for _, change := range changes {
			if ok := a.applyOne(ctx, kind, change, seen); !ok {
				metrics.ApplyFailures.Inc()
			}
		}
	}

	var ackIDs []string
	for _, packet := range resp.Packets {
		var change syncmsg.ChangeRecord
		if err := json.Unmarshal(packet.Payload, &change); err != nil || change.ID == "" {
			// A packet whose envelope cannot be decoded will never become
			// applicable; acknowledge it so it does not loop forever.
			a.logger.Error(ctx, "dropping undecodable packet",
				"packet_id", packet.ID, "kind", string(packet.Kind), "error", err)
			ackIDs = append(ackIDs, packet.ID)
			continue
		}
		if change.SubjectID == "" {
			change.SubjectID = packet.SubjectID
		}
		if change.BlobURL == "" {
			change.BlobURL = packet.BlobURL
		}

		if ok := a.applyOne(ctx, packet.Kind, change, seen); ok {
			ackIDs = append(ackIDs, packet.ID)
		} else {
			metrics.ApplyFailures.Inc()
		}
	}

	return ackIDs, nil
}

// applyOne merges a single change. It reports true when the change is fully
// handled (written, already newer locally, or a duplicate within the batch).
func (a *Applier) applyOne(ctx context.Context, kind common.EntityKind, change syncmsg.ChangeRecord, seen map[string]bool) bool {
	if !kind.Valid() {
		a.logger.Warn(ctx, "skipping change of unknown kind", "kind", string(kind), "id", change.ID)
		return false
	}

	key := string(kind) + ":" + change.ID
	if seen[key] {
		return true
	}

	existing, err := a.lookup(ctx, kind, change)
	if err != nil {
		a.logger.Error(ctx, "record lookup failed, will retry next cycle",
			"kind", string(kind), "id", change.ID, "error", err)
		return false
	}

	rec := models.LocalRecord{
		ID:           change.ID,
		Kind:         kind,
		SubjectID:    change.SubjectID,
		Payload:      change.Payload,
		BlobURL:      change.BlobURL,
		CreatedAtMs:  change.CreatedAt,
		ModifiedAtMs: change.ModifiedAt,
	}

	if existing != nil {
		// Never regress a timestamp.
		if existing.ModifiedAtMs >= change.ModifiedAt {
			seen[key] = true
			return true
		}
		// A natural-key match keeps its local id and creation time.
		rec.ID = existing.ID
		rec.CreatedAtMs = existing.CreatedAtMs
	}

	if err := a.records.Upsert(ctx, &rec); err != nil {
		a.logger.Error(ctx, "record apply failed, will retry next cycle",
			"kind", string(kind), "id", change.ID, "error", err)
		return false
	}
	seen[key] = true
	metrics.RecordsApplied.WithLabelValues(string(kind)).Inc()

	a.notifier.Publish(Event{Kind: kind, Record: rec})

	if err := a.cache.Delete(ctx, cache.SubjectKey(SubjectCachePrefix, rec.SubjectID)); err != nil {
		a.logger.Warn(ctx, "subject cache invalidation failed", "subject", rec.SubjectID, "error", err)
	}

	return true
}

// lookup finds the local row a change should merge into: by primary id
// first, then for day-grained kinds by natural key (subject + kind +
// creation-time window). Fine-grained kinds match by id only; two chat
// messages in one conversation are distinct records however close they are.
func (a *Applier) lookup(ctx context.Context, kind common.EntityKind, change syncmsg.ChangeRecord) (*models.LocalRecord, error) {
	existing, err := a.records.FindByID(ctx, change.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}
	if !kind.ReconcilesByNaturalKey() {
		return nil, nil
	}

	window := NaturalKeyWindow.Milliseconds()
	existing, err = a.records.FindByNaturalKey(ctx, change.SubjectID, kind,
		change.CreatedAt-window, change.CreatedAt+window)
	if err == nil {
		return existing, nil
	}
	if errors.Is(err, common.ErrorNotFound) {
		return nil, nil
	}
	return nil, err
}
