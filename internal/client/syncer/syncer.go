// Package syncer orchestrates synchronization rounds: it drains the outbox,
// exchanges one batch with the relay, hands the response to the applier and
// advances the cursor. At most one round is in flight per process.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/beeroutine/haircareplus-sync/internal/client/applier"
	"github.com/beeroutine/haircareplus-sync/internal/client/models"
	"github.com/beeroutine/haircareplus-sync/internal/client/repositories/cursor"
	"github.com/beeroutine/haircareplus-sync/internal/client/repositories/outbox"
	"github.com/beeroutine/haircareplus-sync/internal/client/repositories/records"
	"github.com/beeroutine/haircareplus-sync/internal/client/transport"
	"github.com/beeroutine/haircareplus-sync/internal/common"
	"github.com/beeroutine/haircareplus-sync/internal/logging"
	"github.com/beeroutine/haircareplus-sync/internal/metrics"
	"github.com/beeroutine/haircareplus-sync/internal/syncmsg"
)

// DefaultInterval is the fixed cadence of the background loop.
const DefaultInterval = 60 * time.Second

// DefaultMaxRetries bounds how often a server-rejected entry is resent before
// it is parked as failed for manual resolution.
const DefaultMaxRetries = 10

// Syncer drives the synchronization rounds for one client.
type Syncer struct {
	clientID   string
	outbox     outbox.Repository
	cursor     cursor.Repository
	records    records.Repository
	transport  transport.Transport
	applier    *applier.Applier
	logger     logging.Logger
	interval   time.Duration
	maxRetries int

	// mu serializes rounds; a trigger while one is in flight is a no-op.
	mu   sync.Mutex
	wake chan struct{}
}

// Option customizes a Syncer.
type Option func(*Syncer)

// WithInterval overrides the background loop cadence.
func WithInterval(d time.Duration) Option {
	return func(s *Syncer) { s.interval = d }
}

// WithMaxRetries overrides the rejected-entry resend bound.
func WithMaxRetries(n int) Option {
	return func(s *Syncer) { s.maxRetries = n }
}

// New wires a Syncer.
func New(clientID string, ob outbox.Repository, cur cursor.Repository, rec records.Repository,
	tr transport.Transport, ap *applier.Applier, logger logging.Logger, opts ...Option) *Syncer {
	s := &Syncer{
		clientID:   clientID,
		outbox:     ob,
		cursor:     cur,
		records:    rec,
		transport:  tr,
		applier:    ap,
		logger:     logger.With("client_id", clientID),
		interval:   DefaultInterval,
		maxRetries: DefaultMaxRetries,
		wake:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Wake requests an out-of-cycle round. It never blocks and is safe to call
// from the real-time hint channel; correctness never depends on it.
func (s *Syncer) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run drives Synchronize on a fixed interval until the context is cancelled.
// After a transport failure the wait stretches exponentially and resets on
// the next successful round.
func (s *Syncer) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.interval
	bo.MaxInterval = 10 * s.interval
	bo.MaxElapsedTime = 0
	bo.Reset()

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		case <-s.wake:
		}

		wait := s.interval
		if err := s.Synchronize(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			if errors.Is(err, common.ErrUnavailable) {
				wait = bo.NextBackOff()
			}
			s.logger.Warn(ctx, "sync round failed, retrying later", "error", err, "wait", wait.String())
		} else {
			bo.Reset()
		}
		timer.Reset(wait)
	}
}

// Synchronize runs one full round. A second call while one is in flight
// returns immediately without doing anything. On transport failure no local
// state is mutated: the outbox stays pending, the cursor and the pending-ack
// list are unchanged, and the round is safe to retry.
func (s *Syncer) Synchronize(ctx context.Context) error {
	if !s.mu.TryLock() {
		metrics.SyncRounds.WithLabelValues("skipped").Inc()
		return nil
	}
	defer s.mu.Unlock()

	pending, err := s.outbox.ListPending(ctx)
	if err != nil {
		return err
	}

	req, sentIDs, byEntityID, err := s.buildRequest(ctx, pending)
	if err != nil {
		return err
	}

	resp, err := s.transport.Sync(ctx, req)
	if err != nil {
		metrics.SyncRounds.WithLabelValues("transport_error").Inc()
		return err
	}

	// The batch reached the server; the included entries move to sent before
	// local application begins.
	if err := s.outbox.MarkStatus(ctx, sentIDs, models.OutboxStatusSent); err != nil {
		return err
	}

	newAcks, err := s.applier.Apply(ctx, resp)
	if err != nil {
		metrics.SyncRounds.WithLabelValues("apply_error").Inc()
		return err
	}

	// The acks included in this request are confirmed server-side; acks for
	// packets received just now are accumulated for the next round.
	if err := s.cursor.RemovePendingAcks(ctx, req.AckIDs); err != nil {
		return err
	}
	if err := s.cursor.AddPendingAcks(ctx, newAcks); err != nil {
		return err
	}

	if err := s.settleOutbox(ctx, resp, pending, sentIDs, byEntityID); err != nil {
		return err
	}

	// The cursor advances only after apply and outbox bookkeeping succeeded.
	if err := s.cursor.SetCursor(ctx, resp.NewCursor); err != nil {
		return err
	}

	if backlog, err := s.outbox.CountPending(ctx); err == nil {
		metrics.OutboxBacklog.Set(float64(backlog))
	}
	metrics.SyncRounds.WithLabelValues("ok").Inc()

	s.logger.Info(ctx, "sync round complete",
		"sent", len(sentIDs), "packets", len(resp.Packets), "rejected", len(resp.Rejected),
		"cursor", resp.NewCursor)
	return nil
}

// buildRequest assembles the batch: pending changes grouped by kind, record
// headers and the pending-ack snapshot. Entries whose payload cannot be
// decoded are parked as failed so they cannot poison every future round.
func (s *Syncer) buildRequest(ctx context.Context, pending []models.OutboxEntry) (*syncmsg.Request, []int64, map[string][]int64, error) {
	changes := make(map[common.EntityKind][]syncmsg.ChangeRecord)
	sentIDs := make([]int64, 0, len(pending))
	byEntityID := make(map[string][]int64)
	var malformed []int64

	for _, entry := range pending {
		var change syncmsg.ChangeRecord
		if err := json.Unmarshal(entry.Payload, &change); err != nil {
			s.logger.Error(ctx, "outbox entry payload is undecodable, parking as failed",
				"outbox_id", entry.ID, "kind", string(entry.Kind), "error", err)
			malformed = append(malformed, entry.ID)
			continue
		}
		if change.ID == "" {
			change.ID = entry.LocalEntityID
		}
		changes[entry.Kind] = append(changes[entry.Kind], change)
		sentIDs = append(sentIDs, entry.ID)
		byEntityID[change.ID] = append(byEntityID[change.ID], entry.ID)
	}

	if err := s.outbox.MarkStatus(ctx, malformed, models.OutboxStatusFailed); err != nil {
		return nil, nil, nil, err
	}

	cur, err := s.cursor.Cursor(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	acks, err := s.cursor.PendingAcks(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	headers, err := s.records.Headers(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	req := &syncmsg.Request{
		ClientID: s.clientID,
		Cursor:   cur,
		Changes:  changes,
		AckIDs:   acks,
		Headers:  make([]syncmsg.Header, 0, len(headers)),
	}
	for _, h := range headers {
		req.Headers = append(req.Headers, syncmsg.Header{ID: h.ID, Kind: h.Kind, ModifiedAt: h.ModifiedAtMs})
	}
	return req, sentIDs, byEntityID, nil
}

// settleOutbox acknowledges exactly the entries that were sent in this round,
// reverting server-rejected ones to pending (or parking them as failed once
// the retry bound is reached).
func (s *Syncer) settleOutbox(ctx context.Context, resp *syncmsg.Response, pending []models.OutboxEntry, sentIDs []int64, byEntityID map[string][]int64) error {
	retryCounts := make(map[int64]int, len(pending))
	for _, entry := range pending {
		retryCounts[entry.ID] = entry.RetryCount
	}

	rejected := make(map[int64]bool)
	var retry, park []int64
	for _, item := range resp.Rejected {
		s.logger.Warn(ctx, "server rejected item", "id", item.ID, "kind", string(item.Kind), "reason", item.Reason)
		for _, outboxID := range byEntityID[item.ID] {
			rejected[outboxID] = true
			if retryCounts[outboxID]+1 >= s.maxRetries {
				park = append(park, outboxID)
			} else {
				retry = append(retry, outboxID)
			}
		}
	}

	acked := make([]int64, 0, len(sentIDs))
	for _, id := range sentIDs {
		if !rejected[id] {
			acked = append(acked, id)
		}
	}

	if err := s.outbox.IncrementRetry(ctx, retry); err != nil {
		return err
	}
	if err := s.outbox.MarkStatus(ctx, park, models.OutboxStatusFailed); err != nil {
		return err
	}
	if err := s.outbox.MarkStatus(ctx, acked, models.OutboxStatusAcked); err != nil {
		return err
	}
	// Acked entries have served their purpose; drop them.
	return s.outbox.Delete(ctx, acked)
}
