package syncer

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beeroutine/haircareplus-sync/internal/cache"
	"github.com/beeroutine/haircareplus-sync/internal/client/applier"
	"github.com/beeroutine/haircareplus-sync/internal/client/models"
	"github.com/beeroutine/haircareplus-sync/internal/client/repositories/cursor"
	"github.com/beeroutine/haircareplus-sync/internal/client/repositories/outbox"
	"github.com/beeroutine/haircareplus-sync/internal/client/repositories/records"
	"github.com/beeroutine/haircareplus-sync/internal/common"
	"github.com/beeroutine/haircareplus-sync/internal/logging"
	"github.com/beeroutine/haircareplus-sync/internal/syncmsg"

	_ "modernc.org/sqlite"
)

type fakeTransport struct {
	resp     *syncmsg.Response
	err      error
	requests []*syncmsg.Request
	onSync   func(req *syncmsg.Request)
}

func (f *fakeTransport) Sync(_ context.Context, req *syncmsg.Request) (*syncmsg.Response, error) {
	f.requests = append(f.requests, req)
	if f.onSync != nil {
		f.onSync(req)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeTransport) Close() error { return nil }

type harness struct {
	syncer    *Syncer
	transport *fakeTransport
	outbox    outbox.Repository
	cursor    cursor.Repository
	records   records.Repository
	db        *sql.DB
}

func setup(t *testing.T, tr *fakeTransport) *harness {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE outbox (
  id              INTEGER PRIMARY KEY AUTOINCREMENT,
  kind            TEXT NOT NULL,
  payload         BLOB NOT NULL,
  local_entity_id TEXT NOT NULL,
  status          TEXT NOT NULL DEFAULT 'pending',
  retry_count     INTEGER NOT NULL DEFAULT 0,
  created_at      INTEGER NOT NULL,
  modified_at     INTEGER NOT NULL
);
CREATE TABLE metadata (key TEXT PRIMARY KEY, value BLOB);
CREATE TABLE records (
  id             TEXT PRIMARY KEY,
  kind           TEXT NOT NULL,
  subject_id     TEXT NOT NULL,
  payload        BLOB NOT NULL,
  blob_url       TEXT NOT NULL DEFAULT '',
  created_at_ms  INTEGER NOT NULL,
  modified_at_ms INTEGER NOT NULL
);
`)
	require.NoError(t, err)

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ob := outbox.NewSQLiteRepository(db)
	cur := cursor.NewSQLiteRepository(db)
	rec := records.NewSQLiteRepository(db)
	ap := applier.New(rec, applier.NopNotifier{}, cache.NewMemory(), logger)

	return &harness{
		syncer:    New("patient-1", ob, cur, rec, tr, ap, logger, WithMaxRetries(2)),
		transport: tr,
		outbox:    ob,
		cursor:    cur,
		records:   rec,
		db:        db,
	}
}

func enqueueChange(t *testing.T, h *harness, kind common.EntityKind, entityID string) {
	t.Helper()
	wire, err := json.Marshal(syncmsg.ChangeRecord{
		ID: entityID, SubjectID: "subj1",
		Payload: json.RawMessage(`{"x":1}`), CreatedAt: 1000, ModifiedAt: 1000,
	})
	require.NoError(t, err)
	_, err = h.outbox.Enqueue(context.Background(), kind, wire, entityID)
	require.NoError(t, err)
}

func TestSynchronizeSuccessfulRound(t *testing.T) {
	packetPayload, _ := json.Marshal(syncmsg.ChangeRecord{
		ID: "remote-1", SubjectID: "subj1",
		Payload: json.RawMessage(`{"type":"no-sport"}`), CreatedAt: 500, ModifiedAt: 500,
	})
	tr := &fakeTransport{resp: &syncmsg.Response{
		NewCursor: 9000,
		Packets:   []syncmsg.Packet{{ID: "p1", Kind: common.KindRestriction, SubjectID: "subj1", Payload: packetPayload}},
	}}
	h := setup(t, tr)
	ctx := context.Background()

	enqueueChange(t, h, common.KindChatMessage, "e1")
	enqueueChange(t, h, common.KindRestriction, "e2")

	require.NoError(t, h.syncer.Synchronize(ctx))

	// Request carried both changes grouped by kind, cursor 0, no acks yet.
	require.Len(t, tr.requests, 1)
	req := tr.requests[0]
	assert.Equal(t, "patient-1", req.ClientID)
	assert.Equal(t, int64(0), req.Cursor)
	assert.Len(t, req.Changes[common.KindChatMessage], 1)
	assert.Len(t, req.Changes[common.KindRestriction], 1)
	assert.Empty(t, req.AckIDs)

	// Outbox drained, cursor advanced, packet queued for acknowledgement.
	pending, err := h.outbox.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	cur, err := h.cursor.Cursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(9000), cur)

	acks, err := h.cursor.PendingAcks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, acks)

	// The packet was applied locally under its entity id.
	got, err := h.records.FindByID(ctx, "remote-1")
	require.NoError(t, err)
	assert.Equal(t, common.KindRestriction, got.Kind)

	// Next round sends the pending ack and clears it on success.
	tr.resp = &syncmsg.Response{NewCursor: 9500}
	require.NoError(t, h.syncer.Synchronize(ctx))
	require.Len(t, tr.requests, 2)
	assert.Equal(t, []string{"p1"}, tr.requests[1].AckIDs)

	acks, err = h.cursor.PendingAcks(ctx)
	require.NoError(t, err)
	assert.Empty(t, acks)
}

func TestSynchronizeTransportFailureMutatesNothing(t *testing.T) {
	tr := &fakeTransport{err: common.ErrUnavailable}
	h := setup(t, tr)
	ctx := context.Background()

	require.NoError(t, h.cursor.AddPendingAcks(ctx, []string{"p-old"}))
	enqueueChange(t, h, common.KindChatMessage, "e1")

	err := h.syncer.Synchronize(ctx)
	assert.ErrorIs(t, err, common.ErrUnavailable)

	pending, err := h.outbox.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, models.OutboxStatusPending, pending[0].Status)

	cur, err := h.cursor.Cursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), cur)

	acks, err := h.cursor.PendingAcks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p-old"}, acks, "pending acks must survive a failed round")
}

func TestSynchronizeAcksOnlySentEntries(t *testing.T) {
	h := setup(t, nil)
	tr := &fakeTransport{resp: &syncmsg.Response{NewCursor: 100}}
	// Enqueue a new entry mid-flight, while the round is on the wire.
	tr.onSync = func(*syncmsg.Request) {
		enqueueChange(t, h, common.KindChatMessage, "mid-flight")
	}
	h.syncer.transport = tr
	h.transport = tr
	ctx := context.Background()

	enqueueChange(t, h, common.KindChatMessage, "e1")
	require.NoError(t, h.syncer.Synchronize(ctx))

	pending, err := h.outbox.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1, "mid-flight entry must not be acked")
	assert.Equal(t, "mid-flight", pending[0].LocalEntityID)
}

func TestSynchronizeRejectedItemRetriesThenParks(t *testing.T) {
	tr := &fakeTransport{resp: &syncmsg.Response{
		NewCursor: 100,
		Rejected:  []syncmsg.RejectedItem{{ID: "e1", Kind: common.KindChatMessage, Reason: "bad subject"}},
	}}
	h := setup(t, tr) // maxRetries = 2
	ctx := context.Background()

	enqueueChange(t, h, common.KindChatMessage, "e1")

	// First rejection: reverted to pending with one retry.
	require.NoError(t, h.syncer.Synchronize(ctx))
	pending, err := h.outbox.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].RetryCount)

	// Second rejection reaches the bound: parked as failed.
	tr.resp.NewCursor = 200
	require.NoError(t, h.syncer.Synchronize(ctx))
	pending, err = h.outbox.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	var status string
	require.NoError(t, h.db.QueryRow(`SELECT status FROM outbox WHERE local_entity_id = 'e1'`).Scan(&status))
	assert.Equal(t, "failed", status)
}

func TestSynchronizeSingleFlight(t *testing.T) {
	h := setup(t, nil)
	tr := &fakeTransport{resp: &syncmsg.Response{NewCursor: 100}}
	reentered := false
	tr.onSync = func(*syncmsg.Request) {
		// A concurrent trigger while a round is in flight must be a no-op.
		require.NoError(t, h.syncer.Synchronize(context.Background()))
		reentered = true
	}
	h.syncer.transport = tr
	h.transport = tr

	require.NoError(t, h.syncer.Synchronize(context.Background()))
	assert.True(t, reentered)
	assert.Len(t, tr.requests, 1)
}

func TestSynchronizeMalformedOutboxEntryParked(t *testing.T) {
	tr := &fakeTransport{resp: &syncmsg.Response{NewCursor: 100}}
	h := setup(t, tr)
	ctx := context.Background()

	_, err := h.outbox.Enqueue(ctx, common.KindChatMessage, []byte(`not-json`), "e-bad")
	require.NoError(t, err)
	enqueueChange(t, h, common.KindChatMessage, "e-good")

	require.NoError(t, h.syncer.Synchronize(ctx))

	require.Len(t, tr.requests, 1)
	assert.Len(t, tr.requests[0].Changes[common.KindChatMessage], 1)

	var status string
	require.NoError(t, h.db.QueryRow(`SELECT status FROM outbox WHERE local_entity_id = 'e-bad'`).Scan(&status))
	assert.Equal(t, "failed", status)
}

func TestSubmitStoresAndEnqueues(t *testing.T) {
	tr := &fakeTransport{resp: &syncmsg.Response{NewCursor: 100}}
	h := setup(t, tr)
	ctx := context.Background()

	id, err := h.syncer.Submit(ctx, common.KindProgressEntry, "subj1", json.RawMessage(`{"notes":"day 3"}`), "")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := h.records.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, common.KindProgressEntry, got.Kind)

	pending, err := h.outbox.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0].LocalEntityID)

	_, err = h.syncer.Submit(ctx, common.EntityKind("bogus"), "subj1", nil, "")
	assert.ErrorIs(t, err, common.ErrUnknownEntityKind)
}

func TestSynchronizeCancelledBeforeSendMutatesNothing(t *testing.T) {
	tr := &fakeTransport{err: errors.Join(common.ErrUnavailable, context.Canceled)}
	h := setup(t, tr)

	ctx, cancel := context.WithCancel(context.Background())
	enqueueChange(t, h, common.KindChatMessage, "e1")
	cancel()

	_ = h.syncer.Synchronize(ctx)

	pending, err := h.outbox.ListPending(context.Background())
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	cur, err := h.cursor.Cursor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), cur)
}
