package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beeroutine/haircareplus-sync/internal/client/models"
	"github.com/beeroutine/haircareplus-sync/internal/common"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
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
	return db
}

func sample(id string) *models.LocalRecord {
	return &models.LocalRecord{
		ID:           id,
		Kind:         common.KindProgressEntry,
		SubjectID:    "subj1",
		Payload:      json.RawMessage(`{"date":"2026-08-30","notes":"ok"}`),
		CreatedAtMs:  1000,
		ModifiedAtMs: 1000,
	}
}

func TestUpsertAndFindByID(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, sample("r1")))

	got, err := r.FindByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, common.KindProgressEntry, got.Kind)
	assert.Equal(t, "subj1", got.SubjectID)
	assert.JSONEq(t, `{"date":"2026-08-30","notes":"ok"}`, string(got.Payload))

	updated := sample("r1")
	updated.Payload = json.RawMessage(`{"date":"2026-08-30","notes":"better"}`)
	updated.ModifiedAtMs = 2000
	require.NoError(t, r.Upsert(ctx, updated))

	got, err = r.FindByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), got.ModifiedAtMs)
	assert.JSONEq(t, `{"date":"2026-08-30","notes":"better"}`, string(got.Payload))

	_, err = r.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestFindByNaturalKey(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, sample("r1")))

	got, err := r.FindByNaturalKey(ctx, "subj1", common.KindProgressEntry, 0, 5000)
	require.NoError(t, err)
	assert.Equal(t, "r1", got.ID)

	// Outside the window.
	_, err = r.FindByNaturalKey(ctx, "subj1", common.KindProgressEntry, 2000, 5000)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	// Different subject or kind.
	_, err = r.FindByNaturalKey(ctx, "subj2", common.KindProgressEntry, 0, 5000)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = r.FindByNaturalKey(ctx, "subj1", common.KindChatMessage, 0, 5000)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestHeadersAndDelete(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, sample("r1")))
	rec2 := sample("r2")
	rec2.Kind = common.KindChatMessage
	rec2.ModifiedAtMs = 3000
	require.NoError(t, r.Upsert(ctx, rec2))

	headers, err := r.Headers(ctx)
	require.NoError(t, err)
	require.Len(t, headers, 2)

	byID := map[string]models.Header{}
	for _, h := range headers {
		byID[h.ID] = h
	}
	assert.Equal(t, common.KindChatMessage, byID["r2"].Kind)
	assert.Equal(t, int64(3000), byID["r2"].ModifiedAtMs)

	require.NoError(t, r.DeleteByID(ctx, "r1"))
	headers, err = r.Headers(ctx)
	require.NoError(t, err)
	assert.Len(t, headers, 1)
}
