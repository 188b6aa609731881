package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/beeroutine/haircareplus-sync/internal/client/models"
	"github.com/beeroutine/haircareplus-sync/internal/common"
	"github.com/beeroutine/haircareplus-sync/internal/syncmsg"
)

// Submit records a local mutation: it stores the record locally and enqueues
// its wire form in the outbox, then nudges the background loop. It returns
// the client-generated entity id. Submit never touches the network; a storage
// error propagates so the caller can surface or retry it.
func (s *Syncer) Submit(ctx context.Context, kind common.EntityKind, subjectID string, payload json.RawMessage, blobURL string) (string, error) {
	if !kind.Valid() {
		return "", common.ErrUnknownEntityKind
	}

	now := time.Now().UnixMilli()
	change := syncmsg.ChangeRecord{
		ID:         uuid.NewString(),
		SubjectID:  subjectID,
		Payload:    payload,
		BlobURL:    blobURL,
		CreatedAt:  now,
		ModifiedAt: now,
	}

	wire, err := json.Marshal(change)
	if err != nil {
		return "", fmt.Errorf("failed to encode change: %w", err)
	}

	if err := s.records.Upsert(ctx, &models.LocalRecord{
		ID:           change.ID,
		Kind:         kind,
		SubjectID:    subjectID,
		Payload:      payload,
		BlobURL:      blobURL,
		CreatedAtMs:  now,
		ModifiedAtMs: now,
	}); err != nil {
		return "", err
	}

	if _, err := s.outbox.Enqueue(ctx, kind, wire, change.ID); err != nil {
		return "", err
	}

	s.Wake()
	return change.ID, nil
}
