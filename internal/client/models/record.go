package models

import (
	"encoding/json"

	"github.com/beeroutine/haircareplus-sync/internal/common"
)

// LocalRecord is a replicated entity as stored locally. The payload is kept
// opaque; the engine interprets only identity, subject and timestamps.
type LocalRecord struct {
	ID           string
	Kind         common.EntityKind
	SubjectID    string
	Payload      json.RawMessage
	BlobURL      string
	CreatedAtMs  int64
	ModifiedAtMs int64
}

// Header reduces a record to the {id, modifiedAt} pair sent to the server
// for cheap delta reconciliation.
type Header struct {
	ID           string
	Kind         common.EntityKind
	ModifiedAtMs int64
}
