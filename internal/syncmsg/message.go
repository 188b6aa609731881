// Package syncmsg defines the wire protocol for one synchronization round:
// a single batch request/response exchanged over POST /v1/sync.
package syncmsg

import (
	"encoding/json"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/beeroutine/haircareplus-sync/internal/common"
)

// ChangeRecord is one replicated entity change. Payload stays opaque to the
// engine; only id, subject and timestamps are interpreted.
type ChangeRecord struct {
	ID         string          `json:"id"`
	SubjectID  string          `json:"subjectId"`
	Payload    json.RawMessage `json:"payload"`
	BlobURL    string          `json:"blobUrl,omitempty"`
	CreatedAt  int64           `json:"createdAt"`  // epoch ms
	ModifiedAt int64           `json:"modifiedAt"` // epoch ms, always updated on change
}

// Validate checks the fields the server interprets. The payload itself is
// deliberately not inspected.
func (r ChangeRecord) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.Required, validation.Length(1, 128)),
		validation.Field(&r.SubjectID, validation.Required, validation.Length(1, 128)),
		validation.Field(&r.Payload, validation.Required),
		validation.Field(&r.CreatedAt, validation.Required, validation.Min(1)),
		validation.Field(&r.ModifiedAt, validation.Required, validation.Min(r.CreatedAt)),
	)
}

// Header is a lightweight {id, modifiedAt} pair for entities the client
// already holds, letting the server reconcile deltas cheaply.
type Header struct {
	ID         string            `json:"id"`
	Kind       common.EntityKind `json:"kind"`
	ModifiedAt int64             `json:"modifiedAt"`
}

// Packet is a store-and-forward envelope delivered to the caller. The client
// applies it generically by kind and acknowledges its id on the next round.
type Packet struct {
	ID        string            `json:"id"`
	Kind      common.EntityKind `json:"kind"`
	SubjectID string            `json:"subjectId"`
	Payload   json.RawMessage   `json:"payload"`
	BlobURL   string            `json:"blobUrl,omitempty"`
}

// RejectedItem reports a single submitted change that failed validation.
// The rest of the batch is unaffected.
type RejectedItem struct {
	ID     string            `json:"id"`
	Kind   common.EntityKind `json:"kind"`
	Reason string            `json:"reason"`
}

// Request is the client half of a synchronization round.
type Request struct {
	ClientID string                                 `json:"clientId"`
	Cursor   int64                                  `json:"cursor"`
	Changes  map[common.EntityKind][]ChangeRecord   `json:"changes,omitempty"`
	Headers  []Header                               `json:"headers,omitempty"`
	AckIDs   []string                               `json:"ackIds,omitempty"`
}

// Validate checks the request envelope. Individual change records are
// validated per item by the handler so one bad record cannot sink the batch.
func (r Request) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ClientID, validation.Required),
		validation.Field(&r.Cursor, validation.Min(0)),
	)
}

// Response is the server half of a synchronization round. Changes only ever
// contains durable kinds; ephemeral kinds arrive exclusively as Packets.
type Response struct {
	NewCursor int64                                `json:"newCursor"`
	Changes   map[common.EntityKind][]ChangeRecord `json:"changes,omitempty"`
	Packets   []Packet                             `json:"packets,omitempty"`
	Rejected  []RejectedItem                       `json:"rejected,omitempty"`
}
