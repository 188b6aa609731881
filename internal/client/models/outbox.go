// Package models defines the client-side persistence types: the outbox entry
// and the local replicated record.
package models

import (
	"time"

	"github.com/beeroutine/haircareplus-sync/internal/common"
)

// OutboxStatus is the lifecycle state of an outbox entry. Valid transitions
// are pending→sent→acked and pending/sent→failed; an entry is removed only
// after it has been acked.
type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "pending"
	OutboxStatusSent    OutboxStatus = "sent"
	OutboxStatusAcked   OutboxStatus = "acked"
	OutboxStatusFailed  OutboxStatus = "failed"
)

// OutboxEntry is one not-yet-confirmed local mutation. Payload is the wire
// form of the change (a serialized syncmsg.ChangeRecord); the engine never
// looks inside beyond deserializing it for the batch request.
type OutboxEntry struct {
	ID            int64
	Kind          common.EntityKind
	Payload       []byte
	LocalEntityID string // client-generated id of the entity the payload describes
	Status        OutboxStatus
	RetryCount    int
	CreatedAt     time.Time
	ModifiedAt    time.Time
}
