// Package records is the client's local store of replicated entities. It is
// an opaque CRUD layer: the applier merges server-delivered changes here and
// the UI reads from it through its own bindings.
package records

import (
	"context"

	"github.com/beeroutine/haircareplus-sync/internal/client/models"
	"github.com/beeroutine/haircareplus-sync/internal/common"
)

// Repository describes local record storage.
type Repository interface {
	// Upsert inserts or replaces a record by id.
	Upsert(ctx context.Context, rec *models.LocalRecord) error

	// FindByID returns a record or common.ErrorNotFound.
	FindByID(ctx context.Context, id string) (*models.LocalRecord, error)

	// FindByNaturalKey looks a record up by subject + kind with createdAt
	// inside [fromMs, toMs]. This catches duplicate rows that arise when two
	// devices independently generate ids for what is logically the same
	// record. Returns common.ErrorNotFound when nothing matches.
	FindByNaturalKey(ctx context.Context, subjectID string, kind common.EntityKind, fromMs, toMs int64) (*models.LocalRecord, error)

	// Headers returns {id, kind, modifiedAt} for every stored record, for
	// the reconciliation array of a sync request.
	Headers(ctx context.Context) ([]models.Header, error)

	// DeleteByID removes a record.
	DeleteByID(ctx context.Context, id string) error
}
