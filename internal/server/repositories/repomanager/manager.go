// Package repomanager vends server repositories bound to a DBTX, so services
// can run several repository calls inside one transaction, and exposes the
// schema migration hook.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/beeroutine/haircareplus-sync/internal/dbx"
	"github.com/beeroutine/haircareplus-sync/internal/server/repositories/packets"
	"github.com/beeroutine/haircareplus-sync/internal/server/repositories/records"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Packets(db dbx.DBTX) packets.Repository
	Records(db dbx.DBTX) records.Repository
}
