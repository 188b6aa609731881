package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/beeroutine/haircareplus-sync/internal/client/migrations"
	"github.com/beeroutine/haircareplus-sync/internal/client/repositories/cursor"
	"github.com/beeroutine/haircareplus-sync/internal/client/repositories/outbox"
	"github.com/beeroutine/haircareplus-sync/internal/client/repositories/records"

	_ "modernc.org/sqlite"
)

// Repositories bundles the client-side storage ports over one SQLite file.
type Repositories struct {
	Outbox  outbox.Repository
	Cursor  cursor.Repository
	Records records.Repository
	DB      *sql.DB
}

// RunMigrations applies the embedded schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens (creating if needed) the local database, migrates it and
// returns the repositories.
func InitDatabase(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repositories{
		Outbox:  outbox.NewSQLiteRepository(db),
		Cursor:  cursor.NewSQLiteRepository(db),
		Records: records.NewSQLiteRepository(db),
		DB:      db,
	}, nil
}
