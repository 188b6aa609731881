package cursor

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/beeroutine/haircareplus-sync/internal/dbx"
)

const (
	keyCursor      = "sync_cursor"
	keyPendingAcks = "pending_acks"
)

// SQLiteRepository stores the cursor and pending-ack list in the metadata
// key/value table.
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a repository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	}
	return value, nil
}

func (r *SQLiteRepository) set(ctx context.Context, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) Cursor(ctx context.Context) (int64, error) {
	value, err := r.get(ctx, keyCursor)
	if err != nil {
		return 0, err
	}
	if value == nil {
		return 0, nil
	}
	cursor, err := strconv.ParseInt(string(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt sync cursor %q: %w", value, err)
	}
	return cursor, nil
}

func (r *SQLiteRepository) SetCursor(ctx context.Context, cursor int64) error {
	current, err := r.Cursor(ctx)
	if err != nil {
		return err
	}
	if cursor <= current {
		return nil
	}
	return r.set(ctx, keyCursor, []byte(strconv.FormatInt(cursor, 10)))
}

func (r *SQLiteRepository) PendingAcks(ctx context.Context) ([]string, error) {
	value, err := r.get(ctx, keyPendingAcks)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal(value, &ids); err != nil {
		return nil, fmt.Errorf("corrupt pending-ack list: %w", err)
	}
	return ids, nil
}

func (r *SQLiteRepository) AddPendingAcks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	current, err := r.PendingAcks(ctx)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(current))
	for _, id := range current {
		seen[id] = true
	}
	for _, id := range ids {
		if !seen[id] {
			current = append(current, id)
			seen[id] = true
		}
	}
	return r.savePendingAcks(ctx, current)
}

func (r *SQLiteRepository) RemovePendingAcks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	current, err := r.PendingAcks(ctx)
	if err != nil {
		return err
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	remaining := current[:0]
	for _, id := range current {
		if !drop[id] {
			remaining = append(remaining, id)
		}
	}
	return r.savePendingAcks(ctx, remaining)
}

func (r *SQLiteRepository) savePendingAcks(ctx context.Context, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	value, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode pending-ack list: %w", err)
	}
	return r.set(ctx, keyPendingAcks, value)
}
