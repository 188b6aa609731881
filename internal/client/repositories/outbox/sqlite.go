package outbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/beeroutine/haircareplus-sync/internal/client/models"
	"github.com/beeroutine/haircareplus-sync/internal/common"
	"github.com/beeroutine/haircareplus-sync/internal/dbx"
)

// SQLiteRepository implements Repository over a dbx.DBTX (either *sql.DB or
// *sql.Tx).
type SQLiteRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

// NewSQLiteRepository returns a repository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

func (r *SQLiteRepository) Enqueue(ctx context.Context, kind common.EntityKind, payload []byte, localEntityID string) (int64, error) {
	now := r.now().UnixMilli()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO outbox (kind, payload, local_entity_id, status, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(kind), payload, localEntityID, string(models.OutboxStatusPending), now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue outbox entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read outbox entry id: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) ListPending(ctx context.Context) ([]models.OutboxEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, payload, local_entity_id, status, retry_count, created_at, modified_at
		FROM outbox
		WHERE status = ?
		ORDER BY created_at, id
	`, string(models.OutboxStatusPending))
	if err != nil {
		return nil, fmt.Errorf("failed to select pending outbox entries: %w", err)
	}
	defer rows.Close()

	var result []models.OutboxEntry
	for rows.Next() {
		var (
			item               models.OutboxEntry
			kind, status       string
			createdMs, modifMs int64
		)
		if err := rows.Scan(&item.ID, &kind, &item.Payload, &item.LocalEntityID,
			&status, &item.RetryCount, &createdMs, &modifMs); err != nil {
			return nil, fmt.Errorf("failed to scan outbox row: %w", err)
		}
		item.Kind = common.EntityKind(kind)
		item.Status = models.OutboxStatus(status)
		item.CreatedAt = time.UnixMilli(createdMs)
		item.ModifiedAt = time.UnixMilli(modifMs)
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) MarkStatus(ctx context.Context, ids []int64, status models.OutboxStatus) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf(`UPDATE outbox SET status = ?, modified_at = ? WHERE id IN (%s)`, placeholders(len(ids)))
	args := append([]any{string(status), r.now().UnixMilli()}, int64sToAny(ids)...)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark outbox status %s: %w", status, err)
	}
	return nil
}

func (r *SQLiteRepository) IncrementRetry(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf(`
		UPDATE outbox SET status = ?, retry_count = retry_count + 1, modified_at = ?
		WHERE id IN (%s)`, placeholders(len(ids)))
	args := append([]any{string(models.OutboxStatusPending), r.now().UnixMilli()}, int64sToAny(ids)...)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to increment outbox retries: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf(`DELETE FROM outbox WHERE id IN (%s)`, placeholders(len(ids)))
	if _, err := r.db.ExecContext(ctx, query, int64sToAny(ids)...); err != nil {
		return fmt.Errorf("failed to delete outbox entries: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox WHERE status = ?`,
		string(models.OutboxStatusPending)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending outbox entries: %w", err)
	}
	return n, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64sToAny(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
