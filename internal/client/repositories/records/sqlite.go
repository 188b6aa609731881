package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/beeroutine/haircareplus-sync/internal/client/models"
	"github.com/beeroutine/haircareplus-sync/internal/common"
	"github.com/beeroutine/haircareplus-sync/internal/dbx"
)

// SQLiteRepository implements Repository over a dbx.DBTX.
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a repository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const recordColumns = `id, kind, subject_id, payload, blob_url, created_at_ms, modified_at_ms`

func (r *SQLiteRepository) Upsert(ctx context.Context, rec *models.LocalRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO records (id, kind, subject_id, payload, blob_url, created_at_ms, modified_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload,
			blob_url = excluded.blob_url,
			modified_at_ms = excluded.modified_at_ms
	`, rec.ID, string(rec.Kind), rec.SubjectID, []byte(rec.Payload), rec.BlobURL, rec.CreatedAtMs, rec.ModifiedAtMs)
	if err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) FindByID(ctx context.Context, id string) (*models.LocalRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	return scanRecord(row)
}

func (r *SQLiteRepository) FindByNaturalKey(ctx context.Context, subjectID string, kind common.EntityKind, fromMs, toMs int64) (*models.LocalRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM records
		WHERE subject_id = ? AND kind = ? AND created_at_ms BETWEEN ? AND ?
		ORDER BY created_at_ms LIMIT 1
	`, subjectID, string(kind), fromMs, toMs)
	return scanRecord(row)
}

func (r *SQLiteRepository) Headers(ctx context.Context) ([]models.Header, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, kind, modified_at_ms FROM records`)
	if err != nil {
		return nil, fmt.Errorf("failed to select record headers: %w", err)
	}
	defer rows.Close()

	var result []models.Header
	for rows.Next() {
		var (
			h    models.Header
			kind string
		)
		if err := rows.Scan(&h.ID, &kind, &h.ModifiedAtMs); err != nil {
			return nil, fmt.Errorf("failed to scan record header: %w", err)
		}
		h.Kind = common.EntityKind(kind)
		result = append(result, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate record headers: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

func scanRecord(row *sql.Row) (*models.LocalRecord, error) {
	var (
		rec     models.LocalRecord
		kind    string
		payload []byte
	)
	err := row.Scan(&rec.ID, &kind, &rec.SubjectID, &payload, &rec.BlobURL, &rec.CreatedAtMs, &rec.ModifiedAtMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan record: %w", err)
	}
	rec.Kind = common.EntityKind(kind)
	rec.Payload = payload
	return &rec, nil
}
