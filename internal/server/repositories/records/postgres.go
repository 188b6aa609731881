package records

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/beeroutine/haircareplus-sync/internal/dbx"
	"github.com/beeroutine/haircareplus-sync/internal/server/models"
)

const recordColumns = `id, kind, subject_id, payload, blob_url, created_at_ms, modified_at_ms`

// PostgresRepository implements durable record storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) UpsertNewer(ctx context.Context, rec *models.DurableRecord) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO durable_records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id)
		DO UPDATE SET
			payload = EXCLUDED.payload,
			blob_url = EXCLUDED.blob_url,
			modified_at_ms = EXCLUDED.modified_at_ms
			WHERE durable_records.modified_at_ms < EXCLUDED.modified_at_ms
	`, rec.ID, rec.Kind, rec.SubjectID, rec.Payload, rec.BlobURL, rec.CreatedAtMs, rec.ModifiedAtMs)
	if err != nil {
		return false, fmt.Errorf("failed to upsert record %s: %w", rec.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) SelectUpdated(ctx context.Context, sinceMs int64, limit int) ([]*models.DurableRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM durable_records
		WHERE modified_at_ms > $1
		ORDER BY modified_at_ms, id
		LIMIT $2
	`, sinceMs, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select updated records: %w", err)
	}
	return scanRecords(rows)
}

func (r *PostgresRepository) SelectTiedAfter(ctx context.Context, modifiedAtMs int64, afterID string) ([]*models.DurableRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM durable_records
		WHERE modified_at_ms = $1 AND id > $2
		ORDER BY id
	`, modifiedAtMs, afterID)
	if err != nil {
		return nil, fmt.Errorf("failed to select tied records: %w", err)
	}
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]*models.DurableRecord, error) {
	defer rows.Close()

	var result []*models.DurableRecord
	for rows.Next() {
		var item models.DurableRecord
		if err := rows.Scan(&item.ID, &item.Kind, &item.SubjectID, &item.Payload,
			&item.BlobURL, &item.CreatedAtMs, &item.ModifiedAtMs); err != nil {
			return nil, fmt.Errorf("failed to scan record row: %w", err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate record rows: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) MaxModified(ctx context.Context) (int64, error) {
	var max int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(modified_at_ms), 0) FROM durable_records`).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to read high watermark: %w", err)
	}
	return max, nil
}

func (r *PostgresRepository) DeleteOlderThan(ctx context.Context, cutoffMs int64) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM durable_records WHERE modified_at_ms < $1`, cutoffMs)
	if err != nil {
		return 0, fmt.Errorf("failed to delete aged records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) ReferencedBlobURLs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT blob_url FROM durable_records WHERE blob_url <> ''
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to select referenced blob urls: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("failed to scan blob url: %w", err)
		}
		result = append(result, url)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate blob urls: %w", err)
	}
	return result, nil
}
