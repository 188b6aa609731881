package packets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/beeroutine/haircareplus-sync/internal/dbx"
	"github.com/beeroutine/haircareplus-sync/internal/server/models"
)

const packetColumns = `id, kind, subject_id, payload, blob_url, receivers_mask, delivered_mask, created_at, expires_at`

// PostgresRepository implements the delivery queue over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Enqueue(ctx context.Context, pkts []*models.DeliveryPacket) error {
	for _, p := range pkts {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO delivery_packets (`+packetColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, p.ID, p.Kind, p.SubjectID, p.Payload, p.BlobURL,
			int16(p.ReceiversMask), int16(p.DeliveredMask), p.CreatedAt, p.ExpiresAt)
		if err != nil {
			return fmt.Errorf("failed to enqueue packet %s: %w", p.ID, err)
		}
	}
	return nil
}

func (r *PostgresRepository) PendingFor(ctx context.Context, roleMask uint8, limit int) ([]*models.DeliveryPacket, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+packetColumns+`
		FROM delivery_packets
		WHERE receivers_mask & $1 <> 0
		  AND delivered_mask & $1 = 0
		  AND expires_at > NOW()
		ORDER BY created_at, id
		LIMIT $2
	`, int16(roleMask), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending packets: %w", err)
	}
	defer rows.Close()
	return scanPackets(rows)
}

func (r *PostgresRepository) Acknowledge(ctx context.Context, ids []string, roleMask uint8) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf(`
		UPDATE delivery_packets SET delivered_mask = delivered_mask | $1
		WHERE id IN (%s)`, placeholders(2, len(ids)))
	args := append([]any{int16(roleMask)}, stringsToAny(ids)...)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to acknowledge packets: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Reclaimable(ctx context.Context, now time.Time) ([]*models.DeliveryPacket, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+packetColumns+`
		FROM delivery_packets
		WHERE receivers_mask & ~delivered_mask = 0 OR expires_at <= $1
	`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to select reclaimable packets: %w", err)
	}
	defer rows.Close()
	return scanPackets(rows)
}

func (r *PostgresRepository) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf(`DELETE FROM delivery_packets WHERE id IN (%s)`, placeholders(1, len(ids)))
	if _, err := r.db.ExecContext(ctx, query, stringsToAny(ids)...); err != nil {
		return fmt.Errorf("failed to delete packets: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ReferencedBlobURLs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT blob_url FROM delivery_packets WHERE blob_url <> ''
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

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanPackets(rows rowScanner) ([]*models.DeliveryPacket, error) {
	var result []*models.DeliveryPacket
	for rows.Next() {
		var (
			item       models.DeliveryPacket
			recv, delv int16
		)
		if err := rows.Scan(&item.ID, &item.Kind, &item.SubjectID, &item.Payload, &item.BlobURL,
			&recv, &delv, &item.CreatedAt, &item.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan packet row: %w", err)
		}
		item.ReceiversMask = uint8(recv)
		item.DeliveredMask = uint8(delv)
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate packet rows: %w", err)
	}
	return result, nil
}

// placeholders renders $start..$start+n-1 for IN lists.
func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}

func stringsToAny(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
