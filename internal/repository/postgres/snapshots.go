package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/splax/izzocam/internal/domain"
)

const burstColumns = `id, room_name, egress_id, captured_at, received_at, frames`

// ListBurstsBetween returns bursts captured within [start, end], oldest first.
func (r *Repository) ListBurstsBetween(ctx context.Context, start, end time.Time, limit int) ([]domain.Burst, error) {
	if limit <= 0 {
		limit = 200
	}
	const query = `SELECT ` + burstColumns + `
		FROM bursts
		WHERE captured_at >= $1 AND captured_at <= $2
		ORDER BY captured_at ASC, id ASC
		LIMIT $3`
	rows, err := r.pool.Query(ctx, query, start.UTC(), end.UTC(), limit)
	if err != nil {
		return nil, err
	}
	return scanBursts(rows)
}

// ListBurstsSince returns bursts captured at or after start, oldest first.
func (r *Repository) ListBurstsSince(ctx context.Context, start time.Time, limit int) ([]domain.Burst, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `SELECT ` + burstColumns + `
		FROM bursts
		WHERE captured_at >= $1
		ORDER BY captured_at ASC, id ASC
		LIMIT $2`
	rows, err := r.pool.Query(ctx, query, start.UTC(), limit)
	if err != nil {
		return nil, err
	}
	return scanBursts(rows)
}

// CountBurstsSince counts bursts captured at or after since.
func (r *Repository) CountBurstsSince(ctx context.Context, since time.Time) (int, error) {
	const query = `SELECT COUNT(1) FROM bursts WHERE captured_at >= $1`
	var count int
	if err := r.pool.QueryRow(ctx, query, since.UTC()).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanBursts(rows pgx.Rows) ([]domain.Burst, error) {
	defer rows.Close()
	bursts := make([]domain.Burst, 0)
	for rows.Next() {
		var (
			b        domain.Burst
			egressID sql.NullString
			received sql.NullTime
			frames   []byte
		)
		if err := rows.Scan(&b.ID, &b.RoomName, &egressID, &b.CapturedAt, &received, &frames); err != nil {
			return nil, err
		}
		if egressID.Valid {
			b.EgressID = egressID.String
		}
		if received.Valid {
			b.ReceivedAt = received.Time
		}
		if len(frames) > 0 {
			if err := json.Unmarshal(frames, &b.Frames); err != nil {
				return nil, fmt.Errorf("decode frames for burst %s: %w", b.ID, err)
			}
		}
		for i := range b.Frames {
			if b.Frames[i].MimeType == "" {
				b.Frames[i].MimeType = "image/jpeg"
			}
		}
		bursts = append(bursts, b)
	}
	return bursts, rows.Err()
}
