package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/splax/izzocam/internal/domain"
)

// InsertUsage appends a usage record.
func (r *Repository) InsertUsage(ctx context.Context, record *domain.UsageRecord) error {
	if record == nil {
		return fmt.Errorf("usage record required")
	}
	var metadata []byte
	if record.Metadata != nil {
		encoded, err := json.Marshal(record.Metadata)
		if err != nil {
			return fmt.Errorf("encode usage metadata: %w", err)
		}
		metadata = encoded
	}
	occurred := record.Timestamp
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	const query = `INSERT INTO monitoring_usage (
		occurred_at,
		service,
		operation,
		user_id,
		success,
		duration_ms,
		cost,
		metadata
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	RETURNING id`
	var id int64
	err := r.pool.QueryRow(ctx, query,
		occurred.UTC(),
		record.Service,
		record.Operation,
		nilIfEmpty(record.UserID),
		record.Success,
		int64PtrToNil(record.DurationMS),
		floatPtrToNil(record.Cost),
		bytesToNil(metadata),
	).Scan(&id)
	if err != nil {
		return translateError(err)
	}
	record.ID = id
	record.Timestamp = occurred
	return nil
}

// InsertError appends an error record.
func (r *Repository) InsertError(ctx context.Context, record *domain.ErrorRecord) error {
	if record == nil {
		return fmt.Errorf("error record required")
	}
	occurred := record.Timestamp
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	const query = `INSERT INTO monitoring_errors (
		occurred_at,
		service,
		operation,
		user_id,
		error,
		severity
	) VALUES ($1,$2,$3,$4,$5,$6)
	RETURNING id`
	var id int64
	err := r.pool.QueryRow(ctx, query,
		occurred.UTC(),
		record.Service,
		record.Operation,
		nilIfEmpty(record.UserID),
		record.Error,
		string(record.Severity),
	).Scan(&id)
	if err != nil {
		return translateError(err)
	}
	record.ID = id
	record.Timestamp = occurred
	return nil
}

// ListUsageSince returns usage records at or after since, oldest first.
func (r *Repository) ListUsageSince(ctx context.Context, since time.Time) ([]domain.UsageRecord, error) {
	const query = `SELECT id, occurred_at, service, operation, user_id, success, duration_ms, cost, metadata
		FROM monitoring_usage
		WHERE occurred_at >= $1
		ORDER BY occurred_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records := make([]domain.UsageRecord, 0)
	for rows.Next() {
		var (
			rec      domain.UsageRecord
			userID   sql.NullString
			duration sql.NullInt64
			cost     sql.NullFloat64
			metadata []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.Service, &rec.Operation, &userID, &rec.Success, &duration, &cost, &metadata); err != nil {
			return nil, err
		}
		if userID.Valid {
			rec.UserID = userID.String
		}
		if duration.Valid {
			v := duration.Int64
			rec.DurationMS = &v
		}
		if cost.Valid {
			v := cost.Float64
			rec.Cost = &v
		}
		if len(metadata) > 0 {
			var meta domain.UsageMetadata
			if err := json.Unmarshal(metadata, &meta); err != nil {
				return nil, fmt.Errorf("decode usage metadata %d: %w", rec.ID, err)
			}
			rec.Metadata = &meta
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListErrorsSince returns error records at or after since, oldest first.
func (r *Repository) ListErrorsSince(ctx context.Context, since time.Time) ([]domain.ErrorRecord, error) {
	const query = `SELECT id, occurred_at, service, operation, user_id, error, severity
		FROM monitoring_errors
		WHERE occurred_at >= $1
		ORDER BY occurred_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records := make([]domain.ErrorRecord, 0)
	for rows.Next() {
		var (
			rec      domain.ErrorRecord
			userID   sql.NullString
			severity string
		)
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.Service, &rec.Operation, &userID, &rec.Error, &severity); err != nil {
			return nil, err
		}
		if userID.Valid {
			rec.UserID = userID.String
		}
		rec.Severity = domain.Severity(severity)
		records = append(records, rec)
	}
	return records, rows.Err()
}
