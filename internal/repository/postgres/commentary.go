package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/splax/izzocam/internal/domain"
	"github.com/splax/izzocam/internal/repository"
)

const commentaryColumns = `id, mode, timeframe_start, timeframe_end,
	title, body, bullet_points, confidence, tags, bursts,
	provider_name, provider_model, provider_latency_ms, meta, created_at`

// InsertCommentary appends an entry. Entries are never updated.
func (r *Repository) InsertCommentary(ctx context.Context, entry *domain.CommentaryEntry) error {
	if entry == nil {
		return fmt.Errorf("commentary entry required")
	}
	bullets, err := json.Marshal(nonNilStrings(entry.Summary.BulletPoints))
	if err != nil {
		return fmt.Errorf("encode bullet points: %w", err)
	}
	tags, err := json.Marshal(nonNilStrings(entry.Summary.Tags))
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	bursts := entry.Bursts
	if bursts == nil {
		bursts = []domain.BurstRef{}
	}
	burstJSON, err := json.Marshal(bursts)
	if err != nil {
		return fmt.Errorf("encode burst refs: %w", err)
	}
	meta, err := json.Marshal(entry.Meta)
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}
	const query = `INSERT INTO commentary_entries (
		id,
		mode,
		timeframe_start,
		timeframe_end,
		title,
		body,
		bullet_points,
		confidence,
		tags,
		bursts,
		provider_name,
		provider_model,
		provider_latency_ms,
		meta,
		created_at
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
	)`
	_, err = r.pool.Exec(ctx, query,
		entry.ID,
		string(entry.Mode),
		entry.TimeframeStart.UTC(),
		entry.TimeframeEnd.UTC(),
		entry.Summary.Title,
		entry.Summary.Body,
		bullets,
		nilIfEmpty(string(entry.Summary.Confidence)),
		tags,
		burstJSON,
		entry.Provider.Name,
		entry.Provider.Model,
		int64PtrToNil(entry.Provider.LatencyMS),
		meta,
		entry.CreatedAt.UTC(),
	)
	if err != nil {
		return translateError(err)
	}
	return nil
}

// ListRecentCommentary returns the newest entries first.
func (r *Repository) ListRecentCommentary(ctx context.Context, limit int) ([]domain.CommentaryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT ` + commentaryColumns + `
		FROM commentary_entries
		ORDER BY created_at DESC, seq DESC
		LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]domain.CommentaryEntry, 0)
	for rows.Next() {
		entry, err := scanCommentary(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// GetLatestCommentaryByMode returns the newest entry of mode.
func (r *Repository) GetLatestCommentaryByMode(ctx context.Context, mode domain.CommentaryMode) (*domain.CommentaryEntry, error) {
	const query = `SELECT ` + commentaryColumns + `
		FROM commentary_entries
		WHERE mode = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT 1`
	entry, err := scanCommentary(r.pool.QueryRow(ctx, query, string(mode)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

func scanCommentary(row pgx.Row) (domain.CommentaryEntry, error) {
	var (
		e          domain.CommentaryEntry
		mode       string
		bullets    []byte
		confidence sql.NullString
		tags       []byte
		bursts     []byte
		latency    sql.NullInt64
		meta       []byte
	)
	if err := row.Scan(
		&e.ID,
		&mode,
		&e.TimeframeStart,
		&e.TimeframeEnd,
		&e.Summary.Title,
		&e.Summary.Body,
		&bullets,
		&confidence,
		&tags,
		&bursts,
		&e.Provider.Name,
		&e.Provider.Model,
		&latency,
		&meta,
		&e.CreatedAt,
	); err != nil {
		return domain.CommentaryEntry{}, err
	}
	e.Mode = domain.CommentaryMode(mode)
	if confidence.Valid {
		e.Summary.Confidence = domain.Confidence(confidence.String)
	}
	if latency.Valid {
		v := latency.Int64
		e.Provider.LatencyMS = &v
	}
	if err := unmarshalIfPresent(bullets, &e.Summary.BulletPoints); err != nil {
		return domain.CommentaryEntry{}, fmt.Errorf("decode bullet points: %w", err)
	}
	if err := unmarshalIfPresent(tags, &e.Summary.Tags); err != nil {
		return domain.CommentaryEntry{}, fmt.Errorf("decode tags: %w", err)
	}
	if err := unmarshalIfPresent(bursts, &e.Bursts); err != nil {
		return domain.CommentaryEntry{}, fmt.Errorf("decode burst refs: %w", err)
	}
	if err := unmarshalIfPresent(meta, &e.Meta); err != nil {
		return domain.CommentaryEntry{}, fmt.Errorf("decode meta: %w", err)
	}
	if e.Summary.BulletPoints == nil {
		e.Summary.BulletPoints = []string{}
	}
	if e.Bursts == nil {
		e.Bursts = []domain.BurstRef{}
	}
	return e, nil
}

func unmarshalIfPresent(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
