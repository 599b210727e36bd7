package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/splax/izzocam/internal/domain"
	"github.com/splax/izzocam/internal/repository"
)

const commentarySettingsKey = "commentary"

// GetCommentaryConfig loads the stored persona configuration.
func (r *Repository) GetCommentaryConfig(ctx context.Context) (*domain.CommentaryConfig, error) {
	const query = `SELECT value FROM settings WHERE key = $1`
	var raw []byte
	if err := r.pool.QueryRow(ctx, query, commentarySettingsKey).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	var cfg domain.CommentaryConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode commentary settings: %w", err)
	}
	return &cfg, nil
}

// UpsertCommentaryConfig merges cfg into the stored configuration.
func (r *Repository) UpsertCommentaryConfig(ctx context.Context, cfg domain.CommentaryConfig) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode commentary settings: %w", err)
	}
	const query = `INSERT INTO settings (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = settings.value || EXCLUDED.value, updated_at = NOW()`
	if _, err := r.pool.Exec(ctx, query, commentarySettingsKey, payload); err != nil {
		return translateError(err)
	}
	return nil
}
