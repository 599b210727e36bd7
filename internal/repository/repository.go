package repository

import (
	"context"
	"time"

	"github.com/splax/izzocam/internal/domain"
)

// SnapshotRepository reads burst metadata written by the ingestion webhook.
// Results are ordered by capture time, oldest first.
type SnapshotRepository interface {
	ListBurstsBetween(ctx context.Context, start, end time.Time, limit int) ([]domain.Burst, error)
	ListBurstsSince(ctx context.Context, start time.Time, limit int) ([]domain.Burst, error)
	CountBurstsSince(ctx context.Context, since time.Time) (int, error)
}

// CommentaryRepository is the append-only commentary log store.
type CommentaryRepository interface {
	InsertCommentary(ctx context.Context, entry *domain.CommentaryEntry) error
	ListRecentCommentary(ctx context.Context, limit int) ([]domain.CommentaryEntry, error)
	GetLatestCommentaryByMode(ctx context.Context, mode domain.CommentaryMode) (*domain.CommentaryEntry, error)
}

// MonitoringRepository stores usage and error records.
type MonitoringRepository interface {
	InsertUsage(ctx context.Context, record *domain.UsageRecord) error
	InsertError(ctx context.Context, record *domain.ErrorRecord) error
	ListUsageSince(ctx context.Context, since time.Time) ([]domain.UsageRecord, error)
	ListErrorsSince(ctx context.Context, since time.Time) ([]domain.ErrorRecord, error)
}

// SettingsRepository persists the commentary persona configuration.
type SettingsRepository interface {
	GetCommentaryConfig(ctx context.Context) (*domain.CommentaryConfig, error)
	UpsertCommentaryConfig(ctx context.Context, cfg domain.CommentaryConfig) error
}
