package commentary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/splax/izzocam/internal/domain"
	"github.com/splax/izzocam/internal/repository"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 100
)

// Publisher receives every entry once it has been persisted.
type Publisher interface {
	PublishCommentary(entry domain.CommentaryEntry)
}

// Log is the append-only commentary log.
type Log struct {
	repo      repository.CommentaryRepository
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time

	mu          sync.Mutex
	lastCreated time.Time
}

// NewLog wraps repo. publisher may be nil.
func NewLog(repo repository.CommentaryRepository, publisher Publisher, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{repo: repo, publisher: publisher, logger: logger.With("component", "commentary_log"), now: time.Now}
}

// Append assigns the entry's id and creation time and persists it. Creation
// times never go backwards within a process.
func (l *Log) Append(ctx context.Context, entry domain.CommentaryEntry) (domain.CommentaryEntry, error) {
	if _, ok := domain.ParseMode(string(entry.Mode)); !ok {
		return domain.CommentaryEntry{}, fmt.Errorf("%w: %q", ErrInvalidMode, entry.Mode)
	}
	if entry.TimeframeEnd.Before(entry.TimeframeStart) {
		return domain.CommentaryEntry{}, fmt.Errorf("%w: timeframe ends before it starts", repository.ErrInvalidArgument)
	}
	entry.ID = uuid.NewString()
	if entry.Bursts == nil {
		entry.Bursts = []domain.BurstRef{}
	}
	if entry.Summary.BulletPoints == nil {
		entry.Summary.BulletPoints = []string{}
	}

	l.mu.Lock()
	created := l.now().UTC()
	if created.Before(l.lastCreated) {
		created = l.lastCreated
	}
	entry.CreatedAt = created
	err := l.repo.InsertCommentary(ctx, &entry)
	if err == nil {
		l.lastCreated = created
	}
	l.mu.Unlock()
	if err != nil {
		return domain.CommentaryEntry{}, fmt.Errorf("insert commentary: %w", err)
	}

	l.logger.Info("commentary appended",
		"entry_id", entry.ID,
		"mode", entry.Mode,
		"bursts", len(entry.Bursts),
		"tags", entry.Summary.Tags,
	)
	if l.publisher != nil {
		l.publisher.PublishCommentary(entry)
	}
	return entry, nil
}

// Recent returns up to limit entries, newest first. Limits outside 1..100
// are clamped; zero selects 20.
func (l *Log) Recent(ctx context.Context, limit int) ([]domain.CommentaryEntry, error) {
	switch {
	case limit <= 0:
		limit = defaultRecentLimit
	case limit > maxRecentLimit:
		limit = maxRecentLimit
	}
	entries, err := l.repo.ListRecentCommentary(ctx, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.CommentaryEntry{}
	}
	return entries, nil
}

// LatestByMode returns the newest entry of mode, or repository.ErrNotFound.
func (l *Log) LatestByMode(ctx context.Context, mode domain.CommentaryMode) (*domain.CommentaryEntry, error) {
	if _, ok := domain.ParseMode(string(mode)); !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	entry, err := l.repo.GetLatestCommentaryByMode(ctx, mode)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, repository.ErrNotFound
	}
	return entry, nil
}

// latestHourly returns the newest hourly entry or nil when none exists.
func (l *Log) latestHourly(ctx context.Context) (*domain.CommentaryEntry, error) {
	entry, err := l.LatestByMode(ctx, domain.ModeHourly)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return entry, err
}
