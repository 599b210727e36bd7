// Package recap decides when an hourly recap is due and runs it.
package recap

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/splax/izzocam/internal/domain"
	"github.com/splax/izzocam/internal/repository"
)

// DefaultDuplicateWindow is how recent an hourly entry must be to suppress a
// new recap. It sits below the hourly trigger interval so an entry written a
// few seconds after the previous tick does not suppress the next one.
const DefaultDuplicateWindow = 55 * time.Minute

// Skip reasons reported by Check.
const (
	ReasonDue            = "due"
	ReasonRecentRecap    = "recent_recap"
	ReasonNoActivity     = "no_recent_snapshots"
	ReasonDuplicateCheck = "duplicate_check_failed"
	ReasonSnapshotCount  = "snapshot_count_failed"
)

// LatestReader finds the newest entry of a mode.
type LatestReader interface {
	LatestByMode(ctx context.Context, mode domain.CommentaryMode) (*domain.CommentaryEntry, error)
}

// BurstCounter counts bursts captured since an instant.
type BurstCounter interface {
	CountBurstsSince(ctx context.Context, since time.Time) (int, error)
}

// ErrorRecorder receives error facts.
type ErrorRecorder interface {
	RecordError(ctx context.Context, record domain.ErrorRecord)
}

// Decision is the outcome of a guard check.
type Decision struct {
	Generate      bool   `json:"generate"`
	Reason        string `json:"reason"`
	SnapshotCount int    `json:"snapshotCount"`
}

// Guard suppresses duplicate or pointless hourly recaps. Read failures skip
// the recap and are recorded so outages stay visible.
type Guard struct {
	entries  LatestReader
	bursts   BurstCounter
	recorder ErrorRecorder
	window   time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewGuard builds a guard. A non-positive window selects DefaultDuplicateWindow.
func NewGuard(entries LatestReader, bursts BurstCounter, recorder ErrorRecorder, window time.Duration, logger *slog.Logger) *Guard {
	if window <= 0 {
		window = DefaultDuplicateWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		entries:  entries,
		bursts:   bursts,
		recorder: recorder,
		window:   window,
		logger:   logger.With("component", "recap_guard"),
		now:      time.Now,
	}
}

// ShouldGenerate reports whether an hourly recap should run now.
func (g *Guard) ShouldGenerate(ctx context.Context) bool {
	return g.Check(ctx).Generate
}

// Check evaluates the guard and explains the outcome.
func (g *Guard) Check(ctx context.Context) Decision {
	now := g.now().UTC()
	cutoff := now.Add(-g.window)

	latest, err := g.entries.LatestByMode(ctx, domain.ModeHourly)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		g.logger.Error("duplicate check failed, skipping recap", "error", err)
		g.record(ctx, domain.OperationDuplicateCheck, err, domain.SeverityMedium)
		return Decision{Reason: ReasonDuplicateCheck}
	case latest != nil && (!latest.CreatedAt.Before(cutoff) || !latest.TimeframeEnd.Before(cutoff)):
		g.logger.Info("hourly recap already generated recently, skipping", "entry_id", latest.ID, "created_at", latest.CreatedAt)
		return Decision{Reason: ReasonRecentRecap}
	}

	count, err := g.bursts.CountBurstsSince(ctx, now.Add(-time.Hour))
	if err != nil {
		g.logger.Error("snapshot count failed, skipping recap", "error", err)
		g.record(ctx, domain.OperationSnapshotCount, err, domain.SeverityLow)
		return Decision{Reason: ReasonSnapshotCount}
	}
	if count == 0 {
		g.logger.Info("no recent snapshots found, skipping recap")
		return Decision{Reason: ReasonNoActivity}
	}
	return Decision{Generate: true, Reason: ReasonDue, SnapshotCount: count}
}

func (g *Guard) record(ctx context.Context, operation string, err error, severity domain.Severity) {
	if g.recorder == nil {
		return
	}
	g.recorder.RecordError(ctx, domain.ErrorRecord{
		Service:   domain.ServiceRecap,
		Operation: operation,
		Error:     err.Error(),
		Severity:  severity,
	})
}
