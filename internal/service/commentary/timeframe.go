package commentary

import (
	"context"
	"fmt"
	"time"

	"github.com/splax/izzocam/internal/domain"
	"github.com/splax/izzocam/internal/repository"
)

const (
	// HourlyWindow is the fixed width of an hourly recap.
	HourlyWindow = time.Hour
	// DefaultLookback is the adhoc window used when no hourly entry exists.
	DefaultLookback = time.Hour
	// DefaultMaxSnapshots caps the bursts fetched for one generation.
	DefaultMaxSnapshots = 50
)

// Window is a resolved timeframe and the bursts captured inside it.
type Window struct {
	Start  time.Time
	End    time.Time
	Bursts []domain.Burst
}

// Duration is End minus Start.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Resolver computes the window to summarise for a trigger. It has no side
// effects and returns snapshot read errors unchanged.
type Resolver struct {
	snapshots    repository.SnapshotRepository
	log          *Log
	maxSnapshots int
	maxLookback  time.Duration
	now          func() time.Time
}

// NewResolver builds a resolver. maxLookback of zero leaves adhoc windows
// unbounded when an old hourly entry exists.
func NewResolver(snapshots repository.SnapshotRepository, log *Log, maxSnapshots int, maxLookback time.Duration) *Resolver {
	if maxSnapshots <= 0 {
		maxSnapshots = DefaultMaxSnapshots
	}
	if maxLookback < 0 {
		maxLookback = 0
	}
	return &Resolver{
		snapshots:    snapshots,
		log:          log,
		maxSnapshots: maxSnapshots,
		maxLookback:  maxLookback,
		now:          time.Now,
	}
}

// Resolve returns the window for mode ending now. A non-nil since replaces
// the computed start of adhoc windows; hourly windows are always one hour.
func (r *Resolver) Resolve(ctx context.Context, mode domain.CommentaryMode, since *time.Time) (Window, error) {
	end := r.now().UTC()
	switch mode {
	case domain.ModeHourly:
		start := end.Add(-HourlyWindow)
		bursts, err := r.snapshots.ListBurstsBetween(ctx, start, end, r.maxSnapshots)
		if err != nil {
			return Window{}, err
		}
		return Window{Start: start, End: end, Bursts: bursts}, nil
	case domain.ModeAdhoc:
		start, err := r.adhocStart(ctx, end, since)
		if err != nil {
			return Window{}, err
		}
		bursts, err := r.snapshots.ListBurstsSince(ctx, start, r.maxSnapshots)
		if err != nil {
			return Window{}, err
		}
		return Window{Start: start, End: end, Bursts: bursts}, nil
	default:
		return Window{}, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
}

func (r *Resolver) adhocStart(ctx context.Context, end time.Time, since *time.Time) (time.Time, error) {
	if since != nil {
		return since.UTC(), nil
	}
	latest, err := r.log.latestHourly(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if latest == nil {
		return end.Add(-DefaultLookback), nil
	}
	start := latest.TimeframeEnd.UTC()
	if r.maxLookback > 0 && end.Sub(start) > r.maxLookback {
		start = end.Add(-r.maxLookback)
	}
	return start, nil
}
