package commentary

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/splax/izzocam/internal/domain"
)

func newTestResolver(snaps *stubSnapshots, repo *stubCommentaryRepo, now time.Time, maxLookback time.Duration) *Resolver {
	log := NewLog(repo, nil, discardLogger())
	r := NewResolver(snaps, log, 50, maxLookback)
	r.now = func() time.Time { return now }
	return r
}

func TestResolveHourlyIsExactlyOneHour(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	repo := &stubCommentaryRepo{entries: []domain.CommentaryEntry{{
		Mode:         domain.ModeHourly,
		TimeframeEnd: now.Add(-10 * time.Minute),
	}}}
	snaps := &stubSnapshots{}
	r := newTestResolver(snaps, repo, now, 0)

	window, err := r.Resolve(context.Background(), domain.ModeHourly, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if window.Duration() != time.Hour || !window.End.Equal(now) {
		t.Fatalf("unexpected hourly window %v - %v", window.Start, window.End)
	}
	since := now.Add(-5 * time.Hour)
	window, _ = r.Resolve(context.Background(), domain.ModeHourly, &since)
	if window.Duration() != time.Hour {
		t.Fatalf("hourly window must ignore since, got %v", window.Duration())
	}
}

func TestResolveAdhocStartsAtLastHourlyEnd(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	hourlyEnd := now.Add(-25 * time.Minute)
	repo := &stubCommentaryRepo{entries: []domain.CommentaryEntry{
		{Mode: domain.ModeHourly, TimeframeEnd: hourlyEnd},
		{Mode: domain.ModeAdhoc, TimeframeEnd: now.Add(-time.Minute)},
	}}
	snaps := &stubSnapshots{bursts: []domain.Burst{
		burstAt("old", hourlyEnd.Add(-time.Minute), 1),
		burstAt("new", hourlyEnd.Add(time.Minute), 1),
	}}
	r := newTestResolver(snaps, repo, now, 0)

	window, err := r.Resolve(context.Background(), domain.ModeAdhoc, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !window.Start.Equal(hourlyEnd) {
		t.Fatalf("expected start %v, got %v", hourlyEnd, window.Start)
	}
	if len(window.Bursts) != 1 || window.Bursts[0].ID != "new" {
		t.Fatalf("unexpected bursts %+v", window.Bursts)
	}
}

func TestResolveAdhocDefaultsAndOverrides(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	r := newTestResolver(&stubSnapshots{}, &stubCommentaryRepo{}, now, 0)

	window, err := r.Resolve(context.Background(), domain.ModeAdhoc, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !window.Start.Equal(now.Add(-DefaultLookback)) {
		t.Fatalf("expected default lookback, got %v", window.Start)
	}

	since := now.Add(-3 * time.Hour)
	window, _ = r.Resolve(context.Background(), domain.ModeAdhoc, &since)
	if !window.Start.Equal(since) {
		t.Fatalf("expected explicit since to win, got %v", window.Start)
	}
}

func TestResolveAdhocClampsLookback(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	repo := &stubCommentaryRepo{entries: []domain.CommentaryEntry{{Mode: domain.ModeHourly, TimeframeEnd: now.Add(-48 * time.Hour)}}}
	r := newTestResolver(&stubSnapshots{}, repo, now, 6*time.Hour)

	window, err := r.Resolve(context.Background(), domain.ModeAdhoc, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if window.Duration() != 6*time.Hour {
		t.Fatalf("expected clamp to 6h, got %v", window.Duration())
	}
}

func TestResolvePropagatesSnapshotErrors(t *testing.T) {
	boom := errors.New("snapshot store down")
	r := newTestResolver(&stubSnapshots{err: boom}, &stubCommentaryRepo{}, time.Now(), 0)
	if _, err := r.Resolve(context.Background(), domain.ModeHourly, nil); !errors.Is(err, boom) {
		t.Fatalf("expected snapshot error, got %v", err)
	}
	if _, err := r.Resolve(context.Background(), "weekly", nil); !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("expected ErrInvalidMode, got %v", err)
	}
}
