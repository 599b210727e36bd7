package recap

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/splax/izzocam/internal/domain"
	"github.com/splax/izzocam/internal/repository"
	"github.com/splax/izzocam/internal/service/commentary"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubEntries struct {
	mu     sync.Mutex
	latest *domain.CommentaryEntry
	err    error
}

func (s *stubEntries) LatestByMode(ctx context.Context, mode domain.CommentaryMode) (*domain.CommentaryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if s.latest == nil {
		return nil, repository.ErrNotFound
	}
	entry := *s.latest
	return &entry, nil
}

type stubCounter struct {
	count int
	err   error
}

func (s stubCounter) CountBurstsSince(ctx context.Context, since time.Time) (int, error) {
	return s.count, s.err
}

type stubErrors struct {
	mu      sync.Mutex
	records []domain.ErrorRecord
}

func (s *stubErrors) RecordError(ctx context.Context, record domain.ErrorRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
}

func newTestGuard(entries *stubEntries, counter stubCounter, recorder *stubErrors, now time.Time) *Guard {
	g := NewGuard(entries, counter, recorder, 0, discardLogger())
	g.now = func() time.Time { return now }
	return g
}

func TestGuardDueWithActivity(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	g := newTestGuard(&stubEntries{}, stubCounter{count: 3}, &stubErrors{}, now)
	decision := g.Check(context.Background())
	if !decision.Generate || decision.SnapshotCount != 3 {
		t.Fatalf("expected recap to be due, got %+v", decision)
	}
}

func TestGuardSkipsRecentRecap(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	entries := &stubEntries{latest: &domain.CommentaryEntry{
		ID:           "e1",
		Mode:         domain.ModeHourly,
		TimeframeEnd: now.Add(-20 * time.Minute),
		CreatedAt:    now.Add(-20 * time.Minute),
	}}
	g := newTestGuard(entries, stubCounter{count: 5}, &stubErrors{}, now)
	if g.ShouldGenerate(context.Background()) {
		t.Fatalf("expected duplicate recap to be skipped")
	}

	entries.latest.CreatedAt = now.Add(-61 * time.Minute)
	entries.latest.TimeframeEnd = now.Add(-61 * time.Minute)
	if !g.ShouldGenerate(context.Background()) {
		t.Fatalf("expected recap once the last one is over an hour old")
	}
}

func TestGuardSkipsWithoutActivity(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	recorder := &stubErrors{}
	g := newTestGuard(&stubEntries{}, stubCounter{}, recorder, now)
	decision := g.Check(context.Background())
	if decision.Generate || decision.Reason != ReasonNoActivity {
		t.Fatalf("unexpected decision %+v", decision)
	}
	if len(recorder.records) != 0 {
		t.Fatalf("no activity is not an error")
	}
}

func TestGuardReadFailuresSkipAndRecord(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	recorder := &stubErrors{}
	g := newTestGuard(&stubEntries{err: errors.New("store down")}, stubCounter{count: 9}, recorder, now)
	if decision := g.Check(context.Background()); decision.Generate || decision.Reason != ReasonDuplicateCheck {
		t.Fatalf("unexpected decision %+v", decision)
	}
	g = newTestGuard(&stubEntries{}, stubCounter{err: errors.New("count failed")}, recorder, now)
	if decision := g.Check(context.Background()); decision.Generate || decision.Reason != ReasonSnapshotCount {
		t.Fatalf("unexpected decision %+v", decision)
	}
	if len(recorder.records) != 2 {
		t.Fatalf("expected two error records, got %d", len(recorder.records))
	}
	if recorder.records[0].Severity != domain.SeverityMedium || recorder.records[1].Severity != domain.SeverityLow {
		t.Fatalf("unexpected severities %+v", recorder.records)
	}
}

type stubGenerator struct {
	entries *stubEntries
	now     time.Time
	calls   []commentary.GenerateInput
}

func (s *stubGenerator) Generate(ctx context.Context, in commentary.GenerateInput) (domain.CommentaryEntry, error) {
	s.calls = append(s.calls, in)
	entry := domain.CommentaryEntry{
		ID:             "recap",
		Mode:           in.Mode,
		TimeframeStart: s.now.Add(-time.Hour),
		TimeframeEnd:   s.now,
		CreatedAt:      s.now,
	}
	s.entries.mu.Lock()
	s.entries.latest = &entry
	s.entries.mu.Unlock()
	return entry, nil
}

func TestRunTwiceWithinHourGeneratesOnce(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	entries := &stubEntries{}
	gen := &stubGenerator{entries: entries, now: now}
	g := newTestGuard(entries, stubCounter{count: 2}, &stubErrors{}, now)
	svc := NewService(g, gen, discardLogger())

	first, err := svc.Run(context.Background())
	if err != nil || first.Entry == nil {
		t.Fatalf("expected first run to generate, got %+v, %v", first, err)
	}
	g.now = func() time.Time { return now.Add(30 * time.Minute) }
	second, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Entry != nil || second.Decision.Reason != ReasonRecentRecap {
		t.Fatalf("expected second run to be skipped, got %+v", second)
	}
	if len(gen.calls) != 1 || gen.calls[0].RequesterID != RequesterID || gen.calls[0].Mode != domain.ModeHourly {
		t.Fatalf("unexpected generate calls %+v", gen.calls)
	}
}

func TestHourlyTicksEachGenerate(t *testing.T) {
	start := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	entries := &stubEntries{}
	gen := &stubGenerator{entries: entries}
	g := newTestGuard(entries, stubCounter{count: 1}, &stubErrors{}, start)
	svc := NewService(g, gen, discardLogger())

	for tick := 0; tick < 6; tick++ {
		at := start.Add(time.Duration(tick) * time.Hour)
		g.now = func() time.Time { return at }
		// The stored entry lands a few seconds after the guard check.
		gen.now = at.Add(3 * time.Second)
		result, err := svc.Run(context.Background())
		if err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		if result.Entry == nil {
			t.Fatalf("tick %d: expected a recap, skipped with %q", tick, result.Decision.Reason)
		}
	}
	if len(gen.calls) != 6 {
		t.Fatalf("expected 6 recaps over 6 hourly ticks, got %d", len(gen.calls))
	}
}

func TestNewSchedulerDisabled(t *testing.T) {
	if s := NewScheduler(nil, nil, time.Hour, time.Hour, discardLogger()); s != nil {
		t.Fatalf("expected nil scheduler without jobs")
	}
	var s *Scheduler
	s.Run(context.Background())
}
