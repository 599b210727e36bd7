package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryFixedWindow(t *testing.T) {
	base := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	now := base
	m := newMemory(Policy{Name: "commentary_request", Limit: 2, Window: 600000 * time.Millisecond}, func() time.Time { return now })
	ctx := context.Background()

	if d := m.Allow(ctx, "user:a"); !d.Allowed || d.Count != 1 {
		t.Fatalf("first request: %+v", d)
	}
	now = base.Add(time.Minute)
	if d := m.Allow(ctx, "user:a"); !d.Allowed || d.Count != 2 || d.Remaining() != 0 {
		t.Fatalf("second request: %+v", d)
	}
	now = base.Add(2 * time.Minute)
	d := m.Allow(ctx, "user:a")
	if d.Allowed {
		t.Fatalf("third request should be denied: %+v", d)
	}
	if d.RetryAfterSeconds() != 480 || d.RetryAfterSeconds() > 600 {
		t.Fatalf("expected 480s retry, got %d", d.RetryAfterSeconds())
	}

	now = base.Add(10 * time.Minute)
	if d := m.Allow(ctx, "user:a"); !d.Allowed || d.Count != 1 {
		t.Fatalf("request after window should reset: %+v", d)
	}
}

func TestMemoryIdentitiesAreIndependent(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	m := newMemory(Policy{Name: "p", Limit: 1, Window: time.Minute}, func() time.Time { return now })
	ctx := context.Background()
	m.Allow(ctx, "ip:1.1.1.1")
	if d := m.Allow(ctx, "ip:2.2.2.2"); !d.Allowed {
		t.Fatalf("other identity should not be limited: %+v", d)
	}
	if d := m.Allow(ctx, "ip:1.1.1.1"); d.Allowed {
		t.Fatalf("same identity should be limited: %+v", d)
	}
}

func TestMemoryRetryAfterRoundsUp(t *testing.T) {
	base := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	now := base
	m := newMemory(Policy{Name: "p", Limit: 1, Window: time.Minute}, func() time.Time { return now })
	m.Allow(context.Background(), "k")
	now = base.Add(59*time.Second + 500*time.Millisecond)
	if d := m.Allow(context.Background(), "k"); d.RetryAfterSeconds() != 1 {
		t.Fatalf("expected 1s retry, got %d", d.RetryAfterSeconds())
	}
}

func TestMemoryUsageDoesNotCount(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	m := newMemory(GeneralAPI, func() time.Time { return now })
	ctx := context.Background()
	if u := m.Usage(ctx, "user:a"); u.Count != 0 || u.Remaining != 60 || u.ResetAt != nil {
		t.Fatalf("unexpected empty usage %+v", u)
	}
	m.Allow(ctx, "user:a")
	m.Allow(ctx, "user:a")
	u := m.Usage(ctx, "user:a")
	if u.Count != 2 || u.Remaining != 58 || u.ResetAt == nil {
		t.Fatalf("unexpected usage %+v", u)
	}
	if again := m.Usage(ctx, "user:a"); again.Count != 2 {
		t.Fatalf("usage must not count requests")
	}
}

func TestMemoryCleanupDropsExpired(t *testing.T) {
	base := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	now := base
	m := newMemory(Policy{Name: "p", Limit: 5, Window: time.Minute}, func() time.Time { return now })
	m.Allow(context.Background(), "old")
	now = base.Add(30 * time.Second)
	m.Allow(context.Background(), "fresh")

	m.cleanup(base.Add(time.Minute))
	if m.Len() != 1 {
		t.Fatalf("expected only the fresh counter to remain, got %d", m.Len())
	}
}

func TestMemorySweepLoopStopsOnClose(t *testing.T) {
	m := newMemory(Policy{Name: "p", Limit: 1, Window: time.Millisecond}, time.Now)
	m.Allow(context.Background(), "k")
	done := make(chan struct{})
	go func() {
		m.sweepLoop(5 * time.Millisecond)
		close(done)
	}()
	deadline := time.After(2 * time.Second)
	for m.Len() != 0 {
		select {
		case <-deadline:
			t.Fatalf("sweep did not remove expired counter")
		case <-time.After(5 * time.Millisecond):
		}
	}
	m.Close()
	m.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("sweep loop did not stop")
	}
}

func TestSetUsageAcrossPolicies(t *testing.T) {
	s := NewMemorySet(DefaultPolicies()...)
	defer s.Close()
	l, ok := s.Get(CommentaryRequest.Name)
	if !ok {
		t.Fatalf("commentary limiter missing")
	}
	l.Allow(context.Background(), "user:a")
	usage := s.Usage(context.Background(), "user:a")
	if len(usage) != 3 || usage[0].Limiter != "commentary_request" || usage[0].Count != 1 {
		t.Fatalf("unexpected usage %+v", usage)
	}
	if _, ok := s.Get("missing"); ok {
		t.Fatalf("unexpected limiter")
	}
}
