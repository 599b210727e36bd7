package commentary

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/splax/izzocam/internal/domain"
)

func TestSampleOneFramePerBurstOldestFirst(t *testing.T) {
	base := time.Date(2025, time.June, 1, 11, 0, 0, 0, time.UTC)
	var bursts []domain.Burst
	for i := 0; i < 10; i++ {
		bursts = append(bursts, burstAt(fmt.Sprintf("b%d", i), base.Add(time.Duration(i)*time.Minute), 3))
	}
	s := NewSampler(stubSigner{}, 0)

	frames, err := s.Sample(context.Background(), bursts, 6)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if len(frames) != 6 {
		t.Fatalf("expected 6 frames, got %d", len(frames))
	}
	for i, f := range frames {
		if f.BurstID != fmt.Sprintf("b%d", i) || f.FrameID != fmt.Sprintf("b%d-f0", i) {
			t.Fatalf("frame %d: unexpected %+v", i, f)
		}
		if !strings.HasSuffix(f.URL, "ttl=300") {
			t.Fatalf("expected default ttl in %q", f.URL)
		}
	}
}

func TestSampleBoundedByBurstsAndSkipsEmpty(t *testing.T) {
	base := time.Date(2025, time.June, 1, 11, 0, 0, 0, time.UTC)
	bursts := []domain.Burst{burstAt("a", base, 2), burstAt("empty", base.Add(time.Minute), 0), burstAt("c", base.Add(2*time.Minute), 1)}
	frames, err := NewSampler(stubSigner{}, time.Minute).Sample(context.Background(), bursts, 6)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if len(frames) != 2 || frames[1].BurstID != "c" {
		t.Fatalf("unexpected frames %+v", frames)
	}
}

func TestSamplePropagatesSigningFailure(t *testing.T) {
	base := time.Date(2025, time.June, 1, 11, 0, 0, 0, time.UTC)
	bursts := []domain.Burst{burstAt("a", base, 1), burstAt("b", base.Add(time.Minute), 1)}
	s := NewSampler(stubSigner{fail: "snapshots/b/0.jpg"}, 0)
	if _, err := s.Sample(context.Background(), bursts, 6); err == nil {
		t.Fatalf("expected signing failure to propagate")
	}
}
