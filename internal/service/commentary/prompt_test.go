package commentary

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/splax/izzocam/internal/domain"
)

func TestUserPromptUsesLocation(t *testing.T) {
	window := Window{
		Start: time.Date(2025, time.June, 1, 18, 0, 0, 0, time.UTC),
		End:   time.Date(2025, time.June, 1, 19, 0, 0, 0, time.UTC),
	}
	cfg := domain.DefaultCommentaryConfig()

	utc := userPrompt(cfg, window, 3, nil)
	if !strings.Contains(utc, "Jun 1, 6:00 PM to 7:00 PM (UTC)") {
		t.Fatalf("expected UTC range, got %q", utc)
	}

	pacific := time.FixedZone("PDT", -7*60*60)
	local := userPrompt(cfg, window, 3, pacific)
	if !strings.Contains(local, "Jun 1, 11:00 AM to 12:00 PM (PDT)") {
		t.Fatalf("expected local range, got %q", local)
	}
	if !strings.Contains(local, "over the last 60 minutes") {
		t.Fatalf("window length should not depend on location: %q", local)
	}
}

func TestGeneratePromptUsesConfiguredLocation(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	f := newServiceFixture(now, []domain.Burst{burstAt("b1", now.Add(-5*time.Minute), 1)}, `{"title":"Nap","summary":"Izzo slept."}`)
	f.svc.opts.Location = time.FixedZone("CEST", 2*60*60)

	if _, err := f.svc.Generate(context.Background(), GenerateInput{Mode: domain.ModeHourly}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(f.model.calls) != 1 {
		t.Fatalf("expected one model call, got %d", len(f.model.calls))
	}
	if prompt := f.model.calls[0].Prompt; !strings.Contains(prompt, "to 2:00 PM (CEST)") {
		t.Fatalf("expected window end in CEST, got %q", prompt)
	}
}
