package commentary

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/splax/izzocam/internal/domain"
	"github.com/splax/izzocam/internal/llm"
)

type serviceFixture struct {
	svc      *Service
	snaps    *stubSnapshots
	repo     *stubCommentaryRepo
	model    *stubModel
	recorder *stubRecorder
}

func newServiceFixture(now time.Time, bursts []domain.Burst, modelText string) *serviceFixture {
	f := &serviceFixture{
		snaps:    &stubSnapshots{bursts: bursts},
		repo:     &stubCommentaryRepo{},
		model:    &stubModel{text: modelText},
		recorder: &stubRecorder{},
	}
	log := NewLog(f.repo, nil, discardLogger())
	log.now = func() time.Time { return now }
	resolver := NewResolver(f.snaps, log, 50, 0)
	resolver.now = func() time.Time { return now }
	f.svc = NewService(resolver, NewSampler(stubSigner{}, 0), log, staticConfig{}, f.model, f.recorder,
		Options{VisionModel: "gpt-4o-mini"}, discardLogger())
	return f
}

func TestGenerateIdleWithoutModelCall(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	f := newServiceFixture(now, nil, "")

	first, err := f.svc.Generate(context.Background(), GenerateInput{Mode: domain.ModeHourly})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := f.svc.Generate(context.Background(), GenerateInput{Mode: domain.ModeHourly})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("expected two independent entries")
	}
	if len(first.Bursts) != 0 || !first.Summary.HasTag(domain.TagIdle) || first.Summary.Confidence != domain.ConfidenceLow {
		t.Fatalf("unexpected idle entry %+v", first)
	}
	if first.Summary.Title != second.Summary.Title || first.Summary.Body != second.Summary.Body {
		t.Fatalf("idle entries should carry identical content")
	}
	if first.Meta.Reason != reasonNoSnapshots {
		t.Fatalf("expected no_snapshots reason, got %q", first.Meta.Reason)
	}
	if len(f.model.calls) != 0 || len(f.recorder.calls) != 0 {
		t.Fatalf("idle generation must not call or bill the model")
	}
	if len(f.repo.entries) != 2 {
		t.Fatalf("expected two persisted entries, got %d", len(f.repo.entries))
	}
}

func TestGenerateParsesModelJSON(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	bursts := []domain.Burst{burstAt("b1", now.Add(-30*time.Minute), 2), burstAt("b2", now.Add(-10*time.Minute), 1)}
	text := `{"title":"Zoomies","summary":"Izzo sprinted laps.","bulletPoints":["lap one","lap two"],"confidence":"high","tags":["active"]}`
	f := newServiceFixture(now, bursts, text)

	entry, err := f.svc.Generate(context.Background(), GenerateInput{Mode: domain.ModeAdhoc, RequesterID: "user-1"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if entry.Summary.Title != "Zoomies" || entry.Summary.Confidence != domain.ConfidenceHigh || len(entry.Summary.BulletPoints) != 2 {
		t.Fatalf("unexpected summary %+v", entry.Summary)
	}
	if len(entry.Bursts) != 2 || entry.Bursts[0].FrameCount != 2 {
		t.Fatalf("unexpected burst refs %+v", entry.Bursts)
	}
	if *entry.Meta.SnapshotCount != 2 || *entry.Meta.SelectedFrameCount != 2 || entry.Meta.RequesterID != "user-1" {
		t.Fatalf("unexpected meta %+v", entry.Meta)
	}
	if len(f.model.calls) != 1 || len(f.model.calls[0].ImageURLs) != 2 || f.model.calls[0].Detail != "low" {
		t.Fatalf("unexpected model request %+v", f.model.calls)
	}
	if len(f.recorder.calls) != 1 || f.recorder.calls[0].Operation != domain.OperationUserRequest || f.recorder.calls[0].PromptTokens != 100 {
		t.Fatalf("unexpected usage %+v", f.recorder.calls)
	}
}

func TestGenerateFallsBackOnPlainText(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	f := newServiceFixture(now, []domain.Burst{burstAt("b1", now.Add(-5*time.Minute), 1)}, "Izzo was napping.")

	entry, err := f.svc.Generate(context.Background(), GenerateInput{Mode: domain.ModeHourly})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if entry.Summary.Body != "Izzo was napping." {
		t.Fatalf("expected raw text body, got %q", entry.Summary.Body)
	}
	if len(entry.Summary.BulletPoints) != 0 || !entry.Summary.HasTag(domain.TagFallback) || entry.Summary.Confidence != domain.ConfidenceLow {
		t.Fatalf("unexpected fallback summary %+v", entry.Summary)
	}
	if len(f.repo.entries) != 1 || len(f.recorder.calls) != 1 {
		t.Fatalf("fallback entry should be persisted and billed")
	}
}

func TestGenerateEmptyModelText(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	f := newServiceFixture(now, []domain.Burst{burstAt("b1", now.Add(-5*time.Minute), 1)}, "   ")

	entry, err := f.svc.Generate(context.Background(), GenerateInput{Mode: domain.ModeHourly})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !entry.Summary.HasTag(domain.TagError) || len(entry.Summary.BulletPoints) != 0 {
		t.Fatalf("unexpected unavailable summary %+v", entry.Summary)
	}
}

func TestGenerateNoChoicesStoresUnavailableEntry(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	f := newServiceFixture(now, []domain.Burst{burstAt("b1", now.Add(-5*time.Minute), 1)}, "")
	f.model.err = fmt.Errorf("complete: %w", llm.ErrEmptyResponse)

	entry, err := f.svc.Generate(context.Background(), GenerateInput{Mode: domain.ModeHourly})
	if err != nil {
		t.Fatalf("empty provider output should not fail generation: %v", err)
	}
	if !entry.Summary.HasTag(domain.TagError) || entry.Summary.Title != unavailableSummary().Title {
		t.Fatalf("unexpected summary %+v", entry.Summary)
	}
	if len(f.repo.entries) != 1 {
		t.Fatalf("expected the unavailable entry to be persisted, got %d", len(f.repo.entries))
	}
	if len(f.recorder.errors) != 0 {
		t.Fatalf("empty output is not a model failure, got %+v", f.recorder.errors)
	}
	if len(f.recorder.calls) != 1 || f.recorder.calls[0].Model != "gpt-4o-mini" {
		t.Fatalf("expected usage to be recorded, got %+v", f.recorder.calls)
	}
}

func TestGenerateModelTimeout(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	f := newServiceFixture(now, []domain.Burst{burstAt("b1", now.Add(-5*time.Minute), 1)}, "")
	f.model.block = true
	f.svc.opts.ModelTimeout = 20 * time.Millisecond

	_, err := f.svc.Generate(context.Background(), GenerateInput{Mode: domain.ModeAdhoc, RequesterID: "u1"})
	var modelErr *ModelError
	if !errors.As(err, &modelErr) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected *ModelError wrapping a deadline, got %v", err)
	}
	if len(f.recorder.errors) != 1 || f.recorder.errors[0].Severity != domain.SeverityHigh {
		t.Fatalf("expected one high severity error record, got %+v", f.recorder.errors)
	}
	if len(f.repo.entries) != 0 {
		t.Fatalf("timed out generation must not persist an entry")
	}
}

func TestGenerateModelFailurePropagates(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	f := newServiceFixture(now, []domain.Burst{burstAt("b1", now.Add(-5*time.Minute), 1)}, "")
	boom := errors.New("upstream timeout")
	f.model.err = boom

	_, err := f.svc.Generate(context.Background(), GenerateInput{Mode: domain.ModeHourly, RequesterID: "hourly-cron-job"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected model error, got %v", err)
	}
	if len(f.repo.entries) != 0 {
		t.Fatalf("model failure must not persist an entry")
	}
	if len(f.recorder.errors) != 1 {
		t.Fatalf("expected one error record, got %d", len(f.recorder.errors))
	}
	rec := f.recorder.errors[0]
	if rec.Severity != domain.SeverityHigh || rec.Service != domain.ServiceOpenAI || rec.Operation != domain.OperationHourlyRecap {
		t.Fatalf("unexpected error record %+v", rec)
	}
}

func TestGenerateRejectsUnknownMode(t *testing.T) {
	f := newServiceFixture(time.Now(), nil, "")
	if _, err := f.svc.Generate(context.Background(), GenerateInput{Mode: "weekly"}); !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("expected ErrInvalidMode, got %v", err)
	}
}

func TestGenerateModelFailureIsTyped(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	f := newServiceFixture(now, []domain.Burst{burstAt("b1", now.Add(-5*time.Minute), 1)}, "")
	f.model.err = errors.New("bad gateway")

	_, err := f.svc.Generate(context.Background(), GenerateInput{Mode: domain.ModeAdhoc})
	var modelErr *ModelError
	if !errors.As(err, &modelErr) {
		t.Fatalf("expected *ModelError, got %T", err)
	}
}
