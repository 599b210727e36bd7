package commentary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/splax/izzocam/internal/domain"
	"github.com/splax/izzocam/internal/llm"
	"github.com/splax/izzocam/internal/repository"
	"github.com/splax/izzocam/internal/service/monitoring"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubSnapshots struct {
	mu      sync.Mutex
	bursts  []domain.Burst
	err     error
	between [][2]time.Time
	since   []time.Time
}

func (s *stubSnapshots) ListBurstsBetween(ctx context.Context, start, end time.Time, limit int) ([]domain.Burst, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.between = append(s.between, [2]time.Time{start, end})
	if s.err != nil {
		return nil, s.err
	}
	var out []domain.Burst
	for _, b := range s.bursts {
		if !b.CapturedAt.Before(start) && !b.CapturedAt.After(end) && len(out) < limit {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *stubSnapshots) ListBurstsSince(ctx context.Context, start time.Time, limit int) ([]domain.Burst, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.since = append(s.since, start)
	if s.err != nil {
		return nil, s.err
	}
	var out []domain.Burst
	for _, b := range s.bursts {
		if !b.CapturedAt.Before(start) && len(out) < limit {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *stubSnapshots) CountBurstsSince(ctx context.Context, since time.Time) (int, error) {
	bursts, err := s.ListBurstsSince(ctx, since, 1<<30)
	return len(bursts), err
}

type stubCommentaryRepo struct {
	mu      sync.Mutex
	entries []domain.CommentaryEntry
	err     error
}

func (s *stubCommentaryRepo) InsertCommentary(ctx context.Context, entry *domain.CommentaryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *stubCommentaryRepo) ListRecentCommentary(ctx context.Context, limit int) ([]domain.CommentaryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.CommentaryEntry
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

func (s *stubCommentaryRepo) GetLatestCommentaryByMode(ctx context.Context, mode domain.CommentaryMode) (*domain.CommentaryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].Mode == mode {
			entry := s.entries[i]
			return &entry, nil
		}
	}
	return nil, repository.ErrNotFound
}

type stubSigner struct {
	fail string
}

func (s stubSigner) SignedURL(ctx context.Context, objectPath string, ttl time.Duration) (string, error) {
	if objectPath == s.fail {
		return "", errors.New("object missing")
	}
	return fmt.Sprintf("https://media.test/%s?ttl=%d", objectPath, int(ttl.Seconds())), nil
}

type stubModel struct {
	mu    sync.Mutex
	text  string
	err   error
	block bool
	calls []llm.Request
}

func (m *stubModel) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)
	if m.block {
		<-ctx.Done()
		return nil, fmt.Errorf("send completion request: %w", ctx.Err())
	}
	if m.err != nil {
		return nil, m.err
	}
	return &llm.Response{Text: m.text, Model: req.Model, Usage: llm.Usage{PromptTokens: 100, CompletionTokens: 20}}, nil
}

type stubRecorder struct {
	mu     sync.Mutex
	calls  []monitoring.ModelCall
	errors []domain.ErrorRecord
}

func (r *stubRecorder) RecordModelUsage(ctx context.Context, call monitoring.ModelCall) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
	return 0.001
}

func (r *stubRecorder) RecordError(ctx context.Context, record domain.ErrorRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, record)
}

type staticConfig struct{}

func (staticConfig) Get(ctx context.Context) domain.CommentaryConfig {
	return domain.DefaultCommentaryConfig()
}

func burstAt(id string, at time.Time, frames int) domain.Burst {
	b := domain.Burst{ID: id, CapturedAt: at}
	for i := 0; i < frames; i++ {
		b.Frames = append(b.Frames, domain.Frame{
			ID:          fmt.Sprintf("%s-f%d", id, i),
			StoragePath: fmt.Sprintf("snapshots/%s/%d.jpg", id, i),
			MimeType:    "image/jpeg",
		})
	}
	return b
}
