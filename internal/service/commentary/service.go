package commentary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/splax/izzocam/internal/domain"
	"github.com/splax/izzocam/internal/llm"
	"github.com/splax/izzocam/internal/service/monitoring"
)

const (
	providerName          = "openai"
	defaultModelTimeout   = 20 * time.Second
	reasonNoSnapshots     = "no_snapshots"
	outcomeIdle           = "idle"
	outcomeModel          = "model"
	outcomeFallback       = "fallback"
	outcomeError          = "error"
	operationLabelUnknown = "unknown"
)

// Model is the vision model collaborator.
type Model interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// ConfigSource supplies the persona configuration. It must not fail.
type ConfigSource interface {
	Get(ctx context.Context) domain.CommentaryConfig
}

// Recorder receives usage and error facts.
type Recorder interface {
	RecordModelUsage(ctx context.Context, call monitoring.ModelCall) float64
	RecordError(ctx context.Context, record domain.ErrorRecord)
}

// Options tunes generation.
type Options struct {
	VisionModel  string
	MaxFrames    int
	MaxTokens    int
	ModelTimeout time.Duration
	// Location renders window times in the prompt. Defaults to UTC.
	Location *time.Location
}

// Service orchestrates one commentary generation: resolve, sample, prompt,
// parse and persist.
type Service struct {
	resolver *Resolver
	sampler  *Sampler
	log      *Log
	config   ConfigSource
	model    Model
	recorder Recorder
	opts     Options
	logger   *slog.Logger
	now      func() time.Time

	metricsOnce sync.Once
	generations *prometheus.CounterVec
}

// NewService wires the orchestrator.
func NewService(resolver *Resolver, sampler *Sampler, log *Log, config ConfigSource, model Model, recorder Recorder, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxFrames <= 0 {
		opts.MaxFrames = DefaultMaxFrames
	}
	if opts.ModelTimeout <= 0 {
		opts.ModelTimeout = defaultModelTimeout
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if strings.TrimSpace(opts.VisionModel) == "" {
		opts.VisionModel = "gpt-4o-mini"
	}
	s := &Service{
		resolver: resolver,
		sampler:  sampler,
		log:      log,
		config:   config,
		model:    model,
		recorder: recorder,
		opts:     opts,
		logger:   logger.With("component", "commentary"),
		now:      time.Now,
	}
	s.initMetrics()
	return s
}

// GenerateInput describes one generation request.
type GenerateInput struct {
	Mode        domain.CommentaryMode
	RequesterID string
	Since       *time.Time
	// Operation overrides the usage tag; by default hourly maps to
	// hourly_recap and adhoc to user_request.
	Operation string
}

// Generate produces and persists one entry. Windows without bursts yield an
// idle entry without calling the model. Unparseable or empty model output
// yields a fallback entry. Model failures are recorded and returned as *ModelError
// wrapping the provider error.
func (s *Service) Generate(ctx context.Context, in GenerateInput) (domain.CommentaryEntry, error) {
	mode, ok := domain.ParseMode(string(in.Mode))
	if !ok {
		return domain.CommentaryEntry{}, fmt.Errorf("%w: %q", ErrInvalidMode, in.Mode)
	}
	operation := in.Operation
	if operation == "" {
		operation = operationFor(mode)
	}
	logger := s.logger.With("mode", mode, "operation", operation, "requester", in.RequesterID)

	window, err := s.resolver.Resolve(ctx, mode, in.Since)
	if err != nil {
		s.countGeneration(mode, outcomeError)
		return domain.CommentaryEntry{}, err
	}

	if len(window.Bursts) == 0 {
		entry, err := s.log.Append(ctx, domain.CommentaryEntry{
			Mode:           mode,
			TimeframeStart: window.Start,
			TimeframeEnd:   window.End,
			Summary:        idleSummary(),
			Bursts:         []domain.BurstRef{},
			Provider:       domain.ProviderInfo{Name: providerName, Model: s.opts.VisionModel},
			Meta:           domain.CommentaryMeta{RequesterID: in.RequesterID, Reason: reasonNoSnapshots},
		})
		if err != nil {
			s.countGeneration(mode, outcomeError)
			return domain.CommentaryEntry{}, err
		}
		logger.Info("no bursts in window, stored idle commentary", "entry_id", entry.ID)
		s.countGeneration(mode, outcomeIdle)
		return entry, nil
	}

	cfg := s.config.Get(ctx)
	frames, err := s.sampler.Sample(ctx, window.Bursts, s.opts.MaxFrames)
	if err != nil {
		s.countGeneration(mode, outcomeError)
		return domain.CommentaryEntry{}, err
	}
	urls := make([]string, 0, len(frames))
	for _, f := range frames {
		urls = append(urls, f.URL)
	}
	req := llm.Request{
		Model:     s.opts.VisionModel,
		System:    systemPrompt(cfg),
		Prompt:    userPrompt(cfg, window, len(window.Bursts), s.opts.Location),
		ImageURLs: urls,
		Detail:    "low",
		MaxTokens: s.opts.MaxTokens,
	}

	// The call runs to completion or timeout even if the caller goes away.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ModelTimeout)
	started := s.now()
	resp, err := s.model.Complete(callCtx, req)
	latency := s.now().Sub(started)
	cancel()
	if errors.Is(err, llm.ErrEmptyResponse) {
		logger.Warn("model returned no choices, storing unavailable summary")
		resp, err = &llm.Response{Model: s.opts.VisionModel}, nil
	}
	if err != nil {
		s.recorder.RecordError(ctx, domain.ErrorRecord{
			Service:   domain.ServiceOpenAI,
			Operation: operation,
			UserID:    in.RequesterID,
			Error:     err.Error(),
			Severity:  domain.SeverityHigh,
		})
		logger.Error("model call failed", "error", err, "latency_ms", latency.Milliseconds())
		s.countGeneration(mode, outcomeError)
		return domain.CommentaryEntry{}, &ModelError{Err: err}
	}

	model := resp.Model
	if model == "" {
		model = s.opts.VisionModel
	}
	summary, parsed := parseSummary(resp.Text)
	if !parsed {
		logger.Warn("model response was not usable json, storing fallback", "response_chars", len(resp.Text))
	}

	promptTokens, completionTokens := resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	if promptTokens == 0 && completionTokens == 0 {
		promptTokens = monitoring.EstimateTokens(req.System + req.Prompt)
		completionTokens = monitoring.EstimateTokens(resp.Text)
	}

	latencyMS := latency.Milliseconds()
	snapshotCount := len(window.Bursts)
	frameCount := len(frames)
	entry, err := s.log.Append(ctx, domain.CommentaryEntry{
		Mode:           mode,
		TimeframeStart: window.Start,
		TimeframeEnd:   window.End,
		Summary:        summary,
		Bursts:         burstRefs(window.Bursts),
		Provider:       domain.ProviderInfo{Name: providerName, Model: model, LatencyMS: &latencyMS},
		Meta: domain.CommentaryMeta{
			RequesterID:        in.RequesterID,
			SnapshotCount:      &snapshotCount,
			SelectedFrameCount: &frameCount,
		},
	})
	if err != nil {
		s.countGeneration(mode, outcomeError)
		return domain.CommentaryEntry{}, err
	}

	cost := s.recorder.RecordModelUsage(ctx, monitoring.ModelCall{
		Operation:        operation,
		UserID:           in.RequesterID,
		Model:            model,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		Duration:         latency,
		Success:          true,
	})
	outcome := outcomeModel
	if !parsed {
		outcome = outcomeFallback
	}
	s.countGeneration(mode, outcome)
	logger.Info("commentary generated",
		"entry_id", entry.ID,
		"bursts", snapshotCount,
		"frames", frameCount,
		"latency_ms", latencyMS,
		"cost_usd", cost,
		"outcome", outcome,
	)
	return entry, nil
}

func operationFor(mode domain.CommentaryMode) string {
	switch mode {
	case domain.ModeHourly:
		return domain.OperationHourlyRecap
	case domain.ModeAdhoc:
		return domain.OperationUserRequest
	default:
		return operationLabelUnknown
	}
}

func burstRefs(bursts []domain.Burst) []domain.BurstRef {
	refs := make([]domain.BurstRef, 0, len(bursts))
	for _, b := range bursts {
		refs = append(refs, domain.BurstRef{BurstID: b.ID, CapturedAt: b.CapturedAt, FrameCount: len(b.Frames)})
	}
	return refs
}

func (s *Service) initMetrics() {
	s.metricsOnce.Do(func() {
		s.generations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "izzocam",
			Subsystem: "commentary",
			Name:      "generations_total",
			Help:      "Commentary generations by mode and outcome",
		}, []string{"mode", "outcome"})
		if err := prometheus.Register(s.generations); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
					s.generations = existing
				}
			}
		}
	})
}

func (s *Service) countGeneration(mode domain.CommentaryMode, outcome string) {
	s.generations.With(prometheus.Labels{"mode": string(mode), "outcome": outcome}).Inc()
}
