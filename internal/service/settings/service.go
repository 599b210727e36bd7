package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/splax/izzocam/internal/domain"
	"github.com/splax/izzocam/internal/repository"
)

// DefaultCacheTTL bounds how long a read configuration is reused.
const DefaultCacheTTL = 5 * time.Minute

// ErrInvalidConfig is returned for updates carrying unknown tones or levels.
var ErrInvalidConfig = errors.New("settings: invalid commentary config")

var (
	validTones         = map[string]struct{}{"playful": {}, "calm": {}, "formal": {}}
	validComedicLevels = map[string]struct{}{"none": {}, "light": {}, "medium": {}}
)

// Provider serves the commentary persona with a short-lived cache. Reads never
// fail: storage errors fall back to the defaults.
type Provider struct {
	repo   repository.SettingsRepository
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	cached   *domain.CommentaryConfig
	cachedAt time.Time
}

// New constructs a provider. A non-positive ttl selects DefaultCacheTTL.
func New(repo repository.SettingsRepository, ttl time.Duration, logger *slog.Logger) *Provider {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{repo: repo, ttl: ttl, logger: logger.With("component", "settings"), now: time.Now}
}

// Get returns the current configuration with defaults filled in.
func (p *Provider) Get(ctx context.Context) domain.CommentaryConfig {
	now := p.now()
	p.mu.Lock()
	if p.cached != nil && now.Sub(p.cachedAt) < p.ttl {
		cfg := *p.cached
		p.mu.Unlock()
		return cfg
	}
	p.mu.Unlock()

	cfg := domain.DefaultCommentaryConfig()
	if p.repo != nil {
		stored, err := p.repo.GetCommentaryConfig(ctx)
		switch {
		case err == nil:
			cfg = cfg.Merge(*stored)
		case errors.Is(err, repository.ErrNotFound):
		default:
			p.logger.Warn("load commentary config failed, using defaults", "error", err)
			return cfg
		}
	}

	p.mu.Lock()
	p.cached = &cfg
	p.cachedAt = now
	p.mu.Unlock()
	return cfg
}

// Update validates and stores a partial configuration, then drops the cache.
func (p *Provider) Update(ctx context.Context, patch domain.CommentaryConfig) (domain.CommentaryConfig, error) {
	patch = normalise(patch)
	if patch.Tone != "" {
		if _, ok := validTones[patch.Tone]; !ok {
			return domain.CommentaryConfig{}, fmt.Errorf("%w: tone %q", ErrInvalidConfig, patch.Tone)
		}
	}
	if patch.ComedicLevel != "" {
		if _, ok := validComedicLevels[patch.ComedicLevel]; !ok {
			return domain.CommentaryConfig{}, fmt.Errorf("%w: comedic level %q", ErrInvalidConfig, patch.ComedicLevel)
		}
	}
	if patch == (domain.CommentaryConfig{}) {
		return domain.CommentaryConfig{}, fmt.Errorf("%w: no fields to update", ErrInvalidConfig)
	}
	if p.repo == nil {
		return domain.CommentaryConfig{}, errors.New("settings repository not configured")
	}
	if err := p.repo.UpsertCommentaryConfig(ctx, patch); err != nil {
		return domain.CommentaryConfig{}, fmt.Errorf("store commentary config: %w", err)
	}
	p.Invalidate()
	p.logger.Info("commentary config updated", "tone", patch.Tone, "comedic_level", patch.ComedicLevel)
	return p.Get(ctx), nil
}

// Invalidate forces the next Get to read storage.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	p.cached = nil
	p.mu.Unlock()
}

func normalise(cfg domain.CommentaryConfig) domain.CommentaryConfig {
	return domain.CommentaryConfig{
		SubjectName:  strings.TrimSpace(cfg.SubjectName),
		LocationName: strings.TrimSpace(cfg.LocationName),
		Tone:         strings.ToLower(strings.TrimSpace(cfg.Tone)),
		ComedicLevel: strings.ToLower(strings.TrimSpace(cfg.ComedicLevel)),
	}
}
