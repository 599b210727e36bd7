package commentary

import (
	"context"
	"fmt"
	"time"

	"github.com/splax/izzocam/internal/domain"
)

const (
	// DefaultMaxFrames caps the images attached to one prompt.
	DefaultMaxFrames = 6
	// DefaultFrameURLTTL is the lifetime of a sampled frame's read URL.
	DefaultFrameURLTTL = 300 * time.Second
)

// URLSigner turns a stored object path into a short-lived readable URL.
type URLSigner interface {
	SignedURL(ctx context.Context, objectPath string, ttl time.Duration) (string, error)
}

// SampledFrame is one frame chosen for the prompt.
type SampledFrame struct {
	BurstID    string
	FrameID    string
	URL        string
	CapturedAt time.Time
}

// Sampler picks the first frame of each burst, oldest first, until the cap.
type Sampler struct {
	signer URLSigner
	ttl    time.Duration
}

// NewSampler builds a sampler issuing URLs valid for ttl (default 300s).
func NewSampler(signer URLSigner, ttl time.Duration) *Sampler {
	if ttl <= 0 {
		ttl = DefaultFrameURLTTL
	}
	return &Sampler{signer: signer, ttl: ttl}
}

// Sample returns at most maxFrames frames, one per burst. Bursts without
// frames are skipped. A URL signing failure aborts the whole sample.
func (s *Sampler) Sample(ctx context.Context, bursts []domain.Burst, maxFrames int) ([]SampledFrame, error) {
	if maxFrames <= 0 {
		maxFrames = DefaultMaxFrames
	}
	frames := make([]SampledFrame, 0, min(maxFrames, len(bursts)))
	for _, burst := range bursts {
		if len(frames) >= maxFrames {
			break
		}
		frame, ok := burst.FirstFrame()
		if !ok {
			continue
		}
		url, err := s.signer.SignedURL(ctx, frame.StoragePath, s.ttl)
		if err != nil {
			return nil, fmt.Errorf("sign frame %s of burst %s: %w", frame.ID, burst.ID, err)
		}
		frames = append(frames, SampledFrame{
			BurstID:    burst.ID,
			FrameID:    frame.ID,
			URL:        url,
			CapturedAt: burst.CapturedAt,
		})
	}
	return frames, nil
}
