package domain

import (
	"strings"
	"time"
)

// CommentaryMode classifies what triggered a generation.
type CommentaryMode string

const (
	ModeHourly CommentaryMode = "hourly"
	ModeAdhoc  CommentaryMode = "adhoc"
)

// ParseMode normalises a mode string. The boolean is false for unknown modes.
func ParseMode(raw string) (CommentaryMode, bool) {
	switch CommentaryMode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeHourly:
		return ModeHourly, true
	case ModeAdhoc:
		return ModeAdhoc, true
	default:
		return "", false
	}
}

// Confidence is the model's self-reported certainty.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// ParseConfidence returns the confidence for raw, or false if it is not one of
// low, medium or high.
func ParseConfidence(raw string) (Confidence, bool) {
	switch Confidence(strings.ToLower(strings.TrimSpace(raw))) {
	case ConfidenceLow:
		return ConfidenceLow, true
	case ConfidenceMedium:
		return ConfidenceMedium, true
	case ConfidenceHigh:
		return ConfidenceHigh, true
	default:
		return "", false
	}
}

// Summary tags with special meaning.
const (
	TagIdle     = "idle"
	TagFallback = "fallback"
	TagError    = "error"
)

// CommentarySummary is the human-readable part of an entry.
type CommentarySummary struct {
	Title        string     `json:"title"`
	Body         string     `json:"body"`
	BulletPoints []string   `json:"bulletPoints"`
	Confidence   Confidence `json:"confidence,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
}

// HasTag reports whether the summary carries tag.
func (s CommentarySummary) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// BurstRef records which burst contributed to an entry.
type BurstRef struct {
	BurstID    string    `json:"burstId"`
	CapturedAt time.Time `json:"capturedAt"`
	FrameCount int       `json:"frameCount"`
}

// ProviderInfo describes the model that produced an entry.
type ProviderInfo struct {
	Name      string `json:"name"`
	Model     string `json:"model"`
	LatencyMS *int64 `json:"latencyMs,omitempty"`
}

// CommentaryMeta is diagnostic context stored alongside an entry. Known keys
// are typed; Extra holds anything free-form.
type CommentaryMeta struct {
	RequesterID        string         `json:"requesterId,omitempty"`
	Reason             string         `json:"reason,omitempty"`
	SnapshotCount      *int           `json:"snapshotCount,omitempty"`
	SelectedFrameCount *int           `json:"selectedFrameCount,omitempty"`
	Extra              map[string]any `json:"extra,omitempty"`
}

// CommentaryEntry is an immutable record in the commentary log.
type CommentaryEntry struct {
	ID             string            `json:"id"`
	Mode           CommentaryMode    `json:"mode"`
	TimeframeStart time.Time         `json:"timeframeStart"`
	TimeframeEnd   time.Time         `json:"timeframeEnd"`
	Summary        CommentarySummary `json:"summary"`
	Bursts         []BurstRef        `json:"bursts"`
	Provider       ProviderInfo      `json:"provider"`
	Meta           CommentaryMeta    `json:"meta"`
	CreatedAt      time.Time         `json:"createdAt"`
}
