package commentary

import (
	"encoding/json"
	"strings"

	"github.com/splax/izzocam/internal/domain"
)

// idleSummary is stored when a window contains no bursts.
func idleSummary() domain.CommentarySummary {
	return domain.CommentarySummary{
		Title:        "Quiet hour at IzzoCam",
		Body:         "Izzo took it easy. No significant movement detected in the selected timeframe.",
		BulletPoints: []string{"No major activity detected."},
		Confidence:   domain.ConfidenceLow,
		Tags:         []string{domain.TagIdle},
	}
}

func unavailableSummary() domain.CommentarySummary {
	return domain.CommentarySummary{
		Title:        "Izzo update unavailable",
		Body:         "IzzoCam AI could not generate a summary right now.",
		BulletPoints: []string{},
		Confidence:   domain.ConfidenceLow,
		Tags:         []string{domain.TagError},
	}
}

type modelSummary struct {
	Title        *string         `json:"title"`
	Summary      *string         `json:"summary"`
	BulletPoints json.RawMessage `json:"bulletPoints"`
	Confidence   string          `json:"confidence"`
	Tags         json.RawMessage `json:"tags"`
}

// empty reports whether the decoded value is JSON null or an object with none
// of the summary fields set.
func (m *modelSummary) empty() bool {
	if m == nil {
		return true
	}
	return m.Title == nil && m.Summary == nil && isNullOrEmpty(m.BulletPoints)
}

func isNullOrEmpty(raw json.RawMessage) bool {
	v := strings.TrimSpace(string(raw))
	return v == "" || v == "null" || v == "[]"
}

// fallbackSummary keeps raw model text readable when it is not a usable summary.
func fallbackSummary(text string) domain.CommentarySummary {
	return domain.CommentarySummary{
		Title:        "Izzo update",
		Body:         text,
		BulletPoints: []string{},
		Confidence:   domain.ConfidenceLow,
		Tags:         []string{domain.TagFallback},
	}
}

// parseSummary turns model output into a summary. The second return value is
// false when a fallback summary was substituted.
func parseSummary(text string) (domain.CommentarySummary, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return unavailableSummary(), false
	}
	var parsed *modelSummary
	if err := json.Unmarshal([]byte(stripCodeFence(trimmed)), &parsed); err != nil || parsed.empty() {
		return fallbackSummary(trimmed), false
	}

	summary := domain.CommentarySummary{
		Title:        "Izzo update",
		BulletPoints: stringList(parsed.BulletPoints),
		Confidence:   domain.ConfidenceMedium,
		Tags:         stringList(parsed.Tags),
	}
	if parsed.Title != nil && strings.TrimSpace(*parsed.Title) != "" {
		summary.Title = strings.TrimSpace(*parsed.Title)
	}
	if parsed.Summary != nil {
		summary.Body = strings.TrimSpace(*parsed.Summary)
	}
	if c, ok := domain.ParseConfidence(parsed.Confidence); ok {
		summary.Confidence = c
	}
	return summary, true
}

// stringList decodes a JSON array of strings, dropping anything else.
func stringList(raw json.RawMessage) []string {
	out := []string{}
	var items []any
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return out
	}
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimPrefix(text, "json")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
