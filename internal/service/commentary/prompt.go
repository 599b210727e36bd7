package commentary

import (
	"fmt"
	"strings"
	"time"

	"github.com/splax/izzocam/internal/domain"
)

func systemPrompt(cfg domain.CommentaryConfig) string {
	return fmt.Sprintf("You are IzzoCam AI, a cheerful commentator describing the adventures of a dog named %s."+
		" Keep summaries informative, lightly comedic, and family-friendly."+
		" Always respond with compact JSON (no markdown).", cfg.SubjectName)
}

func userPrompt(cfg domain.CommentaryConfig, window Window, photos int, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	rangeText := fmt.Sprintf("%s to %s (%s)",
		window.Start.In(loc).Format("Jan 2, 3:04 PM"), window.End.In(loc).Format("3:04 PM"), window.End.In(loc).Format("MST"))
	minutes := int(window.Duration().Minutes())
	return strings.Join([]string{
		fmt.Sprintf("You are observing %s at %s.", cfg.SubjectName, cfg.LocationName),
		fmt.Sprintf("You will receive up to %d photos captured over the last %d minutes (%s).", photos, minutes, rangeText),
		"Describe notable movements, interactions, or scenery changes.",
		fmt.Sprintf("Keep tone %s with %s humor.", cfg.Tone, cfg.ComedicLevel),
		"Respond in JSON with keys: title, summary, bulletPoints (array), optional confidence (low/medium/high), optional tags (array).",
		"Avoid speculation beyond the images; note if activity is calm or unchanging.",
	}, " ")
}
