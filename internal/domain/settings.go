package domain

// CommentaryConfig controls the persona used when prompting the model.
type CommentaryConfig struct {
	SubjectName  string `json:"dogName,omitempty"`
	LocationName string `json:"locationName,omitempty"`
	Tone         string `json:"tone,omitempty"`
	ComedicLevel string `json:"comedicLevel,omitempty"`
}

// DefaultCommentaryConfig is used when no stored configuration can be read.
func DefaultCommentaryConfig() CommentaryConfig {
	return CommentaryConfig{
		SubjectName:  "Izzo",
		LocationName: "home",
		Tone:         "playful",
		ComedicLevel: "light",
	}
}

// Merge overlays the non-empty fields of patch onto c.
func (c CommentaryConfig) Merge(patch CommentaryConfig) CommentaryConfig {
	if patch.SubjectName != "" {
		c.SubjectName = patch.SubjectName
	}
	if patch.LocationName != "" {
		c.LocationName = patch.LocationName
	}
	if patch.Tone != "" {
		c.Tone = patch.Tone
	}
	if patch.ComedicLevel != "" {
		c.ComedicLevel = patch.ComedicLevel
	}
	return c
}
