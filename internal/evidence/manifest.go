package evidence

// Closed vocabulary for ContextManifest pace and quality_bar fields.
const (
	LevelHigh   = "high"
	LevelMedium = "medium"
	LevelLow    = "low"
)

// ContextManifest (COM) is the role-parameterized record that
// configures rule thresholds. Rules read it, never write it.
type ContextManifest struct {
	Pace       string            `json:"pace"`
	QualityBar string            `json:"quality_bar"`
	Extensions map[string]string `json:"extensions,omitempty"`
}

// NormalizedPace returns the pace level, falling back to medium for
// values outside the closed vocabulary.
func (c ContextManifest) NormalizedPace() string {
	return normalizeLevel(c.Pace)
}

// NormalizedQualityBar returns the quality bar level with the same
// medium fallback.
func (c ContextManifest) NormalizedQualityBar() string {
	return normalizeLevel(c.QualityBar)
}

func normalizeLevel(v string) string {
	switch v {
	case LevelHigh, LevelMedium, LevelLow:
		return v
	default:
		return LevelMedium
	}
}

// LLMTag is one record emitted by the upstream tagger. The core treats
// it as read-only input.
type LLMTag struct {
	Tag           string `json:"tag"`
	EvidenceQuote string `json:"evidence_quote"`
}

// ArtifactMeta describes an uploaded artifact without its bytes. The
// proof engine only ever sees this metadata.
type ArtifactMeta struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	URL         string `json:"url,omitempty"`
}

// Bag is the full evidence tuple handed to the proof engine for one
// evaluation.
type Bag struct {
	Metrics   Metrics
	Artifacts map[string]ArtifactMeta
	LLMTags   []LLMTag
	COM       ContextManifest
}

// HasTag reports whether a tag with the given name is present.
func (b Bag) HasTag(name string) (LLMTag, bool) {
	for _, t := range b.LLMTags {
		if t.Tag == name {
			return t, true
		}
	}
	return LLMTag{}, false
}
