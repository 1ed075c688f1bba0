package models

import (
	"strings"
	"time"
)

// Keys written into AIMetadata.Annotations by enrichment providers.
const (
	AnnotationClassifiedCategory = "ai_classified_category"
	AnnotationSummary            = "summary"
	AnnotationKeywords           = "keywords"
	AnnotationSeverityHint       = "severity_hint"
	AnnotationProvider           = "provider"
	AnnotationModel              = "model"
	AnnotationEnrichedAt         = "enriched_at"
)

// CategoryOverride is the reviewer's correction of the AI category hint.
// The original hint in Annotations is left untouched.
type CategoryOverride struct {
	Category     string    `json:"category"`
	Actor        Actor     `json:"actor"`
	Note         string    `json:"note,omitempty"`
	OverriddenAt time.Time `json:"overridden_at"`
}

// AIMetadata is advisory, opaque enrichment output. Core engines only ever read
// the category hint from it.
type AIMetadata struct {
	Annotations map[string]any    `json:"annotations,omitempty"`
	Override    *CategoryOverride `json:"override,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// CategoryHint returns the reviewer override category if present, otherwise the
// AI-classified category, otherwise "". Safe on a nil receiver.
func (m *AIMetadata) CategoryHint() string {
	if m == nil {
		return ""
	}
	if m.Override != nil && strings.TrimSpace(m.Override.Category) != "" {
		return strings.TrimSpace(m.Override.Category)
	}
	if v, ok := m.Annotations[AnnotationClassifiedCategory].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// Clone copies the metadata. Annotation values are copied shallowly.
func (m *AIMetadata) Clone() *AIMetadata {
	if m == nil {
		return nil
	}
	c := &AIMetadata{Error: m.Error}
	if m.Annotations != nil {
		c.Annotations = make(map[string]any, len(m.Annotations))
		for k, v := range m.Annotations {
			c.Annotations[k] = v
		}
	}
	if m.Override != nil {
		o := *m.Override
		c.Override = &o
	}
	return c
}

// Interpretation is one provider's reading of a report description.
type Interpretation struct {
	Category     string   `json:"ai_classified_category"`
	SeverityHint string   `json:"severity_hint"`
	Keywords     []string `json:"keywords"`
	Summary      string   `json:"summary"`
}

// Annotations flattens i into the AIMetadata annotation keys.
func (i *Interpretation) Annotations() map[string]any {
	keywords := make([]any, len(i.Keywords))
	for n, k := range i.Keywords {
		keywords[n] = k
	}
	return map[string]any{
		AnnotationClassifiedCategory: i.Category,
		AnnotationSeverityHint:       i.SeverityHint,
		AnnotationKeywords:           keywords,
		AnnotationSummary:            i.Summary,
	}
}
