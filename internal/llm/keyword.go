package llm

import (
	"context"
	"strings"

	"github.com/Subho98799/nagar/internal/models"
)

type categoryRule struct {
	category string
	words    []string
}

// Order matters: the first category with a matching word wins.
var categoryRules = []categoryRule{
	{"Traffic & Roads", []string{"traffic", "jam", "congestion", "road", "pothole", "accident"}},
	{"Water & Sanitation", []string{"water", "leak", "supply", "drainage", "tap", "pipeline"}},
	{"Electricity", []string{"electricity", "power", "light", "outage", "transformer"}},
	{"Waste Management", []string{"garbage", "waste", "trash", "cleanliness", "dump"}},
	{"Healthcare", []string{"health", "hospital", "medical", "doctor", "clinic"}},
	{"Public Safety", []string{"safety", "crime", "theft", "security"}},
	{"Infrastructure", []string{"building", "construction", "infrastructure", "bridge"}},
}

var (
	highSeverityWords   = []string{"urgent", "serious", "major", "severe", "dangerous", "blocking"}
	mediumSeverityWords = []string{"moderate", "significant", "concerning", "growing"}
	stopWords           = map[string]bool{
		"the": true, "and": true, "is": true, "in": true, "on": true, "at": true,
		"to": true, "a": true, "an": true, "of": true, "for": true, "near": true,
	}
)

const (
	maxKeywords   = 5
	maxSummaryLen = 100
)

// KeywordProvider is a deterministic rule-based interpreter. It never fails and
// makes no network calls.
type KeywordProvider struct{}

func NewKeywordProvider() *KeywordProvider {
	return &KeywordProvider{}
}

func (KeywordProvider) Name() string  { return string(ProviderKeyword) }
func (KeywordProvider) Model() string { return "keyword-rules-v1" }
func (KeywordProvider) Close() error  { return nil }

func (KeywordProvider) Interpret(_ context.Context, description, _, _ string) (*models.Interpretation, error) {
	lower := strings.ToLower(description)

	category := "General"
	for _, rule := range categoryRules {
		if containsAny(lower, rule.words) {
			category = rule.category
			break
		}
	}

	severity := "Low"
	switch {
	case containsAny(lower, highSeverityWords):
		severity = "High"
	case containsAny(lower, mediumSeverityWords):
		severity = "Medium"
	}

	keywords := []string{}
	for _, w := range strings.Fields(description) {
		w = strings.ToLower(strings.Trim(w, ".,!?;:\"'()"))
		if len(w) <= 3 || stopWords[w] {
			continue
		}
		keywords = append(keywords, w)
		if len(keywords) == maxKeywords {
			break
		}
	}

	summary := strings.TrimSpace(strings.SplitN(description, ".", 2)[0])
	if runes := []rune(summary); len(runes) > maxSummaryLen {
		summary = string(runes[:maxSummaryLen-3]) + "..."
	}

	return &models.Interpretation{
		Category:     category,
		SeverityHint: severity,
		Keywords:     keywords,
		Summary:      summary,
	}, nil
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
