package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Subho98799/nagar/internal/models"
	"github.com/Subho98799/nagar/internal/repository"
)

const unclassifiedCategory = "Unclassified"

// IssueCount is one category in a city pulse.
type IssueCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// CityPulse is a read-only snapshot of the open reports in one city.
type CityPulse struct {
	City                string                    `json:"city"`
	ReportCount         int                       `json:"report_count"`
	ActiveIssues        []IssueCount              `json:"active_issues"`
	ConfidenceBreakdown map[models.Confidence]int `json:"confidence_breakdown"`
	AffectedLocalities  []string                  `json:"affected_localities"`
	Summary             string                    `json:"summary"`
	GeneratedAt         time.Time                 `json:"generated_at"`
}

// CityPulse aggregates every report in city that is not CLOSED. It never
// writes.
func (s *reportService) CityPulse(ctx context.Context, city string) (*CityPulse, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return nil, &models.ValidationError{Field: "city", Message: "is required"}
	}
	reports, err := s.repo.List(ctx, repository.Filter{City: city, ExcludeStatus: models.StatusClosed})
	if err != nil {
		return nil, fmt.Errorf("list city reports: %w", err)
	}

	pulse := buildPulse(city, reports)
	pulse.GeneratedAt = s.clock.Now()
	s.logger.Debug("City pulse built", zap.String("city", city), zap.Int("report_count", pulse.ReportCount))
	return pulse, nil
}

func buildPulse(city string, reports []*models.Report) *CityPulse {
	pulse := &CityPulse{
		City:        city,
		ReportCount: len(reports),
		ConfidenceBreakdown: map[models.Confidence]int{
			models.ConfidenceLow:    0,
			models.ConfidenceMedium: 0,
			models.ConfidenceHigh:   0,
		},
		ActiveIssues:       []IssueCount{},
		AffectedLocalities: []string{},
	}

	counts := make(map[string]int)
	localities := make(map[string]struct{})
	for _, r := range reports {
		category := r.AIMetadata.CategoryHint()
		if category == "" {
			category = strings.TrimSpace(r.IssueType)
		}
		if category == "" {
			category = unclassifiedCategory
		}
		counts[category]++

		switch r.Confidence {
		case models.ConfidenceMedium, models.ConfidenceHigh:
			pulse.ConfidenceBreakdown[r.Confidence]++
		default:
			pulse.ConfidenceBreakdown[models.ConfidenceLow]++
		}

		if l := strings.TrimSpace(r.Locality); l != "" {
			localities[l] = struct{}{}
		}
	}

	for category, n := range counts {
		pulse.ActiveIssues = append(pulse.ActiveIssues, IssueCount{Category: category, Count: n})
	}
	sort.Slice(pulse.ActiveIssues, func(i, j int) bool {
		a, b := pulse.ActiveIssues[i], pulse.ActiveIssues[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Category < b.Category
	})
	for l := range localities {
		pulse.AffectedLocalities = append(pulse.AffectedLocalities, l)
	}
	sort.Strings(pulse.AffectedLocalities)

	pulse.Summary = pulseSummary(pulse)
	return pulse
}

// pulseSummary is a calm, fixed-template description. It reports counts only
// and never speculates about causes.
func pulseSummary(p *CityPulse) string {
	if p.ReportCount == 0 {
		return fmt.Sprintf("No active reports in %s at this time.", p.City)
	}

	var b strings.Builder
	dominant := p.ActiveIssues[0].Category
	if len(p.ActiveIssues) > 1 {
		others := make([]string, 0, 2)
		for _, ic := range p.ActiveIssues[1:min(3, len(p.ActiveIssues))] {
			others = append(others, strings.ToLower(ic.Category))
		}
		fmt.Fprintf(&b, "%s along with %s issues are currently reported in %s", dominant, strings.Join(others, " and "), p.City)
	} else {
		fmt.Fprintf(&b, "%s issues are currently reported in %s", dominant, p.City)
	}

	switch n := len(p.AffectedLocalities); {
	case n == 1:
		fmt.Fprintf(&b, ", in %s", p.AffectedLocalities[0])
	case n > 1 && n <= 3:
		fmt.Fprintf(&b, ", across %s", strings.Join(p.AffectedLocalities, ", "))
	case n > 3:
		fmt.Fprintf(&b, ", across %d localities", n)
	}

	high, medium := p.ConfidenceBreakdown[models.ConfidenceHigh], p.ConfidenceBreakdown[models.ConfidenceMedium]
	switch {
	case high > 0:
		fmt.Fprintf(&b, ". %d %s been reviewed and confirmed", high, reportsHave(high))
	case medium > 0:
		fmt.Fprintf(&b, ". %d %s corroborating patterns", medium, reportsShow(medium))
	default:
		b.WriteString(". Most reports remain under observation")
	}
	b.WriteString(".")
	return b.String()
}

func reportsHave(n int) string {
	if n == 1 {
		return "report has"
	}
	return "reports have"
}

func reportsShow(n int) string {
	if n == 1 {
		return "report shows"
	}
	return "reports show"
}
