// Package priority computes the advisory 0-100 triage score.
package priority

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Subho98799/nagar/internal/clock"
	"github.com/Subho98799/nagar/internal/models"
	"github.com/Subho98799/nagar/internal/repository"
)

const (
	MinScore = 0
	MaxScore = 100

	mediaPoints          = 10
	persistenceThreshold = 24 * time.Hour
	agePointsPerDay      = 5
	ageCap               = 20
	repetitionPerReport  = 5
	repetitionCap        = 15
)

// Class groups issue types by urgency.
type Class string

const (
	ClassSafety         Class = "safety"
	ClassTraffic        Class = "traffic"
	ClassUtilities      Class = "utilities"
	ClassInfrastructure Class = "infrastructure"
	ClassOther          Class = "other"
)

var classPoints = map[Class]int{
	ClassSafety:         30,
	ClassTraffic:        20,
	ClassUtilities:      15,
	ClassInfrastructure: 10,
	ClassOther:          5,
}

var issueClasses = map[string]Class{
	"safety":         ClassSafety,
	"safety concern": ClassSafety,
	"public safety":  ClassSafety,
	"traffic":        ClassTraffic,
	"roadblock":      ClassTraffic,
	"power":          ClassUtilities,
	"power outage":   ClassUtilities,
	"water":          ClassUtilities,
	"water supply":   ClassUtilities,
	"infrastructure": ClassInfrastructure,
}

var confidencePoints = map[models.Confidence]int{
	models.ConfidenceHigh:   30,
	models.ConfidenceMedium: 15,
	models.ConfidenceLow:    5,
}

var statusPoints = map[models.Status]int{
	models.StatusVerified:    20,
	models.StatusUnderReview: 15,
	models.StatusActionTaken: 10,
	models.StatusClosed:      0,
}

// Classify maps an issue type to its class, case-insensitively.
func Classify(issueType string) Class {
	if c, ok := issueClasses[strings.ToLower(strings.TrimSpace(issueType))]; ok {
		return c
	}
	return ClassOther
}

// IsSafetyCritical reports whether issueType belongs to the safety class.
func IsSafetyCritical(issueType string) bool {
	return Classify(issueType) == ClassSafety
}

// Input is the full set of facts the score depends on.
type Input struct {
	Confidence     models.Confidence
	IssueType      string
	Status         models.Status
	HasMedia       bool
	Age            time.Duration
	LocalityRepeat int // other open reports sharing locality and city
}

// Result is a score and its pipe-delimited breakdown.
type Result struct {
	Score  int
	Reason string
}

// Score is pure: the reason is rebuilt from scratch on every call.
func Score(in Input) Result {
	var (
		total int
		parts []string
	)
	term := func(label string, points int) {
		total += points
		parts = append(parts, fmt.Sprintf("%s (+%d)", label, points))
	}

	term("Confidence: "+string(in.Confidence), confidencePoints[in.Confidence])

	issue := strings.TrimSpace(in.IssueType)
	if issue == "" {
		issue = "Other"
	}
	term("Issue type: "+issue, classPoints[Classify(in.IssueType)])

	term("Status: "+string(in.Status), statusPoints[in.Status])

	if in.HasMedia {
		term("Media attached", mediaPoints)
	}

	// Whole days only: 47h old earns nothing, 49h earns one day.
	if extraDays := int((in.Age - persistenceThreshold) / (24 * time.Hour)); extraDays > 0 {
		term("Time persistence", min(extraDays*agePointsPerDay, ageCap))
	}

	if in.LocalityRepeat > 0 {
		term("Locality repetition", min(in.LocalityRepeat*repetitionPerReport, repetitionCap))
	}

	return Result{Score: max(MinScore, min(total, MaxScore)), Reason: strings.Join(parts, " | ")}
}

// Scorer gathers score inputs from the store.
type Scorer struct {
	repo   repository.Lister
	clock  clock.Clock
	logger *zap.Logger
}

func NewScorer(repo repository.Lister, clk clock.Clock, logger *zap.Logger) *Scorer {
	return &Scorer{repo: repo, clock: clk, logger: logger}
}

// Calculate scores r as it stands now.
func (s *Scorer) Calculate(ctx context.Context, r *models.Report) (Result, error) {
	repeats, err := s.LocalityRepeats(ctx, r)
	if err != nil {
		return Result{}, err
	}
	return Score(Input{
		Confidence:     r.Confidence,
		IssueType:      r.IssueType,
		Status:         r.Status,
		HasMedia:       r.HasMedia(),
		Age:            r.Age(s.clock.Now()),
		LocalityRepeat: repeats,
	}), nil
}

// Apply writes the score into r and reports whether it changed.
func (s *Scorer) Apply(ctx context.Context, r *models.Report) (bool, error) {
	res, err := s.Calculate(ctx, r)
	if err != nil {
		return false, err
	}
	changed := r.PriorityScore == nil || *r.PriorityScore != res.Score || r.PriorityReason != res.Reason
	score := res.Score
	r.PriorityScore = &score
	r.PriorityReason = res.Reason
	if changed {
		s.logger.Debug("Priority updated", zap.String("report_id", r.ID), zap.Int("priority", score))
	}
	return changed, nil
}

// LocalityRepeats counts other non-closed reports in the same locality and city.
func (s *Scorer) LocalityRepeats(ctx context.Context, r *models.Report) (int, error) {
	return CountLocalityPeers(ctx, s.repo, r)
}

// CountLocalityPeers counts open reports other than r sharing its locality and
// city. A report without a locality has no peers.
func CountLocalityPeers(ctx context.Context, repo repository.Lister, r *models.Report) (int, error) {
	if strings.TrimSpace(r.Locality) == "" {
		return 0, nil
	}
	peers, err := repo.List(ctx, repository.Filter{
		Locality:      r.Locality,
		City:          r.City,
		ExcludeID:     r.ID,
		ExcludeStatus: models.StatusClosed,
	})
	if err != nil {
		return 0, fmt.Errorf("count locality peers: %w", err)
	}
	return len(peers), nil
}
