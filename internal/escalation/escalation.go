// Package escalation flags reports that warrant expedited human attention.
// The flag is a label only; nothing is ever sent anywhere because of it.
package escalation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Subho98799/nagar/internal/clock"
	"github.com/Subho98799/nagar/internal/models"
	"github.com/Subho98799/nagar/internal/priority"
	"github.com/Subho98799/nagar/internal/repository"
)

// Config holds the rule thresholds.
type Config struct {
	PriorityThreshold int
	PersistenceHours  int
	LocalityCount     int
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		PriorityThreshold: 70,
		PersistenceHours:  48,
		LocalityCount:     5,
	}
}

// Input is what the rules look at.
type Input struct {
	PriorityScore int
	Confidence    models.Confidence
	Locality      string
	LocalityPeers int
	Status        models.Status
	Age           time.Duration
	IssueType     string
}

// Result carries the OR of all rules and the reason of the first that fired.
type Result struct {
	Flag   bool
	Reason string
	Fired  []string
}

type rule struct {
	name   string
	fires  func(Config, Input) bool
	reason func(Config, Input) string
}

var rules = []rule{
	{
		name:  "priority",
		fires: func(c Config, in Input) bool { return in.PriorityScore >= c.PriorityThreshold },
		reason: func(c Config, in Input) string {
			return fmt.Sprintf("High priority score (%d >= %d)", in.PriorityScore, c.PriorityThreshold)
		},
	},
	{
		name: "locality",
		fires: func(c Config, in Input) bool {
			return in.Confidence == models.ConfidenceHigh && in.LocalityPeers >= c.LocalityCount
		},
		reason: func(_ Config, in Input) string {
			return fmt.Sprintf("HIGH confidence + %d reports in %s", in.LocalityPeers, in.Locality)
		},
	},
	{
		name: "persistence",
		fires: func(c Config, in Input) bool {
			return in.Status == models.StatusVerified && in.Age > time.Duration(c.PersistenceHours)*time.Hour
		},
		reason: func(_ Config, in Input) string {
			return fmt.Sprintf("VERIFIED issue persisting for %.1f hours", in.Age.Hours())
		},
	},
	{
		name:  "safety",
		fires: func(_ Config, in Input) bool { return priority.IsSafetyCritical(in.IssueType) },
		reason: func(_ Config, in Input) string {
			return "Safety-critical issue type: " + in.IssueType
		},
	},
}

// Decide runs every rule. It is pure.
func Decide(cfg Config, in Input) Result {
	var res Result
	for _, r := range rules {
		if !r.fires(cfg, in) {
			continue
		}
		if !res.Flag {
			res.Flag = true
			res.Reason = r.reason(cfg, in)
		}
		res.Fired = append(res.Fired, r.name)
	}
	return res
}

// Evaluator gathers rule inputs from the store.
type Evaluator struct {
	repo   repository.Lister
	clock  clock.Clock
	config Config
	logger *zap.Logger
}

func NewEvaluator(repo repository.Lister, clk clock.Clock, config Config, logger *zap.Logger) *Evaluator {
	return &Evaluator{repo: repo, clock: clk, config: config, logger: logger}
}

// Evaluate computes the automatic flag for r, ignoring any manual decision.
func (e *Evaluator) Evaluate(ctx context.Context, r *models.Report) (Result, error) {
	in := Input{
		Confidence: r.Confidence,
		Locality:   r.Locality,
		Status:     r.Status,
		Age:        r.Age(e.clock.Now()),
		IssueType:  r.IssueType,
	}
	if r.PriorityScore != nil {
		in.PriorityScore = *r.PriorityScore
	}
	if r.Confidence == models.ConfidenceHigh {
		peers, err := priority.CountLocalityPeers(ctx, e.repo, r)
		if err != nil {
			return Result{}, err
		}
		in.LocalityPeers = peers
	}
	return Decide(e.config, in), nil
}

// Apply writes the automatic result into r unless a reviewer decision is in
// force. A history entry is appended only when the flag flips.
func (e *Evaluator) Apply(ctx context.Context, r *models.Report) (bool, error) {
	if r.EscalationOverridden {
		return false, nil
	}
	res, err := e.Evaluate(ctx, r)
	if err != nil {
		return false, err
	}

	changed := r.EscalationReason != res.Reason
	if r.EscalationFlag != res.Flag {
		r.EscalationHistory = append(r.EscalationHistory, models.EscalationChange{
			FromFlag:  r.EscalationFlag,
			ToFlag:    res.Flag,
			Actor:     models.SystemActor(),
			Timestamp: e.clock.Now(),
			Reason:    res.Reason,
		})
		e.logger.Info("Escalation flag changed",
			zap.String("report_id", r.ID),
			zap.Bool("escalation_flag", res.Flag),
			zap.Strings("rules", res.Fired))
		changed = true
	}
	r.EscalationFlag = res.Flag
	r.EscalationReason = res.Reason
	return changed, nil
}

// SetManual records a reviewer's approve/dismiss decision. It always appends
// to the history and stays authoritative until ClearOverride.
func SetManual(r *models.Report, flag bool, actor models.Actor, reason string, at time.Time) {
	r.EscalationHistory = append(r.EscalationHistory, models.EscalationChange{
		FromFlag:  r.EscalationFlag,
		ToFlag:    flag,
		Actor:     actor,
		Timestamp: at,
		Reason:    reason,
	})
	r.EscalationFlag = flag
	r.EscalationReason = reason
	r.EscalationOverridden = true
}

// ClearOverride hands the flag back to the automatic rules.
func ClearOverride(r *models.Report) {
	r.EscalationOverridden = false
}
