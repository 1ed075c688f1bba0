// Package confidence derives a LOW/MEDIUM/HIGH corroboration level for a report
// from media evidence and the size of its locality/category cluster.
package confidence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Subho98799/nagar/internal/models"
	"github.com/Subho98799/nagar/internal/repository"
)

const (
	// ClusterWindow is measured from the earliest member of the cluster.
	ClusterWindow = 30 * time.Minute

	highClusterSize   = 4
	mediumClusterSize = 2

	ReasonSingle           = "Single report, awaiting corroboration"
	ReasonReviewerUpgraded = "Upgraded by reviewer"
)

// Input is everything the rules look at.
type Input struct {
	MediaCount  int
	ClusterSize int
	Locality    string
}

// Result is a computed level and its explanation.
type Result struct {
	Level  models.Confidence
	Reason string
}

type rule struct {
	fires  func(Input) bool
	level  models.Confidence
	reason func(Input) string
}

// rules are evaluated in order; the first that fires decides.
var rules = []rule{
	{
		fires: func(in Input) bool { return in.MediaCount > 0 },
		level: models.ConfidenceHigh,
		reason: func(in Input) string {
			return fmt.Sprintf("Report includes media evidence (%d file(s))", in.MediaCount)
		},
	},
	{
		fires: func(in Input) bool { return in.ClusterSize >= highClusterSize },
		level: models.ConfidenceHigh,
		reason: func(in Input) string {
			return fmt.Sprintf("Multiple corroborating reports detected (%d reports in %s within 30 minutes)",
				in.ClusterSize, in.Locality)
		},
	},
	{
		fires: func(in Input) bool { return in.ClusterSize >= mediumClusterSize },
		level: models.ConfidenceMedium,
		reason: func(in Input) string {
			return fmt.Sprintf("Multiple similar reports detected (%d reports in %s within 30 minutes)",
				in.ClusterSize, in.Locality)
		},
	},
}

// Decide applies the rule list. It is pure.
func Decide(in Input) Result {
	for _, r := range rules {
		if r.fires(in) {
			return Result{Level: r.level, Reason: r.reason(in)}
		}
	}
	return Result{Level: models.ConfidenceLow, Reason: ReasonSingle}
}

// Engine gathers cluster siblings from the store and applies Decide.
type Engine struct {
	repo   repository.Lister
	logger *zap.Logger
}

func NewEngine(repo repository.Lister, logger *zap.Logger) *Engine {
	return &Engine{repo: repo, logger: logger}
}

// Calculate returns the automatic confidence for r. It ignores any reviewer
// override; use Apply to respect it.
func (e *Engine) Calculate(ctx context.Context, r *models.Report) (Result, error) {
	size, err := e.ClusterSize(ctx, r)
	if err != nil {
		return Result{}, err
	}
	return Decide(Input{
		MediaCount:  len(r.MediaRefs),
		ClusterSize: size,
		Locality:    r.Locality,
	}), nil
}

// Apply writes the automatic confidence into r unless a reviewer upgrade is in
// force. It reports whether any field changed.
func (e *Engine) Apply(ctx context.Context, r *models.Report) (bool, error) {
	if r.ConfidenceOverridden {
		return false, nil
	}
	res, err := e.Calculate(ctx, r)
	if err != nil {
		return false, err
	}
	changed := r.Confidence != res.Level || r.ConfidenceReason != res.Reason
	r.Confidence = res.Level
	r.ConfidenceReason = res.Reason
	if changed {
		e.logger.Debug("Confidence updated",
			zap.String("report_id", r.ID),
			zap.String("confidence", string(res.Level)))
	}
	return changed, nil
}

// Upgrade forces HIGH on behalf of a reviewer. The upgrade survives automatic
// recomputes until ClearOverride is called.
func Upgrade(r *models.Report) {
	r.Confidence = models.ConfidenceHigh
	r.ConfidenceReason = ReasonReviewerUpgraded
	r.ConfidenceOverridden = true
}

// ClearOverride drops a reviewer upgrade so the next Apply recomputes.
func ClearOverride(r *models.Report) {
	r.ConfidenceOverridden = false
}

// ClusterSize counts r and its siblings: same locality, same category (case
// insensitive), inside the 30 minute window that opens at the earliest member
// created no more than 30 minutes before r. A report without a locality is a
// cluster of one.
func (e *Engine) ClusterSize(ctx context.Context, r *models.Report) (int, error) {
	members, err := e.Cluster(ctx, r)
	if err != nil {
		return 0, err
	}
	return len(members), nil
}

// Cluster returns the ids of every member of r's cluster, r included.
func (e *Engine) Cluster(ctx context.Context, r *models.Report) ([]string, error) {
	if strings.TrimSpace(r.Locality) == "" {
		return []string{r.ID}, nil
	}
	candidates, err := e.repo.List(ctx, repository.Filter{
		Locality:    r.Locality,
		CreatedFrom: r.CreatedAt.Add(-ClusterWindow),
		CreatedTo:   r.CreatedAt.Add(ClusterWindow),
	})
	if err != nil {
		return nil, fmt.Errorf("load cluster: %w", err)
	}

	category := strings.ToLower(r.Category())
	var same []*models.Report
	for _, c := range candidates {
		if c.ID == r.ID || strings.ToLower(c.Category()) != category {
			continue
		}
		same = append(same, c)
	}

	anchor := r.CreatedAt
	for _, c := range same {
		if c.CreatedAt.Before(anchor) {
			anchor = c.CreatedAt
		}
	}
	end := anchor.Add(ClusterWindow)

	ids := []string{r.ID}
	for _, c := range same {
		if !c.CreatedAt.After(end) {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}
