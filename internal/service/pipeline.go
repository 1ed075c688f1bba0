package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Subho98799/nagar/internal/clock"
	"github.com/Subho98799/nagar/internal/confidence"
	"github.com/Subho98799/nagar/internal/escalation"
	"github.com/Subho98799/nagar/internal/models"
	"github.com/Subho98799/nagar/internal/priority"
	"github.com/Subho98799/nagar/internal/repository"
)

// maxWriteAttempts bounds the optimistic read-modify-write loop.
const maxWriteAttempts = 5

// Engines bundles the derived-field engines in the order they must run.
type Engines struct {
	Confidence *confidence.Engine
	Priority   *priority.Scorer
	Escalation *escalation.Evaluator
}

// NewEngines builds the engine set over one store.
func NewEngines(repo repository.Lister, clk clock.Clock, esc escalation.Config, logger *zap.Logger) Engines {
	return Engines{
		Confidence: confidence.NewEngine(repo, logger),
		Priority:   priority.NewScorer(repo, clk, logger),
		Escalation: escalation.NewEvaluator(repo, clk, esc, logger),
	}
}

// pipeline owns the per-record write discipline shared by both services.
type pipeline struct {
	repo    repository.ReportRepository
	engines Engines
	clock   clock.Clock
	logger  *zap.Logger
}

// mutation edits r in place and reports whether anything needs writing.
type mutation func(ctx context.Context, r *models.Report) (bool, error)

// mutate re-reads the record and re-applies fn until the versioned write
// lands. An error from fn aborts without writing.
func (p *pipeline) mutate(ctx context.Context, id string, fn mutation) (*models.Report, error) {
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		r, err := p.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		changed, err := fn(ctx, r)
		if err != nil {
			return nil, err
		}
		if !changed {
			return r, nil
		}
		r.UpdatedAt = p.clock.Now()

		err = p.repo.Update(ctx, r)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, models.ErrConflict) {
			return nil, err
		}
		p.logger.Debug("Write conflict, retrying",
			zap.String("report_id", id),
			zap.Int("attempt", attempt))
	}
	return nil, fmt.Errorf("report %s: %w after %d attempts", id, models.ErrConflict, maxWriteAttempts)
}

// refresh runs confidence, priority and escalation in that order. Reviewer
// overrides are respected.
func (p *pipeline) refresh(ctx context.Context, r *models.Report) (bool, error) {
	c, err := p.engines.Confidence.Apply(ctx, r)
	if err != nil {
		return false, fmt.Errorf("confidence: %w", err)
	}
	pr, err := p.engines.Priority.Apply(ctx, r)
	if err != nil {
		return false, fmt.Errorf("priority: %w", err)
	}
	e, err := p.engines.Escalation.Apply(ctx, r)
	if err != nil {
		return false, fmt.Errorf("escalation: %w", err)
	}
	return c || pr || e, nil
}

// refreshMutation adapts refresh to mutate.
func (p *pipeline) refreshMutation(ctx context.Context, r *models.Report) (bool, error) {
	return p.refresh(ctx, r)
}

// refreshSiblings re-derives every other member of r's cluster. Failures are
// logged and skipped; the triggering write has already landed.
func (p *pipeline) refreshSiblings(ctx context.Context, r *models.Report) {
	ids, err := p.engines.Confidence.Cluster(ctx, r)
	if err != nil {
		p.logger.Warn("Failed to load cluster for sibling recompute", zap.String("report_id", r.ID), zap.Error(err))
		return
	}
	for _, id := range ids {
		if id == r.ID {
			continue
		}
		if _, err := p.mutate(ctx, id, p.refreshMutation); err != nil {
			p.logger.Warn("Sibling recompute failed",
				zap.String("report_id", id),
				zap.String("trigger_id", r.ID),
				zap.Error(err))
		}
	}
}
