package service

import (
	"context"
	"sort"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Subho98799/nagar/internal/clock"
	"github.com/Subho98799/nagar/internal/confidence"
	"github.com/Subho98799/nagar/internal/escalation"
	"github.com/Subho98799/nagar/internal/models"
	"github.com/Subho98799/nagar/internal/repository"
	"github.com/Subho98799/nagar/internal/workflow"
)

const (
	maxNoteLen     = 2000
	maxCategoryLen = 100
)

// ReviewerService holds every manual override. Each mutating call takes the
// acting reviewer and leaves an entry in the matching history.
type ReviewerService interface {
	ListReports(ctx context.Context, f repository.Filter) ([]*models.Report, error)
	TransitionStatus(ctx context.Context, id string, target models.Status, actor models.Actor, note string) (*models.Report, error)
	AddNote(ctx context.Context, id, text string, actor models.Actor) (*models.Report, error)
	OverrideCategory(ctx context.Context, id, category string, actor models.Actor, note string) (*models.Report, error)
	UpgradeConfidence(ctx context.Context, id string, actor models.Actor, note string) (*models.Report, error)
	SetEscalation(ctx context.Context, id string, flag bool, actor models.Actor, reason string) (*models.Report, error)
	Recompute(ctx context.Context, id string, actor models.Actor) (*models.Report, error)
	AllowedTransitions(ctx context.Context, id string) (models.Status, []models.Status, error)
	Refresh(ctx context.Context, id string) (*models.Report, error)
	RefreshOpen(ctx context.Context, workers int) (total, failed int, err error)
	EscalationCandidates(ctx context.Context, limit int) ([]*models.Report, error)
}

type reviewerService struct {
	*pipeline
}

func NewReviewerService(repo repository.ReportRepository, engines Engines, clk clock.Clock, logger *zap.Logger) ReviewerService {
	return &reviewerService{
		pipeline: &pipeline{repo: repo, engines: engines, clock: clk, logger: logger},
	}
}

func (s *reviewerService) ListReports(ctx context.Context, f repository.Filter) ([]*models.Report, error) {
	if err := validateFilter(f); err != nil {
		return nil, err
	}
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	return s.repo.List(ctx, f)
}

// TransitionStatus delegates to the workflow and then re-derives the signals
// that depend on status.
func (s *reviewerService) TransitionStatus(ctx context.Context, id string, target models.Status, actor models.Actor, note string) (*models.Report, error) {
	if err := requireReviewer(actor); err != nil {
		return nil, err
	}
	var from models.Status
	r, err := s.mutate(ctx, id, func(ctx context.Context, r *models.Report) (bool, error) {
		from = r.Status
		notes := len(r.ReviewerNotes)
		outcome, err := workflow.Transition(r, target, actor, note, s.clock.Now())
		if err != nil {
			return false, err
		}
		if outcome == workflow.Unchanged {
			return len(r.ReviewerNotes) != notes, nil
		}
		if _, err := s.refresh(ctx, r); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if from != r.Status {
		s.logger.Info("Report status changed",
			zap.String("report_id", id),
			zap.String("from", string(from)),
			zap.String("to", string(r.Status)),
			zap.Stringer("actor", actor))
	}
	return r, nil
}

func (s *reviewerService) AddNote(ctx context.Context, id, text string, actor models.Actor) (*models.Report, error) {
	if err := requireReviewer(actor); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &models.ValidationError{Field: "text", Message: "is required"}
	}
	if utf8.RuneCountInString(text) > maxNoteLen {
		return nil, &models.ValidationError{Field: "text", Message: "is too long"}
	}
	return s.mutate(ctx, id, func(_ context.Context, r *models.Report) (bool, error) {
		r.ReviewerNotes = append(r.ReviewerNotes, models.ReviewerNote{Text: text, Actor: actor, Timestamp: s.clock.Now()})
		return true, nil
	})
}

// OverrideCategory stores the reviewer's category under ai_metadata.override,
// leaving the provider's hint and the citizen's issue_type untouched.
func (s *reviewerService) OverrideCategory(ctx context.Context, id, category string, actor models.Actor, note string) (*models.Report, error) {
	if err := requireReviewer(actor); err != nil {
		return nil, err
	}
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, &models.ValidationError{Field: "category", Message: "is required"}
	}
	if utf8.RuneCountInString(category) > maxCategoryLen {
		return nil, &models.ValidationError{Field: "category", Message: "is too long"}
	}
	note = strings.TrimSpace(note)

	r, err := s.mutate(ctx, id, func(ctx context.Context, r *models.Report) (bool, error) {
		now := s.clock.Now()
		meta := r.AIMetadata.Clone()
		if meta == nil {
			meta = &models.AIMetadata{}
		}
		meta.Override = &models.CategoryOverride{Category: category, Actor: actor, Note: note, OverriddenAt: now}
		r.AIMetadata = meta

		text := "Category override: " + category
		if note != "" {
			text += " (" + note + ")"
		}
		r.ReviewerNotes = append(r.ReviewerNotes, models.ReviewerNote{Text: text, Actor: actor, Timestamp: now})

		if _, err := s.refresh(ctx, r); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Category overridden",
		zap.String("report_id", id),
		zap.String("category", category),
		zap.Stringer("actor", actor))
	return r, nil
}

// UpgradeConfidence forces HIGH. The upgrade sticks until an explicit Recompute.
func (s *reviewerService) UpgradeConfidence(ctx context.Context, id string, actor models.Actor, note string) (*models.Report, error) {
	if err := requireReviewer(actor); err != nil {
		return nil, err
	}
	note = strings.TrimSpace(note)

	r, err := s.mutate(ctx, id, func(ctx context.Context, r *models.Report) (bool, error) {
		confidence.Upgrade(r)
		text := "Confidence upgraded to HIGH"
		if note != "" {
			text += ": " + note
		}
		r.ReviewerNotes = append(r.ReviewerNotes, models.ReviewerNote{Text: text, Actor: actor, Timestamp: s.clock.Now()})
		if _, err := s.refresh(ctx, r); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Confidence upgraded", zap.String("report_id", id), zap.Stringer("actor", actor))
	return r, nil
}

// SetEscalation records an approve (true) or dismiss (false) decision.
func (s *reviewerService) SetEscalation(ctx context.Context, id string, flag bool, actor models.Actor, reason string) (*models.Report, error) {
	if err := requireReviewer(actor); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		if flag {
			reason = "Escalation approved by reviewer"
		} else {
			reason = "Escalation dismissed by reviewer"
		}
	}

	r, err := s.mutate(ctx, id, func(_ context.Context, r *models.Report) (bool, error) {
		escalation.SetManual(r, flag, actor, reason, s.clock.Now())
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Escalation set manually",
		zap.String("report_id", id),
		zap.Bool("escalation_flag", flag),
		zap.Stringer("actor", actor))
	return r, nil
}

// Recompute drops every reviewer override on derived signals and re-runs
// confidence, priority and escalation from scratch.
// A cleared manual escalation decision is recorded against the reviewer before
// the automatic rules take the flag back.
func (s *reviewerService) Recompute(ctx context.Context, id string, actor models.Actor) (*models.Report, error) {
	if err := requireReviewer(actor); err != nil {
		return nil, err
	}
	r, err := s.mutate(ctx, id, func(ctx context.Context, r *models.Report) (bool, error) {
		hadOverride := r.ConfidenceOverridden || r.EscalationOverridden
		if r.EscalationOverridden {
			r.EscalationHistory = append(r.EscalationHistory, models.EscalationChange{
				FromFlag:  r.EscalationFlag,
				ToFlag:    r.EscalationFlag,
				Actor:     actor,
				Timestamp: s.clock.Now(),
				Reason:    "Manual escalation decision cleared by reviewer",
			})
		}
		confidence.ClearOverride(r)
		escalation.ClearOverride(r)
		changed, err := s.refresh(ctx, r)
		if err != nil {
			return false, err
		}
		return changed || hadOverride, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Report recomputed", zap.String("report_id", id), zap.Stringer("actor", actor))
	return r, nil
}

// AllowedTransitions returns the current status and the statuses a reviewer
// may move the report to next.
func (s *reviewerService) AllowedTransitions(ctx context.Context, id string) (models.Status, []models.Status, error) {
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", nil, err
	}
	return r.Status, workflow.Allowed(r.Status), nil
}

// Refresh re-derives time-dependent signals (age bonus, persistence) for one
// report. Unlike Recompute it keeps reviewer overrides.
func (s *reviewerService) Refresh(ctx context.Context, id string) (*models.Report, error) {
	return s.mutate(ctx, id, s.refreshMutation)
}

// RefreshOpen refreshes every report that is not CLOSED, at most workers at a
// time. Per-report failures are logged and counted, not returned.
func (s *reviewerService) RefreshOpen(ctx context.Context, workers int) (int, int, error) {
	open, err := s.repo.List(ctx, repository.Filter{ExcludeStatus: models.StatusClosed})
	if err != nil {
		return 0, 0, err
	}

	var failed atomic.Int64
	var group errgroup.Group
	group.SetLimit(max(workers, 1))
	for _, r := range open {
		id := r.ID
		group.Go(func() error {
			if _, err := s.Refresh(ctx, id); err != nil {
				failed.Add(1)
				s.logger.Warn("Refresh failed", zap.String("report_id", id), zap.Error(err))
			}
			return nil
		})
	}
	_ = group.Wait()
	return len(open), int(failed.Load()), nil
}

// EscalationCandidates returns flagged reports, highest priority first.
func (s *reviewerService) EscalationCandidates(ctx context.Context, limit int) ([]*models.Report, error) {
	flagged, err := s.repo.List(ctx, repository.Filter{EscalatedOnly: true})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(flagged, func(i, j int) bool {
		return scoreOf(flagged[i]) > scoreOf(flagged[j])
	})
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if len(flagged) > limit {
		flagged = flagged[:limit]
	}
	return flagged, nil
}

func scoreOf(r *models.Report) int {
	if r.PriorityScore == nil {
		return -1
	}
	return *r.PriorityScore
}

func requireReviewer(actor models.Actor) error {
	if actor.IsSystem() {
		return &models.ValidationError{Field: "actor", Message: "a reviewer id is required"}
	}
	return nil
}
