package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Subho98799/nagar/internal/clock"
	"github.com/Subho98799/nagar/internal/confidence"
	"github.com/Subho98799/nagar/internal/gate"
	"github.com/Subho98799/nagar/internal/geo"
	"github.com/Subho98799/nagar/internal/models"
	"github.com/Subho98799/nagar/internal/repository"
	"github.com/Subho98799/nagar/internal/workflow"
)

const (
	minDescriptionLen = 5
	maxDescriptionLen = 1000
	maxIssueTypeLen   = 100
	maxCityLen        = 100
	maxLocalityLen    = 200
	maxMediaRefs      = 10

	// DefaultListLimit caps list queries that do not set a limit.
	DefaultListLimit = 100
)

// Enricher produces advisory annotations for a stored report. Implementations
// own their own deadline; any error is recorded and otherwise ignored.
type Enricher interface {
	Enrich(ctx context.Context, r *models.Report) (map[string]any, error)
}

// CreateReportInput is a citizen submission. IdentityHash is already one-way
// hashed by the transport.
type CreateReportInput struct {
	Description  string
	IssueType    string
	City         string
	Locality     string
	Coordinates  *models.Coordinates
	MediaRefs    []string
	IdentityHash string
}

// ReportService is the citizen-facing entry point.
type ReportService interface {
	CreateReport(ctx context.Context, in CreateReportInput) (*models.Report, error)
	GetReport(ctx context.Context, id string) (*models.Report, error)
	ListReports(ctx context.Context, f repository.Filter) ([]*models.Report, error)
	CityPulse(ctx context.Context, city string) (*CityPulse, error)
}

type reportService struct {
	*pipeline
	gate     *gate.Gate
	enricher Enricher
}

// NewReportService wires the create pipeline. enricher may be nil.
func NewReportService(repo repository.ReportRepository, g *gate.Gate, engines Engines, enricher Enricher, clk clock.Clock, logger *zap.Logger) ReportService {
	return &reportService{
		pipeline: &pipeline{repo: repo, engines: engines, clock: clk, logger: logger},
		gate:     g,
		enricher: enricher,
	}
}

// CreateReport runs validate, gate, persist, confidence, priority, escalation,
// then sibling recompute and best-effort enrichment.
func (s *reportService) CreateReport(ctx context.Context, in CreateReportInput) (*models.Report, error) {
	in, err := normalize(in)
	if err != nil {
		return nil, err
	}

	if err := s.gate.Check(ctx, gate.Candidate{
		Description:  in.Description,
		Locality:     in.Locality,
		Coordinates:  in.Coordinates,
		IdentityHash: in.IdentityHash,
	}); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	r := &models.Report{
		ID:                   uuid.NewString(),
		Description:          in.Description,
		IssueType:            in.IssueType,
		City:                 geo.ResolveCity(in.City, in.Locality),
		Locality:             in.Locality,
		Coordinates:          in.Coordinates,
		ReporterIdentityHash: in.IdentityHash,
		MediaRefs:            in.MediaRefs,
		Confidence:           models.ConfidenceLow,
		ConfidenceReason:     confidence.ReasonSingle,
		ReviewerNotes:        []models.ReviewerNote{},
		EscalationHistory:    []models.EscalationChange{},
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	workflow.Seed(r, now)

	if err := s.repo.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("persist report: %w", err)
	}
	s.logger.Info("Report created",
		zap.String("report_id", r.ID),
		zap.String("city", r.City),
		zap.String("locality", r.Locality),
		zap.String("issue_type", r.IssueType))

	r, err = s.mutate(ctx, r.ID, s.refreshMutation)
	if err != nil {
		return nil, fmt.Errorf("derive report signals: %w", err)
	}

	s.refreshSiblings(ctx, r)

	if s.enricher != nil {
		r = s.enrich(ctx, r)
	}
	return r, nil
}

// enrich never fails the request. The core record is already persisted; on any
// problem the caller gets the report as it stood before enrichment.
func (s *reportService) enrich(ctx context.Context, r *models.Report) *models.Report {
	annotations, enrichErr := s.enricher.Enrich(ctx, r)
	if enrichErr != nil {
		s.logger.Warn("Enrichment failed", zap.String("report_id", r.ID), zap.Error(enrichErr))
	}

	updated, err := s.mutate(ctx, r.ID, func(ctx context.Context, cur *models.Report) (bool, error) {
		meta := cur.AIMetadata.Clone()
		if meta == nil {
			meta = &models.AIMetadata{}
		}
		if enrichErr != nil {
			meta.Error = enrichErr.Error()
			cur.AIMetadata = meta
			return true, nil
		}
		meta.Annotations = annotations
		meta.Error = ""
		cur.AIMetadata = meta
		// The hint only matters when the citizen left the category blank.
		if strings.TrimSpace(cur.IssueType) == "" {
			if _, err := s.refresh(ctx, cur); err != nil {
				return false, err
			}
		}
		return true, nil
	})
	if err != nil {
		s.logger.Warn("Failed to store enrichment result", zap.String("report_id", r.ID), zap.Error(err))
		return r
	}
	return updated
}

func (s *reportService) GetReport(ctx context.Context, id string) (*models.Report, error) {
	return s.repo.Get(ctx, id)
}

func (s *reportService) ListReports(ctx context.Context, f repository.Filter) ([]*models.Report, error) {
	if err := validateFilter(f); err != nil {
		return nil, err
	}
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	return s.repo.List(ctx, f)
}

func validateFilter(f repository.Filter) error {
	if f.Status != "" && !f.Status.Valid() {
		return &models.ValidationError{Field: "status", Message: "unknown status " + string(f.Status)}
	}
	if f.Confidence != "" && !f.Confidence.Valid() {
		return &models.ValidationError{Field: "confidence", Message: "unknown confidence " + string(f.Confidence)}
	}
	return nil
}

func normalize(in CreateReportInput) (CreateReportInput, error) {
	in.Description = strings.TrimSpace(in.Description)
	in.IssueType = strings.TrimSpace(in.IssueType)
	in.City = strings.TrimSpace(in.City)
	in.Locality = strings.TrimSpace(in.Locality)
	in.IdentityHash = strings.TrimSpace(in.IdentityHash)

	switch n := utf8.RuneCountInString(in.Description); {
	case n == 0:
		return in, &models.ValidationError{Field: "description", Message: "is required"}
	case n < minDescriptionLen:
		return in, &models.ValidationError{Field: "description", Message: fmt.Sprintf("must be at least %d characters", minDescriptionLen)}
	case n > maxDescriptionLen:
		return in, &models.ValidationError{Field: "description", Message: fmt.Sprintf("must be at most %d characters", maxDescriptionLen)}
	}
	if utf8.RuneCountInString(in.IssueType) > maxIssueTypeLen {
		return in, &models.ValidationError{Field: "issue_type", Message: "is too long"}
	}
	if utf8.RuneCountInString(in.City) > maxCityLen {
		return in, &models.ValidationError{Field: "city", Message: "is too long"}
	}
	if utf8.RuneCountInString(in.Locality) > maxLocalityLen {
		return in, &models.ValidationError{Field: "locality", Message: "is too long"}
	}
	if c := in.Coordinates; c != nil {
		if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
			return in, &models.ValidationError{Field: "coordinates", Message: "out of range"}
		}
		coords := *c
		in.Coordinates = &coords
	}

	media := make([]string, 0, len(in.MediaRefs))
	for _, m := range in.MediaRefs {
		if m = strings.TrimSpace(m); m != "" {
			media = append(media, m)
		}
	}
	if len(media) > maxMediaRefs {
		return in, &models.ValidationError{Field: "media_refs", Message: fmt.Sprintf("at most %d allowed", maxMediaRefs)}
	}
	in.MediaRefs = media
	return in, nil
}
