package repository

import (
	"context"
	"time"

	"github.com/Subho98799/nagar/internal/models"
)

// Filter narrows List results. Zero-valued fields are ignored; time bounds are
// inclusive.
type Filter struct {
	Status        models.Status
	ExcludeStatus models.Status
	Confidence    models.Confidence
	Locality      string
	IssueType     string
	City          string
	IdentityHash  string
	ExcludeID     string
	EscalatedOnly bool
	CreatedFrom   time.Time
	CreatedTo     time.Time
	Limit         int
}

// ReportRepository is the single source of truth for report records.
//
// Update is a compare-and-swap on (ID, Version): it fails with
// models.ErrConflict when the stored version differs, and bumps r.Version on
// success. Callers never hold a lock across records.
type ReportRepository interface {
	Create(ctx context.Context, r *models.Report) error
	Get(ctx context.Context, id string) (*models.Report, error)
	Update(ctx context.Context, r *models.Report) error
	// List returns matching reports, newest first.
	List(ctx context.Context, f Filter) ([]*models.Report, error)
}

// Lister is the read-only slice of ReportRepository the engines depend on.
type Lister interface {
	List(ctx context.Context, f Filter) ([]*models.Report, error)
}

// Matches reports whether r satisfies f, ignoring Limit.
func (f Filter) Matches(r *models.Report) bool {
	switch {
	case f.Status != "" && r.Status != f.Status:
		return false
	case f.ExcludeStatus != "" && r.Status == f.ExcludeStatus:
		return false
	case f.Confidence != "" && r.Confidence != f.Confidence:
		return false
	case f.Locality != "" && r.Locality != f.Locality:
		return false
	case f.IssueType != "" && r.IssueType != f.IssueType:
		return false
	case f.City != "" && r.City != f.City:
		return false
	case f.IdentityHash != "" && r.ReporterIdentityHash != f.IdentityHash:
		return false
	case f.ExcludeID != "" && r.ID == f.ExcludeID:
		return false
	case f.EscalatedOnly && !r.EscalationFlag:
		return false
	case !f.CreatedFrom.IsZero() && r.CreatedAt.Before(f.CreatedFrom):
		return false
	case !f.CreatedTo.IsZero() && r.CreatedAt.After(f.CreatedTo):
		return false
	}
	return true
}
