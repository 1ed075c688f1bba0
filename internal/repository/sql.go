package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Subho98799/nagar/internal/models"
)

// SQLStore persists reports through sqlx. The same queries run on PostgreSQL
// (lib/pq) and SQLite (modernc); placeholders go through Rebind.
type SQLStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewReportRepository wraps an open database handle.
func NewReportRepository(db *sqlx.DB, logger *zap.Logger) *SQLStore {
	return &SQLStore{db: db, logger: logger}
}

const reportColumns = `id, version, description, issue_type, city, locality, lat, lon,
	reporter_identity_hash, media_refs, confidence, confidence_reason, confidence_overridden,
	status, status_history, reviewer_notes, priority_score, priority_reason,
	escalation_flag, escalation_reason, escalation_overridden, escalation_history,
	ai_metadata, created_at, updated_at`

type reportRow struct {
	ID                   string                                `db:"id"`
	Version              int64                                 `db:"version"`
	Description          string                                `db:"description"`
	IssueType            string                                `db:"issue_type"`
	City                 string                                `db:"city"`
	Locality             string                                `db:"locality"`
	Lat                  sql.NullFloat64                       `db:"lat"`
	Lon                  sql.NullFloat64                       `db:"lon"`
	ReporterIdentityHash string                                `db:"reporter_identity_hash"`
	MediaRefs            jsonColumn[[]string]                  `db:"media_refs"`
	Confidence           string                                `db:"confidence"`
	ConfidenceReason     string                                `db:"confidence_reason"`
	ConfidenceOverridden bool                                  `db:"confidence_overridden"`
	Status               string                                `db:"status"`
	StatusHistory        jsonColumn[[]models.StatusChange]     `db:"status_history"`
	ReviewerNotes        jsonColumn[[]models.ReviewerNote]     `db:"reviewer_notes"`
	PriorityScore        sql.NullInt64                         `db:"priority_score"`
	PriorityReason       string                                `db:"priority_reason"`
	EscalationFlag       bool                                  `db:"escalation_flag"`
	EscalationReason     string                                `db:"escalation_reason"`
	EscalationOverridden bool                                  `db:"escalation_overridden"`
	EscalationHistory    jsonColumn[[]models.EscalationChange] `db:"escalation_history"`
	AIMetadata           jsonColumn[*models.AIMetadata]        `db:"ai_metadata"`
	CreatedAt            dbTime                                `db:"created_at"`
	UpdatedAt            dbTime                                `db:"updated_at"`
}

func toRow(r *models.Report) reportRow {
	row := reportRow{
		ID:                   r.ID,
		Version:              r.Version,
		Description:          r.Description,
		IssueType:            r.IssueType,
		City:                 r.City,
		Locality:             r.Locality,
		ReporterIdentityHash: r.ReporterIdentityHash,
		MediaRefs:            jsonColumn[[]string]{V: r.MediaRefs},
		Confidence:           string(r.Confidence),
		ConfidenceReason:     r.ConfidenceReason,
		ConfidenceOverridden: r.ConfidenceOverridden,
		Status:               string(r.Status),
		StatusHistory:        jsonColumn[[]models.StatusChange]{V: r.StatusHistory},
		ReviewerNotes:        jsonColumn[[]models.ReviewerNote]{V: r.ReviewerNotes},
		PriorityReason:       r.PriorityReason,
		EscalationFlag:       r.EscalationFlag,
		EscalationReason:     r.EscalationReason,
		EscalationOverridden: r.EscalationOverridden,
		EscalationHistory:    jsonColumn[[]models.EscalationChange]{V: r.EscalationHistory},
		AIMetadata:           jsonColumn[*models.AIMetadata]{V: r.AIMetadata},
		CreatedAt:            dbTime(r.CreatedAt),
		UpdatedAt:            dbTime(r.UpdatedAt),
	}
	if r.Coordinates != nil {
		row.Lat = sql.NullFloat64{Float64: r.Coordinates.Lat, Valid: true}
		row.Lon = sql.NullFloat64{Float64: r.Coordinates.Lon, Valid: true}
	}
	if r.PriorityScore != nil {
		row.PriorityScore = sql.NullInt64{Int64: int64(*r.PriorityScore), Valid: true}
	}
	return row
}

func (row reportRow) toReport() *models.Report {
	r := &models.Report{
		ID:                   row.ID,
		Version:              row.Version,
		Description:          row.Description,
		IssueType:            row.IssueType,
		City:                 row.City,
		Locality:             row.Locality,
		ReporterIdentityHash: row.ReporterIdentityHash,
		MediaRefs:            row.MediaRefs.V,
		Confidence:           models.Confidence(row.Confidence),
		ConfidenceReason:     row.ConfidenceReason,
		ConfidenceOverridden: row.ConfidenceOverridden,
		Status:               models.Status(row.Status),
		StatusHistory:        row.StatusHistory.V,
		ReviewerNotes:        row.ReviewerNotes.V,
		PriorityReason:       row.PriorityReason,
		EscalationFlag:       row.EscalationFlag,
		EscalationReason:     row.EscalationReason,
		EscalationOverridden: row.EscalationOverridden,
		EscalationHistory:    row.EscalationHistory.V,
		AIMetadata:           row.AIMetadata.V,
		CreatedAt:            time.Time(row.CreatedAt),
		UpdatedAt:            time.Time(row.UpdatedAt),
	}
	if row.Lat.Valid && row.Lon.Valid {
		r.Coordinates = &models.Coordinates{Lat: row.Lat.Float64, Lon: row.Lon.Float64}
	}
	if row.PriorityScore.Valid {
		score := int(row.PriorityScore.Int64)
		r.PriorityScore = &score
	}
	if r.MediaRefs == nil {
		r.MediaRefs = []string{}
	}
	return r
}

func (s *SQLStore) Create(ctx context.Context, r *models.Report) error {
	r.Version = 1
	query := `INSERT INTO reports (` + reportColumns + `) VALUES (
		:id, :version, :description, :issue_type, :city, :locality, :lat, :lon,
		:reporter_identity_hash, :media_refs, :confidence, :confidence_reason, :confidence_overridden,
		:status, :status_history, :reviewer_notes, :priority_score, :priority_reason,
		:escalation_flag, :escalation_reason, :escalation_overridden, :escalation_history,
		:ai_metadata, :created_at, :updated_at)`

	if _, err := s.db.NamedExecContext(ctx, query, toRow(r)); err != nil {
		s.logger.Error("Failed to insert report", zap.String("report_id", r.ID), zap.Error(err))
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (*models.Report, error) {
	var row reportRow
	query := s.db.Rebind(`SELECT ` + reportColumns + ` FROM reports WHERE id = ?`)
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrReportNotFound
		}
		s.logger.Error("Failed to get report", zap.String("report_id", id), zap.Error(err))
		return nil, fmt.Errorf("get report: %w", err)
	}
	return row.toReport(), nil
}

func (s *SQLStore) Update(ctx context.Context, r *models.Report) error {
	query := `UPDATE reports SET
		description = :description, issue_type = :issue_type, city = :city, locality = :locality,
		lat = :lat, lon = :lon, reporter_identity_hash = :reporter_identity_hash,
		media_refs = :media_refs, confidence = :confidence, confidence_reason = :confidence_reason,
		confidence_overridden = :confidence_overridden, status = :status,
		status_history = :status_history, reviewer_notes = :reviewer_notes,
		priority_score = :priority_score, priority_reason = :priority_reason,
		escalation_flag = :escalation_flag, escalation_reason = :escalation_reason,
		escalation_overridden = :escalation_overridden, escalation_history = :escalation_history,
		ai_metadata = :ai_metadata, updated_at = :updated_at, version = version + 1
		WHERE id = :id AND version = :version`

	res, err := s.db.NamedExecContext(ctx, query, toRow(r))
	if err != nil {
		s.logger.Error("Failed to update report", zap.String("report_id", r.ID), zap.Error(err))
		return fmt.Errorf("update report: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	if n == 0 {
		var exists int
		check := s.db.Rebind(`SELECT COUNT(1) FROM reports WHERE id = ?`)
		if err := s.db.GetContext(ctx, &exists, check, r.ID); err != nil {
			return fmt.Errorf("update report: %w", err)
		}
		if exists == 0 {
			return models.ErrReportNotFound
		}
		return models.ErrConflict
	}
	r.Version++
	return nil
}

func (s *SQLStore) List(ctx context.Context, f Filter) ([]*models.Report, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		where = append(where, cond)
		args = append(args, arg)
	}
	if f.Status != "" {
		add("status = ?", string(f.Status))
	}
	if f.ExcludeStatus != "" {
		add("status <> ?", string(f.ExcludeStatus))
	}
	if f.Confidence != "" {
		add("confidence = ?", string(f.Confidence))
	}
	if f.Locality != "" {
		add("locality = ?", f.Locality)
	}
	if f.IssueType != "" {
		add("issue_type = ?", f.IssueType)
	}
	if f.City != "" {
		add("city = ?", f.City)
	}
	if f.IdentityHash != "" {
		add("reporter_identity_hash = ?", f.IdentityHash)
	}
	if f.ExcludeID != "" {
		add("id <> ?", f.ExcludeID)
	}
	if f.EscalatedOnly {
		add("escalation_flag = ?", true)
	}
	if !f.CreatedFrom.IsZero() {
		add("created_at >= ?", dbTime(f.CreatedFrom))
	}
	if !f.CreatedTo.IsZero() {
		add("created_at <= ?", dbTime(f.CreatedTo))
	}

	query := `SELECT ` + reportColumns + ` FROM reports`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}

	var rows []reportRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		s.logger.Error("Failed to list reports", zap.Error(err))
		return nil, fmt.Errorf("list reports: %w", err)
	}
	out := make([]*models.Report, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toReport())
	}
	return out, nil
}

// jsonColumn stores V as a JSON document (JSONB on PostgreSQL, TEXT on SQLite).
type jsonColumn[T any] struct {
	V T
}

func (c jsonColumn[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(c.V)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (c *jsonColumn[T]) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported json column type %T", src)
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, &c.V)
}

// dbTimeLayout is fixed width so TEXT columns on SQLite sort chronologically.
const dbTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type dbTime time.Time

func (t dbTime) Value() (driver.Value, error) {
	return time.Time(t).UTC().Format(dbTimeLayout), nil
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*t = dbTime(v.UTC())
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case nil:
		*t = dbTime(time.Time{})
	default:
		return fmt.Errorf("unsupported time column type %T", src)
	}
	return nil
}

func (t *dbTime) parse(s string) error {
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("parse time %q: %w", s, err)
	}
	*t = dbTime(parsed.UTC())
	return nil
}
