package models

import (
	"strings"
	"time"
)

// UnknownCity is stored when no city can be derived for a report.
const UnknownCity = "UNKNOWN"

// Confidence is the corroboration level of a report.
type Confidence string

const (
	ConfidenceLow    Confidence = "LOW"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
)

// Valid reports whether c is one of the known levels.
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return true
	}
	return false
}

// Status is the review status of a report.
type Status string

const (
	StatusUnderReview Status = "UNDER_REVIEW"
	StatusVerified    Status = "VERIFIED"
	StatusActionTaken Status = "ACTION_TAKEN"
	StatusClosed      Status = "CLOSED"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusUnderReview, StatusVerified, StatusActionTaken, StatusClosed:
		return true
	}
	return false
}

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// StatusChange is one entry of a report's status history.
type StatusChange struct {
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
}

// ReviewerNote is an advisory annotation left by a reviewer.
type ReviewerNote struct {
	Text      string    `json:"text"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
}

// EscalationChange records a flip (or manual confirmation) of the escalation flag.
type EscalationChange struct {
	FromFlag  bool      `json:"from_flag"`
	ToFlag    bool      `json:"to_flag"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
}

// Report is a single citizen-submitted incident record.
//
// Derived fields (Confidence*, Priority*, Escalation*) are only written by the
// engines and by reviewer overrides; IssueType is never rewritten after creation.
type Report struct {
	ID                   string       `json:"id"`
	Version              int64        `json:"version"`
	Description          string       `json:"description"`
	IssueType            string       `json:"issue_type"`
	City                 string       `json:"city"`
	Locality             string       `json:"locality,omitempty"`
	Coordinates          *Coordinates `json:"coordinates,omitempty"`
	ReporterIdentityHash string       `json:"reporter_identity_hash,omitempty"`
	MediaRefs            []string     `json:"media_refs"`

	Confidence           Confidence `json:"confidence"`
	ConfidenceReason     string     `json:"confidence_reason"`
	ConfidenceOverridden bool       `json:"confidence_overridden"`

	Status        Status         `json:"status"`
	StatusHistory []StatusChange `json:"status_history"`
	ReviewerNotes []ReviewerNote `json:"reviewer_notes"`

	PriorityScore  *int   `json:"priority_score,omitempty"`
	PriorityReason string `json:"priority_reason,omitempty"`

	EscalationFlag       bool               `json:"escalation_flag"`
	EscalationReason     string             `json:"escalation_reason,omitempty"`
	EscalationOverridden bool               `json:"escalation_overridden"`
	EscalationHistory    []EscalationChange `json:"escalation_history"`

	AIMetadata *AIMetadata `json:"ai_metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasMedia reports whether any media reference is attached.
func (r *Report) HasMedia() bool {
	return len(r.MediaRefs) > 0
}

// Category is the clustering/scoring category: the user-selected issue type,
// falling back to the advisory AI hint only when the user left it blank.
func (r *Report) Category() string {
	if t := strings.TrimSpace(r.IssueType); t != "" {
		return t
	}
	return r.AIMetadata.CategoryHint()
}

// Age returns how long the report has existed at now.
func (r *Report) Age(now time.Time) time.Duration {
	if now.Before(r.CreatedAt) {
		return 0
	}
	return now.Sub(r.CreatedAt)
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	c := *r
	if r.Coordinates != nil {
		coords := *r.Coordinates
		c.Coordinates = &coords
	}
	if r.PriorityScore != nil {
		score := *r.PriorityScore
		c.PriorityScore = &score
	}
	c.MediaRefs = append([]string{}, r.MediaRefs...)
	c.StatusHistory = append([]StatusChange{}, r.StatusHistory...)
	c.ReviewerNotes = append([]ReviewerNote{}, r.ReviewerNotes...)
	c.EscalationHistory = append([]EscalationChange{}, r.EscalationHistory...)
	c.AIMetadata = r.AIMetadata.Clone()
	return &c
}
