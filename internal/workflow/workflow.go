// Package workflow is the review status state machine. Status only moves
// forward one step at a time and every move is appended to the history.
package workflow

import (
	"strings"
	"time"

	"github.com/Subho98799/nagar/internal/models"
)

// CreationNote is the note on the history entry seeded at creation.
const CreationNote = "Report created"

var transitions = map[models.Status][]models.Status{
	models.StatusUnderReview: {models.StatusVerified},
	models.StatusVerified:    {models.StatusActionTaken},
	models.StatusActionTaken: {models.StatusClosed},
	models.StatusClosed:      {},
}

// Initial is the status of every new report.
func Initial() models.Status {
	return models.StatusUnderReview
}

// Allowed returns the statuses reachable from s in one step.
func Allowed(s models.Status) []models.Status {
	return append([]models.Status{}, transitions[s]...)
}

// IsTerminal reports whether s has no outgoing transitions.
func IsTerminal(s models.Status) bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// CanTransition reports whether from -> to is a legal single step.
func CanTransition(from, to models.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Seed initializes status and history for a freshly created report.
func Seed(r *models.Report, at time.Time) {
	r.Status = Initial()
	r.StatusHistory = []models.StatusChange{{
		To:        r.Status,
		Actor:     models.SystemActor(),
		Timestamp: at,
		Note:      CreationNote,
	}}
}

// Outcome says what Transition did.
type Outcome int

const (
	// Moved means status changed and one history entry was appended.
	Moved Outcome = iota
	// Unchanged means the report was already in the target status.
	Unchanged
)

// Transition moves r to target. Moving to the current status is a no-op that
// appends the note, if any, to reviewer notes instead of the status history.
// Any other illegal move returns *models.InvalidTransitionError and leaves r
// untouched.
func Transition(r *models.Report, target models.Status, actor models.Actor, note string, at time.Time) (Outcome, error) {
	if !target.Valid() {
		return Unchanged, &models.ValidationError{Field: "status", Message: "unknown status " + string(target)}
	}
	note = strings.TrimSpace(note)

	if r.Status == target {
		if note != "" {
			r.ReviewerNotes = append(r.ReviewerNotes, models.ReviewerNote{Text: note, Actor: actor, Timestamp: at})
			r.UpdatedAt = at
		}
		return Unchanged, nil
	}
	if !CanTransition(r.Status, target) {
		return Unchanged, &models.InvalidTransitionError{From: r.Status, To: target, Allowed: Allowed(r.Status)}
	}

	r.StatusHistory = append(r.StatusHistory, models.StatusChange{
		From:      r.Status,
		To:        target,
		Actor:     actor,
		Timestamp: at,
		Note:      note,
	})
	r.Status = target
	r.UpdatedAt = at
	return Moved, nil
}
