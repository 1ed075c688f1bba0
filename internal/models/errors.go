package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrReportNotFound = errors.New("report not found")
	// ErrConflict means a concurrent write changed the record first.
	ErrConflict = errors.New("concurrent modification")
)

// ValidationError rejects malformed input before any state is touched.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// DuplicateReportError is returned by the gate when a near-identical report exists.
type DuplicateReportError struct {
	ExistingID string
}

func (e *DuplicateReportError) Error() string {
	return fmt.Sprintf("duplicate of report %s", e.ExistingID)
}

// RateLimitedError is returned when a reporter exceeded the submission quota.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// InvalidTransitionError rejects a status change the workflow does not allow.
type InvalidTransitionError struct {
	From    Status
	To      Status
	Allowed []Status
}

func (e *InvalidTransitionError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		allowed[i] = string(s)
	}
	return fmt.Sprintf("invalid status transition %s -> %s (allowed: [%s])",
		e.From, e.To, strings.Join(allowed, ", "))
}
