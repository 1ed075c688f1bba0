package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestActorJSONRoundTrip(t *testing.T) {
	rev, err := Reviewer("rev-42")
	if err != nil {
		t.Fatalf("Reviewer: %v", err)
	}
	for _, a := range []Actor{SystemActor(), rev} {
		data, err := json.Marshal(a)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		var got Actor
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if !got.Equal(a) {
			t.Errorf("round trip of %s gave %s", a, got)
		}
	}
	if string(mustJSON(t, SystemActor())) != `"system"` {
		t.Errorf("system actor should marshal as \"system\"")
	}
}

func TestReviewerRejectsReservedAndEmpty(t *testing.T) {
	for _, id := range []string{"", "  ", "system", "SYSTEM"} {
		_, err := Reviewer(id)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("Reviewer(%q): expected ValidationError, got %v", id, err)
		}
	}
}

func TestCategoryFallsBackToHint(t *testing.T) {
	r := &Report{IssueType: "Water"}
	if got := r.Category(); got != "Water" {
		t.Fatalf("Category = %q, want Water", got)
	}

	r = &Report{AIMetadata: &AIMetadata{Annotations: map[string]any{AnnotationClassifiedCategory: "Traffic"}}}
	if got := r.Category(); got != "Traffic" {
		t.Fatalf("Category = %q, want Traffic", got)
	}

	r.AIMetadata.Override = &CategoryOverride{Category: "Power"}
	if got := r.Category(); got != "Power" {
		t.Fatalf("Category = %q, want override Power", got)
	}

	if got := (&Report{}).Category(); got != "" {
		t.Fatalf("Category = %q, want empty", got)
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	score := 40
	orig := &Report{
		ID:            "r1",
		MediaRefs:     []string{"a"},
		PriorityScore: &score,
		Coordinates:   &Coordinates{Lat: 1, Lon: 2},
		StatusHistory: []StatusChange{{To: StatusUnderReview, Timestamp: time.Unix(0, 0)}},
		AIMetadata:    &AIMetadata{Annotations: map[string]any{"k": "v"}},
	}
	c := orig.Clone()
	c.MediaRefs[0] = "b"
	*c.PriorityScore = 99
	c.Coordinates.Lat = 9
	c.StatusHistory = append(c.StatusHistory, StatusChange{To: StatusVerified})
	c.AIMetadata.Annotations["k"] = "changed"

	if orig.MediaRefs[0] != "a" || *orig.PriorityScore != 40 || orig.Coordinates.Lat != 1 ||
		len(orig.StatusHistory) != 1 || orig.AIMetadata.Annotations["k"] != "v" {
		t.Fatalf("clone aliased original: %+v", orig)
	}
}

func TestInvalidTransitionMessage(t *testing.T) {
	err := &InvalidTransitionError{From: StatusUnderReview, To: StatusClosed, Allowed: []Status{StatusVerified}}
	want := "invalid status transition UNDER_REVIEW -> CLOSED (allowed: [VERIFIED])"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return data
}
