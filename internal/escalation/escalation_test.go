package escalation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/Subho98799/nagar/internal/clock"
	"github.com/Subho98799/nagar/internal/models"
	"github.com/Subho98799/nagar/internal/repository"
)

var now = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

func TestDecide(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		name       string
		in         Input
		wantFlag   bool
		wantReason string
		wantFired  []string
	}{
		{
			name:      "nothing fires",
			in:        Input{PriorityScore: 40, Confidence: models.ConfidenceLow, Status: models.StatusUnderReview, IssueType: "Water"},
			wantFired: nil,
		},
		{
			name:       "priority threshold inclusive",
			in:         Input{PriorityScore: 70, Status: models.StatusUnderReview},
			wantFlag:   true,
			wantReason: "High priority score (70 >= 70)",
			wantFired:  []string{"priority"},
		},
		{
			name:       "high confidence locality",
			in:         Input{PriorityScore: 50, Confidence: models.ConfidenceHigh, Locality: "Kothrud", LocalityPeers: 5},
			wantFlag:   true,
			wantReason: "HIGH confidence + 5 reports in Kothrud",
			wantFired:  []string{"locality"},
		},
		{
			name:     "medium confidence locality does not fire",
			in:       Input{Confidence: models.ConfidenceMedium, Locality: "Kothrud", LocalityPeers: 9},
			wantFlag: false,
		},
		{
			name:       "verified persistence",
			in:         Input{Status: models.StatusVerified, Age: 49 * time.Hour},
			wantFlag:   true,
			wantReason: "VERIFIED issue persisting for 49.0 hours",
			wantFired:  []string{"persistence"},
		},
		{
			name:     "exactly 48h is not beyond",
			in:       Input{Status: models.StatusVerified, Age: 48 * time.Hour},
			wantFlag: false,
		},
		{
			name:       "first rule names the reason, all are recorded",
			in:         Input{PriorityScore: 90, Status: models.StatusVerified, Age: 72 * time.Hour, IssueType: "Public Safety"},
			wantFlag:   true,
			wantReason: "High priority score (90 >= 70)",
			wantFired:  []string{"priority", "persistence", "safety"},
		},
		{
			name:       "safety alone",
			in:         Input{PriorityScore: 10, IssueType: "Safety Concern"},
			wantFlag:   true,
			wantReason: "Safety-critical issue type: Safety Concern",
			wantFired:  []string{"safety"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(cfg, tt.in)
			if got.Flag != tt.wantFlag || got.Reason != tt.wantReason {
				t.Errorf("Decide = (%v, %q), want (%v, %q)", got.Flag, got.Reason, tt.wantFlag, tt.wantReason)
			}
			if diff := cmp.Diff(tt.wantFired, got.Fired); tt.wantFlag && diff != "" {
				t.Errorf("fired rules mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func openReport(id string, status models.Status, at time.Time) *models.Report {
	score := 20
	return &models.Report{
		ID: id, Description: "x", IssueType: "Traffic", City: "Pune", Locality: "Kothrud",
		Confidence: models.ConfidenceHigh, Status: status, PriorityScore: &score,
		CreatedAt: at, UpdatedAt: at,
	}
}

func TestApplyCountsPeersExcludingSelf(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	target := openReport("target", models.StatusUnderReview, now)
	if err := repo.Create(ctx, target); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		if err := repo.Create(ctx, openReport(fmt.Sprintf("p%d", i), models.StatusUnderReview, now)); err != nil {
			t.Fatal(err)
		}
	}

	e := NewEvaluator(repo, clock.NewFixed(now), DefaultConfig(), zap.NewNop())
	if _, err := e.Apply(ctx, target); err != nil {
		t.Fatal(err)
	}
	if target.EscalationFlag {
		t.Fatalf("4 peers should not escalate, reason %q", target.EscalationReason)
	}
	if len(target.EscalationHistory) != 0 {
		t.Errorf("history appended without a flip: %+v", target.EscalationHistory)
	}

	if err := repo.Create(ctx, openReport("p4", models.StatusVerified, now)); err != nil {
		t.Fatal(err)
	}
	changed, err := e.Apply(ctx, target)
	if err != nil {
		t.Fatal(err)
	}
	if !changed || !target.EscalationFlag {
		t.Fatalf("5 peers should escalate, changed=%v flag=%v", changed, target.EscalationFlag)
	}
	want := []models.EscalationChange{{
		FromFlag: false, ToFlag: true, Actor: models.SystemActor(), Timestamp: now,
		Reason: "HIGH confidence + 5 reports in Kothrud",
	}}
	if diff := cmp.Diff(want, target.EscalationHistory); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}

	changed, err = e.Apply(ctx, target)
	if err != nil || changed {
		t.Errorf("re-evaluation should be idempotent, changed=%v err=%v", changed, err)
	}
	if len(target.EscalationHistory) != 1 {
		t.Errorf("history grew on idempotent apply")
	}
}

func TestManualDecisionIsSticky(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	r := openReport("r", models.StatusUnderReview, now)
	r.IssueType = "Safety"
	if err := repo.Create(ctx, r); err != nil {
		t.Fatal(err)
	}
	e := NewEvaluator(repo, clock.NewFixed(now), DefaultConfig(), zap.NewNop())
	if _, err := e.Apply(ctx, r); err != nil {
		t.Fatal(err)
	}
	if !r.EscalationFlag {
		t.Fatal("safety report should escalate")
	}

	reviewer, _ := models.Reviewer("rev-1")
	SetManual(r, false, reviewer, "handled by ward office", now.Add(time.Hour))
	if _, err := e.Apply(ctx, r); err != nil {
		t.Fatal(err)
	}
	if r.EscalationFlag {
		t.Fatal("automatic apply overrode the reviewer's dismissal")
	}
	last := r.EscalationHistory[len(r.EscalationHistory)-1]
	if !last.Actor.Equal(reviewer) || last.ToFlag || last.Reason != "handled by ward office" {
		t.Errorf("unexpected manual entry %+v", last)
	}

	ClearOverride(r)
	if _, err := e.Apply(ctx, r); err != nil {
		t.Fatal(err)
	}
	if !r.EscalationFlag {
		t.Error("explicit re-evaluation should restore the automatic flag")
	}
	if n := len(r.EscalationHistory); n != 3 {
		t.Errorf("history length = %d, want 3", n)
	}
}
