package confidence

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/Subho98799/nagar/internal/models"
	"github.com/Subho98799/nagar/internal/repository"
)

var t0 = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

func add(t *testing.T, repo *repository.MemoryRepository, id, locality, issueType string, at time.Time) *models.Report {
	t.Helper()
	r := &models.Report{
		ID:          id,
		Description: "road blocked by fallen tree",
		IssueType:   issueType,
		City:        "Pune",
		Locality:    locality,
		Status:      models.StatusUnderReview,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	if err := repo.Create(context.Background(), r); err != nil {
		t.Fatalf("create %s: %v", id, err)
	}
	return r
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want Result
	}{
		{"single", Input{ClusterSize: 1, Locality: "Kothrud"},
			Result{models.ConfidenceLow, ReasonSingle}},
		{"pair", Input{ClusterSize: 2, Locality: "Kothrud"},
			Result{models.ConfidenceMedium, "Multiple similar reports detected (2 reports in Kothrud within 30 minutes)"}},
		{"three", Input{ClusterSize: 3, Locality: "Kothrud"},
			Result{models.ConfidenceMedium, "Multiple similar reports detected (3 reports in Kothrud within 30 minutes)"}},
		{"four", Input{ClusterSize: 4, Locality: "Kothrud"},
			Result{models.ConfidenceHigh, "Multiple corroborating reports detected (4 reports in Kothrud within 30 minutes)"}},
		{"media wins over count", Input{MediaCount: 2, ClusterSize: 5, Locality: "Kothrud"},
			Result{models.ConfidenceHigh, "Report includes media evidence (2 file(s))"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Decide(tt.in)); diff != "" {
				t.Errorf("Decide mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMediaOnlyReportIsHigh(t *testing.T) {
	repo := repository.NewMemoryRepository()
	r := add(t, repo, "solo", "Kothrud", "Traffic", t0)
	r.MediaRefs = []string{"https://cdn.example/p1.jpg"}

	e := NewEngine(repo, zap.NewNop())
	if _, err := e.Apply(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	if r.Confidence != models.ConfidenceHigh {
		t.Fatalf("confidence = %s, want HIGH", r.Confidence)
	}
	if r.ConfidenceReason != "Report includes media evidence (1 file(s))" {
		t.Errorf("reason = %q", r.ConfidenceReason)
	}
}

func TestFourthReportInWindowIsHigh(t *testing.T) {
	repo := repository.NewMemoryRepository()
	var last *models.Report
	for i := 0; i < 4; i++ {
		last = add(t, repo, fmt.Sprintf("r%d", i), "Kothrud", "Traffic", t0.Add(time.Duration(i)*8*time.Minute))
	}

	e := NewEngine(repo, zap.NewNop())
	res, err := e.Calculate(context.Background(), last)
	if err != nil {
		t.Fatal(err)
	}
	if res.Level != models.ConfidenceHigh {
		t.Fatalf("level = %s, want HIGH (%s)", res.Level, res.Reason)
	}
	want := "Multiple corroborating reports detected (4 reports in Kothrud within 30 minutes)"
	if res.Reason != want {
		t.Errorf("reason = %q, want %q", res.Reason, want)
	}
}

func TestClusterBoundaries(t *testing.T) {
	repo := repository.NewMemoryRepository()
	add(t, repo, "old", "Kothrud", "Traffic", t0.Add(-31*time.Minute))
	add(t, repo, "other-locality", "Baner", "Traffic", t0.Add(-time.Minute))
	add(t, repo, "other-category", "Kothrud", "Water", t0.Add(-time.Minute))
	add(t, repo, "case-insensitive", "Kothrud", "traffic", t0.Add(-20*time.Minute))
	add(t, repo, "after-window", "Kothrud", "Traffic", t0.Add(11*time.Minute))
	target := add(t, repo, "target", "Kothrud", "Traffic", t0)

	e := NewEngine(repo, zap.NewNop())
	ids, err := e.Cluster(context.Background(), target)
	if err != nil {
		t.Fatal(err)
	}
	// Anchor is case-insensitive (t0-20m), so the window closes at t0+10m.
	if diff := cmp.Diff([]string{"target", "case-insensitive"}, ids); diff != "" {
		t.Errorf("cluster mismatch (-want +got):\n%s", diff)
	}
}

func TestCategoryFallsBackToAIHint(t *testing.T) {
	repo := repository.NewMemoryRepository()
	a := add(t, repo, "a", "Kothrud", "", t0)
	a.AIMetadata = &models.AIMetadata{Annotations: map[string]any{models.AnnotationClassifiedCategory: "Power"}}
	if err := repo.Update(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	b := add(t, repo, "b", "Kothrud", "Power", t0.Add(time.Minute))

	size, err := NewEngine(repo, zap.NewNop()).ClusterSize(context.Background(), b)
	if err != nil {
		t.Fatal(err)
	}
	if size != 2 {
		t.Errorf("cluster size = %d, want 2", size)
	}
}

func TestUpgradeIsSticky(t *testing.T) {
	repo := repository.NewMemoryRepository()
	r := add(t, repo, "r", "Kothrud", "Traffic", t0)
	e := NewEngine(repo, zap.NewNop())

	Upgrade(r)
	changed, err := e.Apply(context.Background(), r)
	if err != nil {
		t.Fatal(err)
	}
	if changed || r.Confidence != models.ConfidenceHigh || r.ConfidenceReason != ReasonReviewerUpgraded {
		t.Fatalf("automatic apply overwrote upgrade: %s %q", r.Confidence, r.ConfidenceReason)
	}

	ClearOverride(r)
	if _, err := e.Apply(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	if r.Confidence != models.ConfidenceLow {
		t.Errorf("after clearing override confidence = %s, want LOW", r.Confidence)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	repo := repository.NewMemoryRepository()
	add(t, repo, "a", "Kothrud", "Traffic", t0)
	r := add(t, repo, "b", "Kothrud", "Traffic", t0.Add(time.Minute))
	e := NewEngine(repo, zap.NewNop())

	if _, err := e.Apply(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	first := r.Clone()
	changed, err := e.Apply(context.Background(), r)
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Error("second Apply reported a change")
	}
	if diff := cmp.Diff(first, r); diff != "" {
		t.Errorf("second Apply mutated report (-first +second):\n%s", diff)
	}
}
