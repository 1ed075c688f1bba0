package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/Subho98799/nagar/internal/clock"
	"github.com/Subho98799/nagar/internal/models"
)

type stubProvider struct {
	name  string
	calls int
	err   error
	block bool
}

func (s *stubProvider) Interpret(ctx context.Context, description, _, _ string) (*models.Interpretation, error) {
	s.calls++
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return &models.Interpretation{Category: "General", SeverityHint: "Low", Summary: description}, nil
}

func (s *stubProvider) Name() string  { return s.name }
func (s *stubProvider) Model() string { return s.name + "-model" }
func (s *stubProvider) Close() error  { return nil }

func TestKeywordProvider(t *testing.T) {
	got, err := NewKeywordProvider().Interpret(context.Background(),
		"Urgent: transformer sparking on Main Street. Kids play nearby.", "", "")
	if err != nil {
		t.Fatal(err)
	}
	want := &models.Interpretation{
		Category:     "Electricity",
		SeverityHint: "High",
		Keywords:     []string{"urgent", "transformer", "sparking", "main", "street"},
		Summary:      "Urgent: transformer sparking on Main Street",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestKeywordProviderDefaults(t *testing.T) {
	got, _ := NewKeywordProvider().Interpret(context.Background(), "Something odd", "", "")
	if got.Category != "General" || got.SeverityHint != "Low" {
		t.Errorf("got %s/%s, want General/Low", got.Category, got.SeverityHint)
	}
}

func TestMultiProviderFallsBack(t *testing.T) {
	failing := &stubProvider{name: "primary", err: errors.New("429 quota exceeded")}
	backup := &stubProvider{name: "backup"}
	client := NewMultiProvider([]Provider{failing, backup}, 3, zap.NewNop())

	interp, provider, err := client.Interpret(context.Background(), "pothole", "Pune", "Aundh")
	if err != nil {
		t.Fatal(err)
	}
	if provider.Name() != "backup" || interp.Summary != "pothole" {
		t.Errorf("got %s / %q", provider.Name(), interp.Summary)
	}

	// A rate-limit error switches the current provider immediately.
	if _, provider, _ := client.Interpret(context.Background(), "again", "", ""); provider.Name() != "backup" {
		t.Errorf("second call used %s, want backup", provider.Name())
	}
	if failing.calls != 1 {
		t.Errorf("primary called %d times, want 1", failing.calls)
	}
}

func TestMultiProviderAllFail(t *testing.T) {
	client := NewMultiProvider([]Provider{
		&stubProvider{name: "a", err: errors.New("boom")},
		&stubProvider{name: "b", err: errors.New("bang")},
	}, 3, zap.NewNop())
	if _, _, err := client.Interpret(context.Background(), "x", "", ""); err == nil || !strings.Contains(err.Error(), "bang") {
		t.Fatalf("err = %v, want wrapped last failure", err)
	}
}

func TestNewMultiProviderClientAlwaysHasKeywordFallback(t *testing.T) {
	// Gemini without a key fails to initialize and is skipped.
	client, err := NewMultiProviderClient(MultiProviderConfig{
		Providers: []ProviderConfig{{Type: ProviderGemini}},
	}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	_, provider, err := client.Interpret(context.Background(), "garbage dump overflowing", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if provider.Name() != string(ProviderKeyword) {
		t.Errorf("provider = %s, want keyword", provider.Name())
	}
}

func TestEnricherAnnotations(t *testing.T) {
	at := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	client := NewMultiProvider([]Provider{NewKeywordProvider()}, 1, zap.NewNop())
	e := NewEnricher(client, time.Second, clock.NewFixed(at), zap.NewNop())

	got, err := e.Enrich(context.Background(), &models.Report{ID: "r", Description: "Water pipeline leak"})
	if err != nil {
		t.Fatal(err)
	}
	if got[models.AnnotationClassifiedCategory] != "Water & Sanitation" {
		t.Errorf("category = %v", got[models.AnnotationClassifiedCategory])
	}
	if got[models.AnnotationProvider] != "keyword" || got[models.AnnotationEnrichedAt] != "2026-08-01T10:00:00Z" {
		t.Errorf("provenance = %v / %v", got[models.AnnotationProvider], got[models.AnnotationEnrichedAt])
	}
}

func TestEnricherTimesOut(t *testing.T) {
	client := NewMultiProvider([]Provider{&stubProvider{name: "slow", block: true}}, 1, zap.NewNop())
	e := NewEnricher(client, 20*time.Millisecond, clock.NewReal(), zap.NewNop())

	_, err := e.Enrich(context.Background(), &models.Report{ID: "r", Description: "x"})
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("err = %v, want timeout", err)
	}
}

func TestRateLimiterHonoursContext(t *testing.T) {
	rl := NewRateLimiter(1)
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := rl.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
