package gemini

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Subho98799/nagar/internal/models"
)

func TestParseResponse(t *testing.T) {
	raw := "```json\n{\"ai_classified_category\":\"Electricity\",\"severity_hint\":\"High\"," +
		"\"keywords\":[\"transformer\",\"sparks\"],\"summary\":\"Transformer sparking near the park.\"}\n```"

	got, err := ParseResponse(raw)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	want := &models.Interpretation{
		Category:     "Electricity",
		SeverityHint: "High",
		Keywords:     []string{"transformer", "sparks"},
		Summary:      "Transformer sparking near the park.",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestParseResponseRejects(t *testing.T) {
	for _, raw := range []string{
		"not json",
		`{"ai_classified_category":"Aliens","severity_hint":"Low"}`,
	} {
		if _, err := ParseResponse(raw); err == nil {
			t.Errorf("ParseResponse(%q) succeeded, want error", raw)
		}
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(Config{}, nil); err == nil {
		t.Fatal("expected error without API key")
	}
}

func TestBuildPromptIncludesReport(t *testing.T) {
	p := BuildPrompt("Tree fell on wire", "Pune", "Aundh")
	for _, want := range []string{"Tree fell on wire", "Pune", "Aundh", "Public Safety"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
