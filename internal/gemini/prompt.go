package gemini

import "fmt"

// Categories the model may answer with.
var Categories = []string{
	"Traffic & Roads",
	"Water & Sanitation",
	"Electricity",
	"Waste Management",
	"Healthcare",
	"Public Safety",
	"Infrastructure",
	"General",
}

const SystemInstruction = `You help interpret citizen reports from Indian cities.
You only classify the issue, suggest a severity, extract keywords and write a neutral summary.
Never confirm or verify a report, never judge whether it is true, never predict events
and never suggest actions or escalations. Answer with JSON only.`

// BuildPrompt renders the per-report prompt.
func BuildPrompt(description, city, locality string) string {
	return fmt.Sprintf(`REPORT
City: %s
Locality: %s
Description: %s

Respond with:
{
  "ai_classified_category": "<one of: Traffic & Roads, Water & Sanitation, Electricity, Waste Management, Healthcare, Public Safety, Infrastructure, General>",
  "severity_hint": "<one of: Low, Medium, High>",
  "keywords": ["<keyword>", "..."],
  "summary": "<one or two neutral sentences>"
}`, city, locality, description)
}

func validCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}
