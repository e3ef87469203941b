package audit

import (
	"fmt"
	"strings"

	"callaudit-platform/internal/rubric"
)

const systemPrompt = `You are a strict quality-assurance auditor for customer-service calls.
Evaluate the transcript against every rubric criterion and respond with ONLY a JSON object of this exact shape:
{
  "summary": "two or three sentences summarizing call quality",
  "verdicts": [
    {"criterion_id": "...", "result": "PASS|PARTIAL|FAIL", "explanation": "...", "recommendation": "..."}
  ]
}
Every criterion must receive exactly one verdict. Use PARTIAL when the agent attempted but did not fully meet a criterion. Keep explanations specific to the transcript. Leave recommendation empty for PASS verdicts.`

// buildUserPrompt lays out the ordered criteria list followed by the full
// transcript text.
func buildUserPrompt(t rubric.Template, transcript string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rubric %q (version %d) criteria, in order:\n", t.Name, t.Version)
	for i, c := range t.Criteria {
		fmt.Fprintf(&b, "%d. id=%s name=%q", i+1, c.ID, c.Name)
		if c.Description != "" {
			fmt.Fprintf(&b, ": %s", c.Description)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nCall transcript:\n\"\"\"\n")
	b.WriteString(transcript)
	b.WriteString("\n\"\"\"\n")
	return b.String()
}
