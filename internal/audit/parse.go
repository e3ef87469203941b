package audit

import (
	"encoding/json"
	"fmt"
	"strings"
)

// modelResponse is the JSON shape requested from the language model. The
// model's output is untrusted input: fences are stripped, the shape is
// re-validated, and the overall score is always recomputed locally rather
// than taken from the model.
type modelResponse struct {
	Summary  string         `json:"summary"`
	Verdicts []modelVerdict `json:"verdicts"`
}

type modelVerdict struct {
	CriterionID    string `json:"criterion_id"`
	Result         string `json:"result"`
	Explanation    string `json:"explanation"`
	Recommendation string `json:"recommendation"`
}

// parseResponse validates raw model output into verdicts and a summary.
// Any structural problem is ErrInvalidResponse.
func parseResponse(raw string) (modelResponse, error) {
	cleaned := stripFences(raw)
	if cleaned == "" {
		return modelResponse{}, fmt.Errorf("%w: empty output", ErrInvalidResponse)
	}

	var parsed modelResponse
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return modelResponse{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(parsed.Verdicts) == 0 {
		return modelResponse{}, fmt.Errorf("%w: no verdicts", ErrInvalidResponse)
	}
	for i, v := range parsed.Verdicts {
		if v.CriterionID == "" {
			return modelResponse{}, fmt.Errorf("%w: verdict %d has no criterion id", ErrInvalidResponse, i)
		}
		if !VerdictResult(normalizeResult(v.Result)).Valid() {
			return modelResponse{}, fmt.Errorf("%w: verdict %d has result %q", ErrInvalidResponse, i, v.Result)
		}
	}
	return parsed, nil
}

func normalizeResult(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// stripFences removes surrounding Markdown code-fence markup and isolates the
// outermost JSON object. Models occasionally wrap JSON in ```json blocks or
// prepend prose despite the response-format hint.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
