package insights

import "strings"

// ScriptAdherence checks which expected script phrases appear in the
// transcript, case-insensitive. Score is the fraction of expected phrases
// found; an empty expectation list scores 1.
func ScriptAdherence(transcript string, expected []string) ScriptResult {
	if len(expected) == 0 {
		return ScriptResult{Score: 1}
	}

	lower := strings.ToLower(transcript)
	result := ScriptResult{}
	for _, phrase := range expected {
		if strings.Contains(lower, strings.ToLower(strings.TrimSpace(phrase))) {
			result.Matched = append(result.Matched, phrase)
		} else {
			result.Missed = append(result.Missed, phrase)
		}
	}
	result.Score = float64(len(result.Matched)) / float64(len(expected))
	return result
}
