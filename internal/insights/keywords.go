package insights

import (
	"regexp"
	"strings"
)

// MatchKeywords scans the transcript against every active library.
// Matching is case-insensitive. Exact-match entries require whole-word
// boundaries; non-exact entries count substring occurrences, so "refund"
// also matches inside "refunds".
func MatchKeywords(transcript string, libraries []KeywordLibrary) KeywordSummary {
	lower := strings.ToLower(transcript)
	summary := KeywordSummary{CategoryCounts: map[KeywordCategory]int{}}

	for _, lib := range libraries {
		if !lib.Active {
			continue
		}
		for _, entry := range lib.Entries {
			phrase := strings.ToLower(strings.TrimSpace(entry.Phrase))
			if phrase == "" {
				continue
			}
			count := countOccurrences(lower, phrase, entry.ExactMatch)
			if count == 0 {
				continue
			}
			summary.Matches = append(summary.Matches, KeywordMatch{
				LibraryID: lib.ID,
				Category:  lib.Category,
				Phrase:    entry.Phrase,
				Count:     count,
				Weight:    entry.Weight,
			})
			summary.CategoryCounts[lib.Category] += count
		}
	}
	return summary
}

func countOccurrences(lower, phrase string, exact bool) int {
	if exact {
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(phrase) + `\b`)
		if err != nil {
			return 0
		}
		return len(re.FindAllStringIndex(lower, -1))
	}
	return strings.Count(lower, phrase)
}
