package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"callaudit-platform/internal/provider"
)

const sentimentSystemPrompt = `You classify the sentiment of customer-service call transcripts.
Respond with a single JSON object and nothing else:
{"label": "positive" | "neutral" | "negative" | "mixed", "score": <number in [-1, 1]>}`

// mixedThreshold is the count of both positive and negative lexicon hits
// above which the fallback scorer reports "mixed" instead of the net label.
const mixedThreshold = 2

var positiveWords = []string{
	"thank", "thanks", "great", "perfect", "appreciate", "helpful", "wonderful",
	"excellent", "resolved", "happy", "glad", "pleased", "awesome", "fantastic",
}

var negativeWords = []string{
	"angry", "frustrated", "terrible", "awful", "unacceptable", "complaint",
	"cancel", "refund", "worst", "disappointed", "useless", "annoyed", "upset",
	"ridiculous",
}

// ScoreSentiment asks the given backend to classify the transcript. p may be
// nil, and any provider or parse failure falls back to the deterministic
// lexicon scorer, so this path degrades instead of erroring.
func ScoreSentiment(ctx context.Context, p provider.Provider, opts provider.Options, transcript string) (SentimentLabel, float64) {
	if p != nil {
		if label, score, err := sentimentFromProvider(ctx, p, opts, transcript); err == nil {
			return label, score
		}
	}
	return lexiconSentiment(transcript)
}

func sentimentFromProvider(ctx context.Context, p provider.Provider, opts provider.Options, transcript string) (SentimentLabel, float64, error) {
	raw, err := p.RunCompletion(ctx, sentimentSystemPrompt, transcript, opts)
	if err != nil {
		return "", 0, err
	}

	var out struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(trimToJSON(raw)), &out); err != nil {
		return "", 0, fmt.Errorf("decode sentiment response: %w", err)
	}

	label := SentimentLabel(strings.ToLower(strings.TrimSpace(out.Label)))
	switch label {
	case SentimentPositive, SentimentNeutral, SentimentNegative, SentimentMixed:
	default:
		return "", 0, fmt.Errorf("unknown sentiment label %q", out.Label)
	}
	return label, clampScore(out.Score), nil
}

// lexiconSentiment is the zero-dependency fallback: net word counts mapped to
// a score in [-1, 1], labeled with thresholds at +-0.3 and "mixed" when both
// sides occur more than mixedThreshold times.
func lexiconSentiment(transcript string) (SentimentLabel, float64) {
	lower := strings.ToLower(transcript)

	var pos, neg int
	for _, w := range positiveWords {
		pos += strings.Count(lower, w)
	}
	for _, w := range negativeWords {
		neg += strings.Count(lower, w)
	}

	var score float64
	if total := pos + neg; total > 0 {
		score = clampScore(float64(pos-neg) / float64(total))
	}

	switch {
	case pos > mixedThreshold && neg > mixedThreshold:
		return SentimentMixed, score
	case score >= 0.3:
		return SentimentPositive, score
	case score <= -0.3:
		return SentimentNegative, score
	default:
		return SentimentNeutral, score
	}
}

var speakerTurn = regexp.MustCompile(`(?m)^\s*[A-Za-z][A-Za-z ]{0,24}:`)

// SentimentTimeline scores each speaker turn with the lexicon scorer. A
// transcript without speaker-turn markers yields no timeline.
func SentimentTimeline(transcript string) []SentimentPoint {
	turns := splitTurns(transcript)
	if len(turns) < 2 {
		return nil
	}
	points := make([]SentimentPoint, 0, len(turns))
	for i, turn := range turns {
		label, score := lexiconSentiment(turn)
		points = append(points, SentimentPoint{Segment: i, Label: label, Score: score})
	}
	return points
}

func splitTurns(transcript string) []string {
	marks := speakerTurn.FindAllStringIndex(transcript, -1)
	if len(marks) == 0 {
		return nil
	}
	turns := make([]string, 0, len(marks))
	for i, m := range marks {
		end := len(transcript)
		if i+1 < len(marks) {
			end = marks[i+1][0]
		}
		if turn := strings.TrimSpace(transcript[m[0]:end]); turn != "" {
			turns = append(turns, turn)
		}
	}
	return turns
}

// trimToJSON isolates the outermost object so fenced or prose-wrapped
// responses still decode.
func trimToJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func clampScore(s float64) float64 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
