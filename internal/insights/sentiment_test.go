package insights

import (
	"context"
	"errors"
	"testing"

	"callaudit-platform/internal/provider"
)

type stubProvider struct {
	response string
	err      error
}

func (s stubProvider) Name() string                               { return "stub" }
func (s stubProvider) Model() string                              { return "stub-model" }
func (s stubProvider) CheckAvailability(ctx context.Context) bool { return true }
func (s stubProvider) RunCompletion(ctx context.Context, sys, user string, opts provider.Options) (string, error) {
	return s.response, s.err
}

func TestLexiconSentiment(t *testing.T) {
	tests := []struct {
		name       string
		transcript string
		label      SentimentLabel
	}{
		{"positive", "thank you, this was great and very helpful", SentimentPositive},
		{"negative", "this is terrible and unacceptable, I want to cancel", SentimentNegative},
		{"neutral", "please confirm the account number on file", SentimentNeutral},
		{"mixed", "thanks thanks thanks but cancel cancel cancel", SentimentMixed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, score := lexiconSentiment(tt.transcript)
			if label != tt.label {
				t.Fatalf("expected %s, got %s (score %v)", tt.label, label, score)
			}
			if score < -1 || score > 1 {
				t.Fatalf("score out of bounds: %v", score)
			}
		})
	}
}

func TestLexiconSentiment_Deterministic(t *testing.T) {
	transcript := "thank you, but I am frustrated and disappointed"
	label0, score0 := lexiconSentiment(transcript)
	for i := 0; i < 50; i++ {
		label, score := lexiconSentiment(transcript)
		if label != label0 || score != score0 {
			t.Fatalf("nondeterministic result on run %d", i)
		}
	}
}

func TestScoreSentiment_ProviderResponse(t *testing.T) {
	p := stubProvider{response: "```json\n{\"label\": \"NEGATIVE\", \"score\": -0.8}\n```"}
	label, score := ScoreSentiment(context.Background(), p, provider.Options{}, "whatever")
	if label != SentimentNegative || score != -0.8 {
		t.Fatalf("got %s/%v", label, score)
	}
}

func TestScoreSentiment_ClampsProviderScore(t *testing.T) {
	p := stubProvider{response: `{"label":"positive","score":3.5}`}
	_, score := ScoreSentiment(context.Background(), p, provider.Options{}, "whatever")
	if score != 1 {
		t.Fatalf("expected clamp to 1, got %v", score)
	}
}

func TestScoreSentiment_FallsBackOnProviderError(t *testing.T) {
	p := stubProvider{err: errors.New("connection refused")}
	label, _ := ScoreSentiment(context.Background(), p, provider.Options{}, "this is terrible and unacceptable, cancel it")
	if label != SentimentNegative {
		t.Fatalf("expected lexicon fallback negative, got %s", label)
	}
}

func TestScoreSentiment_FallsBackOnGarbage(t *testing.T) {
	p := stubProvider{response: "I think the customer seemed upset."}
	label, _ := ScoreSentiment(context.Background(), p, provider.Options{}, "please confirm the account number")
	if label != SentimentNeutral {
		t.Fatalf("expected lexicon fallback neutral, got %s", label)
	}
}

func TestScoreSentiment_NilProviderUsesLexicon(t *testing.T) {
	label, _ := ScoreSentiment(context.Background(), nil, provider.Options{}, "thank you, this was great and helpful")
	if label != SentimentPositive {
		t.Fatalf("expected positive, got %s", label)
	}
}

func TestSentimentTimeline(t *testing.T) {
	transcript := "Agent: thank you for calling, how can I help?\n" +
		"Customer: this is terrible, I am frustrated and want a complaint filed.\n" +
		"Agent: I am glad we could get this resolved, thanks for your patience."
	points := SentimentTimeline(transcript)
	if len(points) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(points))
	}
	for i, p := range points {
		if p.Segment != i {
			t.Fatalf("segments not ordered: %+v", points)
		}
	}
	if points[1].Label != SentimentNegative {
		t.Fatalf("customer turn should be negative, got %s", points[1].Label)
	}
}

func TestSentimentTimeline_NoTurnMarkers(t *testing.T) {
	if points := SentimentTimeline("a flat transcript without speaker markers"); points != nil {
		t.Fatalf("expected no timeline, got %+v", points)
	}
}
