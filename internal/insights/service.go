package insights

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"callaudit-platform/internal/calls"
	"callaudit-platform/internal/provider"
	"callaudit-platform/pkg/logger"
)

// AnalyzeOptions carries per-call inputs the stage cannot derive itself.
type AnalyzeOptions struct {
	// ScriptPhrases is the expected call script, in order. Empty means no
	// script adherence check for this call.
	ScriptPhrases []string
}

// Service runs the conversation intelligence stage. It is deliberately
// decoupled from the audit stage and from the call state machine: a failure
// here is logged and surfaced to the caller but never changes Call.Status.
type Service struct {
	callRepo   calls.Repository
	repo       Repository
	selector   provider.Selector
	completion provider.Options
	clock      func() time.Time
}

func NewService(callRepo calls.Repository, repo Repository, sel provider.Selector, completion provider.Options) *Service {
	return &Service{
		callRepo:   callRepo,
		repo:       repo,
		selector:   sel,
		completion: completion,
		clock:      time.Now,
	}
}

// Analyze builds and persists one CallAnalytics record for the call.
func (s *Service) Analyze(ctx context.Context, callID string, opts AnalyzeOptions) (CallAnalytics, error) {
	log := logger.From(ctx).With("call_id", callID, "stage", "insights")

	c, err := s.callRepo.GetByID(ctx, callID)
	if err != nil {
		return CallAnalytics{}, err
	}
	if !c.HasTranscript() {
		return CallAnalytics{}, ErrNoTranscript
	}
	transcript := *c.Transcript

	libraries, err := s.repo.ListActiveLibraries(ctx)
	if err != nil {
		return CallAnalytics{}, fmt.Errorf("load keyword libraries: %w", err)
	}

	// Sentiment degrades to the lexicon scorer when no backend can serve.
	var backend provider.Provider
	if p, err := s.selector.Pick(ctx); err == nil {
		backend = p
	} else if !errors.Is(err, provider.ErrNoProviderAvailable) {
		return CallAnalytics{}, err
	} else {
		log.Warn("no language-model backend, using lexicon sentiment")
	}
	label, score := ScoreSentiment(ctx, backend, s.completion, transcript)

	a := CallAnalytics{
		ID:                uuid.NewString(),
		CallID:            callID,
		SentimentLabel:    label,
		SentimentScore:    score,
		SentimentTimeline: SentimentTimeline(transcript),
		Keywords:          MatchKeywords(transcript, libraries),
		Talk:              TalkPatterns(c),
		CreatedAt:         s.clock().UTC(),
	}
	if len(opts.ScriptPhrases) > 0 {
		script := ScriptAdherence(transcript, opts.ScriptPhrases)
		a.Script = &script
	}

	if err := s.repo.SaveAnalytics(ctx, a); err != nil {
		return CallAnalytics{}, fmt.Errorf("persist analytics: %w", err)
	}

	log.Info("call analyzed",
		"sentiment", label,
		"keyword_matches", len(a.Keywords.Matches),
		"timeline_points", len(a.SentimentTimeline),
	)
	return a, nil
}
