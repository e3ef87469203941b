package transcription

import (
	"context"
	"fmt"
	"strings"

	"callaudit-platform/internal/calls"
	"callaudit-platform/pkg/logger"
)

// Service runs the transcription stage for one call.
//
// The stage operates on a claimed call: the transcript is stored without
// leaving processing, so the claim holds until the pipeline finishes. On any
// failure the call moves to failed with the error recorded, and it remains
// eligible for retry. Orchestration of the downstream stages (audit,
// conversation analytics) lives in the pipeline runner, which invokes them
// explicitly after a successful transcription so their failures stay
// observable instead of being fire-and-forget.
type Service struct {
	repo     calls.Repository
	client   Client
	minChars int
}

func NewService(repo calls.Repository, client Client, minChars int) *Service {
	if minChars <= 0 {
		minChars = 40
	}
	return &Service{repo: repo, client: client, minChars: minChars}
}

// Transcribe converts the call's recording into text and stores it on the
// claimed call. The call stays in processing; the downstream stage outcome
// decides the status it is released at. Idempotent: a call that already
// carries a transcript is left untouched.
func (s *Service) Transcribe(ctx context.Context, callID string) error {
	log := logger.From(ctx).With("call_id", callID, "stage", "transcription")

	c, err := s.repo.GetByID(ctx, callID)
	if err != nil {
		return err
	}
	if c.HasTranscript() {
		log.Debug("transcript already present, skipping")
		return nil
	}

	text, err := s.client.Transcribe(ctx, c.RecordingURL)
	if err != nil {
		log.Error("transcription failed", "err", err)
		if markErr := s.repo.MarkFailed(ctx, callID, err.Error()); markErr != nil {
			log.Error("failed to record transcription error", "err", markErr)
		}
		return err
	}

	if len(strings.TrimSpace(text)) < s.minChars {
		err := fmt.Errorf("%w: %d chars, need %d", ErrTooShort, len(strings.TrimSpace(text)), s.minChars)
		log.Warn("transcript too short", "err", err)
		if markErr := s.repo.MarkFailed(ctx, callID, err.Error()); markErr != nil {
			log.Error("failed to record transcription error", "err", markErr)
		}
		return err
	}

	if err := s.repo.StoreTranscript(ctx, callID, text); err != nil {
		return err
	}
	log.Info("call transcribed", "chars", len(text))
	return nil
}
