package queue

import (
	"context"
	"time"

	"callaudit-platform/internal/audit"
	"callaudit-platform/internal/calls"
	"callaudit-platform/internal/insights"
	"callaudit-platform/pkg/logger"
)

// Transcriber, Auditor, and Analyzer are the three pipeline stages. The
// concrete services satisfy these; tests substitute stubs.
type Transcriber interface {
	Transcribe(ctx context.Context, callID string) error
}

type Auditor interface {
	Run(ctx context.Context, callID, templateID string) (audit.Report, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, callID string, opts insights.AnalyzeOptions) (insights.CallAnalytics, error)
}

// Runner drives one call through the full pipeline. Each stage is invoked
// explicitly and its error observed here, so nothing downstream of
// transcription runs fire-and-forget. The runner only acquires the claim;
// stage services own every other status write.
type Runner struct {
	callRepo    calls.Repository
	transcriber Transcriber
	auditor     Auditor
	analyzer    Analyzer
}

func NewRunner(callRepo calls.Repository, t Transcriber, a Auditor, an Analyzer) *Runner {
	return &Runner{callRepo: callRepo, transcriber: t, auditor: a, analyzer: an}
}

// ProcessCall claims the call and runs it through the pipeline. Ingest and
// retry triggers enter here so every in-flight call holds the processing
// marker; a batch sweep started while the pipeline runs cannot pick it up.
func (r *Runner) ProcessCall(ctx context.Context, callID string) error {
	if _, err := r.callRepo.Claim(ctx, callID, time.Now().UTC()); err != nil {
		return err
	}
	return r.ProcessClaimed(ctx, callID)
}

// ProcessClaimed runs transcription (when no transcript exists yet), then
// audit, then conversation analytics for a call already claimed into
// processing (ClaimBatch or Claim). The claim is released only by the stage
// that writes the outcome: MarkAudited, MarkFailed, and ReleaseToTranscribed
// all clear the processing marker. An analytics failure is logged and
// swallowed: the audit outcome stands and the call still reaches audited.
func (r *Runner) ProcessClaimed(ctx context.Context, callID string) error {
	log := logger.From(ctx).With("call_id", callID)

	c, err := r.callRepo.GetByID(ctx, callID)
	if err != nil {
		return err
	}

	if !c.HasTranscript() {
		if err := r.transcriber.Transcribe(ctx, callID); err != nil {
			return err
		}
	}

	if _, err := r.auditor.Run(ctx, callID, ""); err != nil {
		return err
	}

	if _, err := r.analyzer.Analyze(ctx, callID, insights.AnalyzeOptions{}); err != nil {
		log.Error("conversation analysis failed", "err", err)
	}
	return nil
}
