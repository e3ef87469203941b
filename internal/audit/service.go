package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"callaudit-platform/internal/calls"
	"callaudit-platform/internal/provider"
	"callaudit-platform/internal/rubric"
	"callaudit-platform/pkg/logger"
)

// ReportRepository persists audit reports.
type ReportRepository interface {
	// Save stores the report and atomically advances its call to audited,
	// linking the report id.
	Save(ctx context.Context, r Report) error
	GetByID(ctx context.Context, id string) (Report, error)
	GetByCallID(ctx context.Context, callID string) (Report, error)
}

// Service runs the audit stage: rubric prompt, model completion, validation,
// aggregation, report persistence, call status advance.
//
// Re-running the stage on a transcribed call is idempotent: it creates a
// fresh report and re-marks the call audited; no side effect is duplicated.
type Service struct {
	callRepo   calls.Repository
	templates  rubric.Repository
	reports    ReportRepository
	selector   provider.Selector
	completion provider.Options
	clock      func() time.Time
}

func NewService(callRepo calls.Repository, templates rubric.Repository, reports ReportRepository, sel provider.Selector, completion provider.Options) *Service {
	return &Service{
		callRepo:   callRepo,
		templates:  templates,
		reports:    reports,
		selector:   sel,
		completion: completion,
		clock:      time.Now,
	}
}

// Run audits one call. templateID selects an explicit rubric; empty means the
// single default template, whose absence is a hard error.
//
// Failure policy:
//   - No provider available, or no usable template: the call stays at
//     transcribed with an error annotation. These are configuration errors a
//     later batch run can retry without operator action.
//   - Provider request failure or an invalid model response: the call is marked
//     failed. Content-level failures are not retried automatically.
func (s *Service) Run(ctx context.Context, callID, templateID string) (Report, error) {
	log := logger.From(ctx).With("call_id", callID, "stage", "audit")
	start := s.clock()

	c, err := s.callRepo.GetByID(ctx, callID)
	if err != nil {
		return Report{}, err
	}
	if !c.HasTranscript() {
		return Report{}, ErrNoTranscript
	}

	// Resolved once per audit run; never cached across runs, so a concurrent
	// default-template swap cannot race an in-flight audit.
	tpl, err := s.resolveTemplate(ctx, templateID)
	if err != nil {
		s.annotate(ctx, log, callID, err)
		return Report{}, err
	}

	p, err := s.selector.Pick(ctx)
	if err != nil {
		s.annotate(ctx, log, callID, err)
		return Report{}, err
	}
	log = log.With("provider", p.Name(), "model", p.Model())

	raw, err := p.RunCompletion(ctx, systemPrompt, buildUserPrompt(tpl, *c.Transcript), s.completion)
	if err != nil {
		log.Error("completion failed", "err", err)
		s.fail(ctx, log, callID, err)
		return Report{}, err
	}

	parsed, err := parseResponse(raw)
	if err != nil {
		log.Error("model response rejected", "err", err)
		s.fail(ctx, log, callID, err)
		return Report{}, err
	}

	verdicts := s.validVerdicts(log, parsed, tpl)
	overall, byDim := Aggregate(verdicts, tpl.DimensionMap(), tpl.Weights())
	strengths, improvements, recommendations := BuildHighlights(verdicts)

	report := Report{
		ID:               uuid.NewString(),
		CallID:           callID,
		TemplateID:       tpl.ID,
		OverallScore:     overall,
		Summary:          parsed.Summary,
		Verdicts:         verdicts,
		DimensionScores:  byDim,
		Strengths:        strengths,
		ImprovementAreas: improvements,
		Recommendations:  recommendations,
		ProviderName:     p.Name(),
		ProviderModel:    p.Model(),
		ProcessingMs:     s.clock().Sub(start).Milliseconds(),
		CreatedAt:        s.clock().UTC(),
	}

	// Save persists the report and advances the call in one transaction, so
	// there is no window where a report exists without its call referencing
	// it.
	if err := s.reports.Save(ctx, report); err != nil {
		s.annotate(ctx, log, callID, err)
		return Report{}, err
	}

	log.Info("call audited", "overall_score", overall, "verdicts", len(verdicts), "processing_ms", report.ProcessingMs)
	return report, nil
}

func (s *Service) resolveTemplate(ctx context.Context, templateID string) (rubric.Template, error) {
	if templateID != "" {
		return s.templates.GetByID(ctx, templateID)
	}
	return s.templates.GetDefault(ctx)
}

// validVerdicts normalizes results and drops verdicts referencing criteria
// absent from the template, logging each drop. A criterion repeated by the
// model collapses to its last verdict, so dimension and overall scores
// aggregate over the same set.
func (s *Service) validVerdicts(log *slog.Logger, parsed modelResponse, tpl rubric.Template) []Verdict {
	index := tpl.CriterionIndex()
	out := make([]Verdict, 0, len(parsed.Verdicts))
	seen := make(map[string]int, len(parsed.Verdicts))
	for _, v := range parsed.Verdicts {
		if _, ok := index[v.CriterionID]; !ok {
			log.Warn("dropping verdict for unknown criterion", "criterion_id", v.CriterionID)
			continue
		}
		verdict := Verdict{
			CriterionID:    v.CriterionID,
			Result:         VerdictResult(normalizeResult(v.Result)),
			Explanation:    v.Explanation,
			Recommendation: v.Recommendation,
		}
		if pos, dup := seen[v.CriterionID]; dup {
			log.Warn("duplicate verdict for criterion, keeping the last", "criterion_id", v.CriterionID)
			out[pos] = verdict
			continue
		}
		seen[v.CriterionID] = len(out)
		out = append(out, verdict)
	}
	return out
}

// annotate keeps the call retryable at transcribed with the error recorded.
func (s *Service) annotate(ctx context.Context, log *slog.Logger, callID string, cause error) {
	if err := s.callRepo.ReleaseToTranscribed(ctx, callID, cause.Error()); err != nil && !errors.Is(err, calls.ErrInvalidTransition) {
		log.Error("failed to annotate call", "err", err)
	}
}

func (s *Service) fail(ctx context.Context, log *slog.Logger, callID string, cause error) {
	if err := s.callRepo.MarkFailed(ctx, callID, cause.Error()); err != nil {
		log.Error("failed to mark call failed", "err", err)
	}
}
