package audit

import (
	"errors"
	"time"

	"callaudit-platform/internal/rubric"
)

// VerdictResult is the per-criterion outcome produced by the language model.
type VerdictResult string

const (
	ResultPass    VerdictResult = "PASS"
	ResultPartial VerdictResult = "PARTIAL"
	ResultFail    VerdictResult = "FAIL"
)

func (r VerdictResult) Valid() bool {
	switch r {
	case ResultPass, ResultPartial, ResultFail:
		return true
	default:
		return false
	}
}

// NumericValue maps a verdict to its scoring value.
func (r VerdictResult) NumericValue() float64 {
	switch r {
	case ResultPass:
		return 100
	case ResultPartial:
		return 50
	default:
		return 0
	}
}

// Verdict is one criterion outcome. CriterionID must reference a criterion of
// the template used for the audit; verdicts for unknown ids are dropped with a
// warning before scoring, never persisted.
type Verdict struct {
	CriterionID    string        `json:"criterion_id"`
	Result         VerdictResult `json:"result"`
	Explanation    string        `json:"explanation"`
	Recommendation string        `json:"recommendation,omitempty"`
}

// Report is the persisted outcome of one audit run on one call.
//
// DimensionScores carries one entry per quality dimension; a dimension with
// no contributing criteria is nil, not zero.
type Report struct {
	ID         string `json:"id" db:"id"`
	CallID     string `json:"call_id" db:"call_id"`
	TemplateID string `json:"template_id" db:"template_id"`

	OverallScore    int                           `json:"overall_score" db:"overall_score"`
	Summary         string                        `json:"summary" db:"summary"`
	Verdicts        []Verdict                     `json:"verdicts"`
	DimensionScores map[rubric.Dimension]*float64 `json:"dimension_scores"`

	Strengths        []string `json:"strengths"`
	ImprovementAreas []string `json:"improvement_areas"`
	Recommendations  []string `json:"recommendations"`

	ProviderName  string `json:"provider_name" db:"provider_name"`
	ProviderModel string `json:"provider_model" db:"provider_model"`
	ProcessingMs  int64  `json:"processing_ms" db:"processing_ms"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

var (
	ErrInvalidResponse = errors.New("audit: invalid model response")
	ErrNoTranscript    = errors.New("audit: call has no transcript")
	ErrReportNotFound  = errors.New("audit: report not found")
)

const topListLimit = 5

// BuildHighlights derives the top strengths, improvement areas, and
// recommendations from the verdict list, capped at five entries each.
func BuildHighlights(verdicts []Verdict) (strengths, improvements, recommendations []string) {
	for _, v := range verdicts {
		if v.Result == ResultPass {
			if v.Explanation != "" && len(strengths) < topListLimit {
				strengths = append(strengths, v.Explanation)
			}
			continue
		}
		if v.Explanation != "" && len(improvements) < topListLimit {
			improvements = append(improvements, v.Explanation)
		}
		if v.Recommendation != "" && len(recommendations) < topListLimit {
			recommendations = append(recommendations, v.Recommendation)
		}
	}
	return strengths, improvements, recommendations
}
