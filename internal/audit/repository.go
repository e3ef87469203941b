package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"callaudit-platform/internal/calls"
	"callaudit-platform/internal/rubric"
	"callaudit-platform/pkg/utils"
)

// PostgresRepo persists reports. Verdicts, dimension scores, and the highlight
// lists are stored as JSONB so a reload reproduces every verdict field
// exactly.
//
// Assumed table: audit_reports.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

type reportRow struct {
	Verdicts         []Verdict                     `json:"verdicts"`
	DimensionScores  map[rubric.Dimension]*float64 `json:"dimension_scores"`
	Strengths        []string                      `json:"strengths"`
	ImprovementAreas []string                      `json:"improvement_areas"`
	Recommendations  []string                      `json:"recommendations"`
}

// Save inserts the report and advances its call to audited in a single
// transaction, so a crash can never leave a report row whose call does not
// reference it.
func (r *PostgresRepo) Save(ctx context.Context, rep Report) error {
	payload, err := json.Marshal(reportRow{
		Verdicts:         rep.Verdicts,
		DimensionScores:  rep.DimensionScores,
		Strengths:        rep.Strengths,
		ImprovementAreas: rep.ImprovementAreas,
		Recommendations:  rep.Recommendations,
	})
	if err != nil {
		return err
	}

	const insertQ = `
INSERT INTO audit_reports (
  id, call_id, template_id, overall_score, summary, payload,
  provider_name, provider_model, processing_ms, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`
	const linkQ = `
UPDATE calls
SET status = $2, audit_report_id = $3, error_message = '', processing_started_at = NULL, updated_at = NOW()
WHERE id = $1 AND status IN ($4, $5)
`
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, insertQ,
			rep.ID, rep.CallID, rep.TemplateID, rep.OverallScore, rep.Summary, payload,
			rep.ProviderName, rep.ProviderModel, rep.ProcessingMs, rep.CreatedAt,
		)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, linkQ,
			rep.CallID, calls.StatusAudited, rep.ID, calls.StatusProcessing, calls.StatusTranscribed,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return calls.ErrInvalidTransition
		}
		return nil
	})
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (Report, error) {
	const q = `
SELECT id, call_id, template_id, overall_score, summary, payload,
       provider_name, provider_model, processing_ms, created_at
FROM audit_reports
WHERE id = $1
`
	return r.scan(r.db.QueryRowContext(ctx, q, id))
}

// GetByCallID returns the most recent report for a call; re-audits supersede
// older rows.
func (r *PostgresRepo) GetByCallID(ctx context.Context, callID string) (Report, error) {
	const q = `
SELECT id, call_id, template_id, overall_score, summary, payload,
       provider_name, provider_model, processing_ms, created_at
FROM audit_reports
WHERE call_id = $1
ORDER BY created_at DESC, id DESC
LIMIT 1
`
	return r.scan(r.db.QueryRowContext(ctx, q, callID))
}

func (r *PostgresRepo) scan(row *sql.Row) (Report, error) {
	var rep Report
	var payload []byte
	err := row.Scan(
		&rep.ID,
		&rep.CallID,
		&rep.TemplateID,
		&rep.OverallScore,
		&rep.Summary,
		&payload,
		&rep.ProviderName,
		&rep.ProviderModel,
		&rep.ProcessingMs,
		&rep.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Report{}, ErrReportNotFound
		}
		return Report{}, err
	}

	var body reportRow
	if err := json.Unmarshal(payload, &body); err != nil {
		return Report{}, err
	}
	rep.Verdicts = body.Verdicts
	rep.DimensionScores = body.DimensionScores
	rep.Strengths = body.Strengths
	rep.ImprovementAreas = body.ImprovementAreas
	rep.Recommendations = body.Recommendations
	return rep, nil
}
