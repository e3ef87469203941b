package reporting

import (
	"context"
	"database/sql"
	"time"

	"callaudit-platform/internal/calls"
)

// PostgresRepo reads summary slices straight from the call and report tables.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) ListCalls(ctx context.Context, from, to time.Time, campaignID string) ([]calls.Call, error) {
	const q = `
SELECT id, campaign_id, status, duration_seconds, recording_url
FROM calls
WHERE created_at >= $1 AND created_at < $2
  AND ($3 = '' OR campaign_id = $3)
`
	rows, err := r.db.QueryContext(ctx, q, from, to, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []calls.Call
	for rows.Next() {
		var c calls.Call
		if err := rows.Scan(&c.ID, &c.CampaignID, &c.Status, &c.DurationSeconds, &c.RecordingURL); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListReportStats(ctx context.Context, from, to time.Time) ([]ReportStat, error) {
	const q = `
SELECT overall_score, created_at
FROM audit_reports
WHERE created_at >= $1 AND created_at < $2
`
	rows, err := r.db.QueryContext(ctx, q, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReportStat
	for rows.Next() {
		var st ReportStat
		if err := rows.Scan(&st.OverallScore, &st.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
