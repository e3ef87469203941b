package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Repository is the persistence contract for calls.
//
// Status writes are the last action of every pipeline stage: a status is only
// advanced after the artifact it implies (transcript string, report row) is
// durably stored, so a crash mid-stage never leaves status inconsistent with
// stored data.
type Repository interface {
	Create(ctx context.Context, c Call) error
	GetByID(ctx context.Context, id string) (Call, error)
	GetByExternalID(ctx context.Context, externalID string) (Call, error)

	// Claim moves a single pending or transcribed call into processing,
	// recording the claim timestamp. A call already in processing returns
	// ErrAlreadyClaimed; terminal statuses return ErrInvalidTransition.
	Claim(ctx context.Context, id string, now time.Time) (Call, error)
	// StoreTranscript records the transcript on a claimed call. The call
	// stays in processing: the claim is held until a stage writes a terminal
	// or released status, so a concurrent sweep can never pick the call up
	// mid-pipeline.
	StoreTranscript(ctx context.Context, id, transcript string) error
	// MarkAudited links the persisted report and advances to audited.
	MarkAudited(ctx context.Context, id, reportID string) error
	// MarkFailed records the stage error and moves the call to failed.
	MarkFailed(ctx context.Context, id, errMsg string) error
	// ReleaseToTranscribed returns a claimed call to transcribed with an error
	// annotation. Used when audit hit a configuration error (no provider) that
	// a later run can retry without operator action.
	ReleaseToTranscribed(ctx context.Context, id, errMsg string) error
	// ResetForRetry re-enters a failed call at pending or transcribed.
	ResetForRetry(ctx context.Context, id string, to CallStatus) error

	// ClaimBatch atomically claims up to limit backlogged calls
	// (claim-then-process). Selection is deterministic: ordered by
	// (created_at, id). Calls stuck in processing since before staleBefore are
	// reclaimed as well.
	ClaimBatch(ctx context.Context, limit int, staleBefore, now time.Time) ([]Call, error)
}

// PostgresRepo implements Repository over database/sql with the pgx driver.
//
// Assumed table: calls (see schema notes in the column list below). The
// claim query relies on FOR UPDATE SKIP LOCKED so two concurrent batch runs
// never claim the same row.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const callColumns = `
id, external_call_id, user_id, campaign_id, call_type,
started_at, ended_at, duration_seconds,
recording_url, transcript, status, audit_report_id, error_message,
agent_talk_seconds, customer_talk_seconds, silence_seconds, dead_air_count, interruption_count,
processing_started_at, created_at, updated_at`

func scanCall(row interface{ Scan(...any) error }) (Call, error) {
	var c Call
	err := row.Scan(
		&c.ID,
		&c.ExternalCallID,
		&c.UserID,
		&c.CampaignID,
		&c.CallType,
		&c.StartedAt,
		&c.EndedAt,
		&c.DurationSeconds,
		&c.RecordingURL,
		&c.Transcript,
		&c.Status,
		&c.AuditReportID,
		&c.ErrorMessage,
		&c.AgentTalkSeconds,
		&c.CustomerTalkSeconds,
		&c.SilenceSeconds,
		&c.DeadAirCount,
		&c.InterruptionCount,
		&c.ProcessingStartedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	return c, nil
}

func (r *PostgresRepo) Create(ctx context.Context, c Call) error {
	const q = `
INSERT INTO calls (` + callColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
`
	_, err := r.db.ExecContext(ctx, q,
		c.ID, c.ExternalCallID, c.UserID, c.CampaignID, c.CallType,
		c.StartedAt, c.EndedAt, c.DurationSeconds,
		c.RecordingURL, c.Transcript, c.Status, c.AuditReportID, c.ErrorMessage,
		c.AgentTalkSeconds, c.CustomerTalkSeconds, c.SilenceSeconds, c.DeadAirCount, c.InterruptionCount,
		c.ProcessingStartedAt, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (Call, error) {
	const q = `SELECT ` + callColumns + ` FROM calls WHERE id = $1`
	return scanCall(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepo) GetByExternalID(ctx context.Context, externalID string) (Call, error) {
	const q = `SELECT ` + callColumns + ` FROM calls WHERE external_call_id = $1`
	return scanCall(r.db.QueryRowContext(ctx, q, externalID))
}

func (r *PostgresRepo) Claim(ctx context.Context, id string, now time.Time) (Call, error) {
	const q = `
UPDATE calls
SET status = $2, processing_started_at = $3, updated_at = $3
WHERE id = $1 AND status IN ($4, $5)
RETURNING ` + callColumns
	c, err := scanCall(r.db.QueryRowContext(ctx, q, id, StatusProcessing, now, StatusPending, StatusTranscribed))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Call{}, err
	}
	// No row matched: distinguish a missing call from one another worker
	// already holds.
	current, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return Call{}, getErr
	}
	if current.Status == StatusProcessing {
		return Call{}, ErrAlreadyClaimed
	}
	return Call{}, ErrInvalidTransition
}

func (r *PostgresRepo) StoreTranscript(ctx context.Context, id, transcript string) error {
	const q = `
UPDATE calls
SET transcript = $2, error_message = '', updated_at = NOW()
WHERE id = $1 AND status = $3
`
	res, err := r.db.ExecContext(ctx, q, id, transcript, StatusProcessing)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func (r *PostgresRepo) MarkAudited(ctx context.Context, id, reportID string) error {
	const q = `
UPDATE calls
SET status = $2, audit_report_id = $3, error_message = '', processing_started_at = NULL, updated_at = NOW()
WHERE id = $1
`
	return r.exec(ctx, q, id, StatusAudited, reportID)
}

func (r *PostgresRepo) MarkFailed(ctx context.Context, id, errMsg string) error {
	const q = `
UPDATE calls
SET status = $2, error_message = $3, processing_started_at = NULL, updated_at = NOW()
WHERE id = $1
`
	return r.exec(ctx, q, id, StatusFailed, errMsg)
}

func (r *PostgresRepo) ReleaseToTranscribed(ctx context.Context, id, errMsg string) error {
	const q = `
UPDATE calls
SET status = $2, error_message = $3, processing_started_at = NULL, updated_at = NOW()
WHERE id = $1
`
	return r.exec(ctx, q, id, StatusTranscribed, errMsg)
}

func (r *PostgresRepo) ResetForRetry(ctx context.Context, id string, to CallStatus) error {
	if to != StatusPending && to != StatusTranscribed {
		return ErrInvalidTransition
	}
	const q = `
UPDATE calls
SET status = $2, error_message = '', processing_started_at = NULL, updated_at = NOW()
WHERE id = $1 AND status = $3
`
	res, err := r.db.ExecContext(ctx, q, id, to, StatusFailed)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func (r *PostgresRepo) ClaimBatch(ctx context.Context, limit int, staleBefore, now time.Time) ([]Call, error) {
	const q = `
UPDATE calls
SET status = $4, processing_started_at = $3, updated_at = $3
WHERE id IN (
    SELECT id FROM calls
    WHERE (
        status IN ($5, $6)
        AND (recording_url <> '' OR transcript IS NOT NULL)
    )
    OR (status = $4 AND processing_started_at < $2)
    ORDER BY created_at, id
    LIMIT $1
    FOR UPDATE SKIP LOCKED
)
RETURNING ` + callColumns
	rows, err := r.db.QueryContext(ctx, q, limit, staleBefore, now, StatusProcessing, StatusPending, StatusTranscribed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) exec(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
