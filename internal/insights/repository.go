package insights

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// Repository reads keyword libraries and persists per-call analytics.
type Repository interface {
	ListActiveLibraries(ctx context.Context) ([]KeywordLibrary, error)
	SaveAnalytics(ctx context.Context, a CallAnalytics) error
	GetByCallID(ctx context.Context, callID string) (CallAnalytics, error)
}

// PostgresRepo stores analytics with the structured portions as JSONB,
// mirroring how audit reports are stored.
//
// Assumed tables: keyword_libraries, keyword_entries, call_analytics.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) ListActiveLibraries(ctx context.Context) ([]KeywordLibrary, error) {
	const q = `
SELECT l.id, l.name, l.category, l.active, e.phrase, e.weight, e.exact_match
FROM keyword_libraries l
JOIN keyword_entries e ON e.library_id = l.id
WHERE l.active = TRUE
ORDER BY l.id, e.position, e.phrase
`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var libs []KeywordLibrary
	byID := map[string]int{}
	for rows.Next() {
		var (
			lib   KeywordLibrary
			entry KeywordEntry
		)
		if err := rows.Scan(&lib.ID, &lib.Name, &lib.Category, &lib.Active,
			&entry.Phrase, &entry.Weight, &entry.ExactMatch); err != nil {
			return nil, err
		}
		idx, ok := byID[lib.ID]
		if !ok {
			idx = len(libs)
			byID[lib.ID] = idx
			libs = append(libs, lib)
		}
		libs[idx].Entries = append(libs[idx].Entries, entry)
	}
	return libs, rows.Err()
}

type analyticsRow struct {
	SentimentTimeline []SentimentPoint `json:"sentiment_timeline,omitempty"`
	Keywords          KeywordSummary   `json:"keywords"`
	Script            *ScriptResult    `json:"script,omitempty"`
	Talk              TalkStats        `json:"talk"`
}

func (r *PostgresRepo) SaveAnalytics(ctx context.Context, a CallAnalytics) error {
	payload, err := json.Marshal(analyticsRow{
		SentimentTimeline: a.SentimentTimeline,
		Keywords:          a.Keywords,
		Script:            a.Script,
		Talk:              a.Talk,
	})
	if err != nil {
		return err
	}

	const q = `
INSERT INTO call_analytics (id, call_id, sentiment_label, sentiment_score, payload, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`
	_, err = r.db.ExecContext(ctx, q,
		a.ID, a.CallID, a.SentimentLabel, a.SentimentScore, payload, a.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) GetByCallID(ctx context.Context, callID string) (CallAnalytics, error) {
	const q = `
SELECT id, call_id, sentiment_label, sentiment_score, payload, created_at
FROM call_analytics
WHERE call_id = $1
ORDER BY created_at DESC, id DESC
LIMIT 1
`
	var (
		a       CallAnalytics
		payload []byte
	)
	err := r.db.QueryRowContext(ctx, q, callID).Scan(
		&a.ID, &a.CallID, &a.SentimentLabel, &a.SentimentScore, &payload, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallAnalytics{}, ErrNotFound
		}
		return CallAnalytics{}, err
	}

	var body analyticsRow
	if err := json.Unmarshal(payload, &body); err != nil {
		return CallAnalytics{}, err
	}
	a.SentimentTimeline = body.SentimentTimeline
	a.Keywords = body.Keywords
	a.Script = body.Script
	a.Talk = body.Talk
	return a, nil
}
