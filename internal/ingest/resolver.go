package ingest

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresAgentResolver resolves external agent identifiers against the
// mapping table maintained by the workforce side.
//
// Assumed table: agent_mappings.
type PostgresAgentResolver struct {
	db *sql.DB
}

func NewPostgresAgentResolver(db *sql.DB) *PostgresAgentResolver {
	return &PostgresAgentResolver{db: db}
}

func (r *PostgresAgentResolver) Resolve(ctx context.Context, externalAgentID string) (string, error) {
	const q = `SELECT user_id FROM agent_mappings WHERE external_agent_id = $1`
	var userID string
	if err := r.db.QueryRowContext(ctx, q, externalAgentID).Scan(&userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrAgentNotMapped
		}
		return "", err
	}
	return userID, nil
}
