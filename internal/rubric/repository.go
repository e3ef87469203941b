package rubric

import (
	"context"
	"database/sql"
	"errors"
)

// Repository is the read-only template access used at audit time.
//
// The default-template lookup is resolved once per audit run, never cached
// globally, so a concurrent default swap cannot race an in-flight audit.
type Repository interface {
	GetByID(ctx context.Context, id string) (Template, error)
	// GetDefault returns the single default template.
	// Absence of a default is ErrNoDefaultTemplate, a hard error; audits never
	// silently fall back to an empty rubric.
	GetDefault(ctx context.Context) (Template, error)
}

// PostgresRepo reads templates and criteria from Postgres.
// Assumed tables: audit_templates, audit_criteria (position column keeps
// criteria ordered).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (Template, error) {
	const q = `
SELECT id, name, version, is_default, created_at, updated_at
FROM audit_templates
WHERE id = $1
`
	return r.load(ctx, q, id)
}

func (r *PostgresRepo) GetDefault(ctx context.Context) (Template, error) {
	const q = `
SELECT id, name, version, is_default, created_at, updated_at
FROM audit_templates
WHERE is_default = TRUE
LIMIT 1
`
	t, err := r.load(ctx, q)
	if errors.Is(err, ErrNotFound) {
		return Template{}, ErrNoDefaultTemplate
	}
	return t, err
}

func (r *PostgresRepo) load(ctx context.Context, q string, args ...any) (Template, error) {
	var t Template
	err := r.db.QueryRowContext(ctx, q, args...).Scan(
		&t.ID,
		&t.Name,
		&t.Version,
		&t.IsDefault,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Template{}, ErrNotFound
		}
		return Template{}, err
	}

	const cq = `
SELECT id, name, description, dimension, weight
FROM audit_criteria
WHERE template_id = $1
ORDER BY position, id
`
	rows, err := r.db.QueryContext(ctx, cq, t.ID)
	if err != nil {
		return Template{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var c Criterion
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Dimension, &c.Weight); err != nil {
			return Template{}, err
		}
		t.Criteria = append(t.Criteria, c)
	}
	return t, rows.Err()
}
