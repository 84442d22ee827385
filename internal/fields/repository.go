package fields

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists field definitions in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const definitionColumns = `id, name, type, options, created_at, updated_at`

// List returns definitions oldest first so the form layout is stable.
func (r *Repository) List(ctx context.Context) ([]Definition, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+definitionColumns+` FROM field_definitions ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	defs := []Definition{}
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

// Get fetches one definition by id.
func (r *Repository) Get(ctx context.Context, id string) (Definition, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+definitionColumns+` FROM field_definitions WHERE id=$1`, id)
	d, err := scanDefinition(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Definition{}, ErrNotFound
	}
	return d, err
}

// Create inserts a definition, assigning its id.
func (r *Repository) Create(ctx context.Context, d Definition) (Definition, error) {
	d.ID = uuid.NewString()
	row := r.pool.QueryRow(ctx, `INSERT INTO field_definitions (id, name, type, options, created_at, updated_at)
VALUES ($1,$2,$3,$4,NOW(),NOW())
RETURNING `+definitionColumns,
		d.ID, d.Name, string(d.Type), d.Options)
	return scanDefinition(row)
}

// Update rewrites a definition in place.
func (r *Repository) Update(ctx context.Context, d Definition) (Definition, error) {
	row := r.pool.QueryRow(ctx, `UPDATE field_definitions
SET name=$2, type=$3, options=$4, updated_at=NOW()
WHERE id=$1
RETURNING `+definitionColumns,
		d.ID, d.Name, string(d.Type), d.Options)
	updated, err := scanDefinition(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Definition{}, ErrNotFound
	}
	return updated, err
}

// Delete removes a definition row.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM field_definitions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDefinition(row pgx.Row) (Definition, error) {
	var d Definition
	var typ string
	var options []string
	if err := row.Scan(&d.ID, &d.Name, &typ, &options, &d.Created, &d.Updated); err != nil {
		return Definition{}, err
	}
	d.Type = FieldType(typ)
	d.Options = options
	return d, nil
}
