package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository persists batches and withdrawal records in PostgreSQL. Each call
// is one independent round trip; the service layer owns ordering and locking.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const batchColumns = `id, name, quantity::text, price::text, to_char(purchase_date, 'YYYY-MM-DD'), custom_values, created_at, updated_at`

// ListBatches returns batches, optionally restricted to one item name.
// Zero-quantity batches are included; they carry the audit history.
func (r *Repository) ListBatches(ctx context.Context, filter BatchFilter) ([]Batch, error) {
	if r == nil {
		return nil, errors.New("ledger repository not initialised")
	}
	query := `SELECT ` + batchColumns + ` FROM batches ORDER BY purchase_date DESC, created_at DESC`
	args := []any{}
	if filter.Name != "" {
		query = `SELECT ` + batchColumns + ` FROM batches WHERE name=$1 ORDER BY purchase_date DESC, created_at DESC`
		args = append(args, filter.Name)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	batches := []Batch{}
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// GetBatch fetches one batch by id.
func (r *Repository) GetBatch(ctx context.Context, id string) (Batch, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE id=$1`, id)
	b, err := scanBatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Batch{}, ErrBatchNotFound
	}
	return b, err
}

// CreateBatch inserts a batch, assigning its id.
func (r *Repository) CreateBatch(ctx context.Context, b Batch) (Batch, error) {
	b.ID = uuid.NewString()
	row := r.pool.QueryRow(ctx, `INSERT INTO batches (id, name, quantity, price, purchase_date, custom_values, created_at, updated_at)
VALUES ($1,$2,$3::numeric,$4::numeric,$5::date,$6,NOW(),NOW())
RETURNING `+batchColumns,
		b.ID, b.Name, b.Quantity.String(), b.Price.String(), b.PurchaseDate, customValuesOrEmpty(b.CustomValues))
	return scanBatch(row)
}

// UpdateBatch rewrites the mutable fields of a batch. The id is immutable.
func (r *Repository) UpdateBatch(ctx context.Context, b Batch) (Batch, error) {
	row := r.pool.QueryRow(ctx, `UPDATE batches
SET name=$2, quantity=$3::numeric, price=$4::numeric, purchase_date=$5::date, custom_values=$6, updated_at=NOW()
WHERE id=$1
RETURNING `+batchColumns,
		b.ID, b.Name, b.Quantity.String(), b.Price.String(), b.PurchaseDate, customValuesOrEmpty(b.CustomValues))
	updated, err := scanBatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Batch{}, ErrBatchNotFound
	}
	return updated, err
}

// DeleteBatch removes a batch row entirely.
func (r *Repository) DeleteBatch(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM batches WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBatchNotFound
	}
	return nil
}

// ListWithdrawals returns withdrawal records newest first with a total count
// for pagination.
func (r *Repository) ListWithdrawals(ctx context.Context, filter WithdrawalFilter) ([]WithdrawalRecord, int, error) {
	if r == nil {
		return nil, 0, errors.New("ledger repository not initialised")
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * perPage

	var total int
	countQuery := `SELECT COUNT(*) FROM withdrawals`
	listQuery := `SELECT id, name, quantity::text, total_cost::text, to_char(date, 'YYYY-MM-DD'), notes, created_at
FROM withdrawals ORDER BY date DESC, created_at DESC LIMIT %d OFFSET %d`
	args := []any{}
	if filter.Name != "" {
		countQuery += ` WHERE name=$1`
		listQuery = `SELECT id, name, quantity::text, total_cost::text, to_char(date, 'YYYY-MM-DD'), notes, created_at
FROM withdrawals WHERE name=$1 ORDER BY date DESC, created_at DESC LIMIT %d OFFSET %d`
		args = append(args, filter.Name)
	}
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, fmt.Sprintf(listQuery, perPage, offset), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	records := []WithdrawalRecord{}
	for rows.Next() {
		var rec WithdrawalRecord
		var qty, cost string
		if err := rows.Scan(&rec.ID, &rec.Name, &qty, &cost, &rec.Date, &rec.Notes, &rec.Created); err != nil {
			return nil, 0, err
		}
		if rec.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, 0, err
		}
		if rec.TotalCost, err = decimal.NewFromString(cost); err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}

// CreateWithdrawal appends one immutable withdrawal record. There is no
// update path for withdrawals by design.
func (r *Repository) CreateWithdrawal(ctx context.Context, rec WithdrawalRecord) (WithdrawalRecord, error) {
	rec.ID = uuid.NewString()
	err := r.pool.QueryRow(ctx, `INSERT INTO withdrawals (id, name, quantity, total_cost, date, notes, created_at)
VALUES ($1,$2,$3::numeric,$4::numeric,$5::date,$6,NOW())
RETURNING created_at`,
		rec.ID, rec.Name, rec.Quantity.String(), rec.TotalCost.String(), rec.Date, rec.Notes).Scan(&rec.Created)
	if err != nil {
		return WithdrawalRecord{}, err
	}
	return rec, nil
}

func scanBatch(row pgx.Row) (Batch, error) {
	var b Batch
	var qty, price string
	var custom map[string]string
	if err := row.Scan(&b.ID, &b.Name, &qty, &price, &b.PurchaseDate, &custom, &b.Created, &b.Updated); err != nil {
		return Batch{}, err
	}
	var err error
	if b.Quantity, err = decimal.NewFromString(qty); err != nil {
		return Batch{}, err
	}
	if b.Price, err = decimal.NewFromString(price); err != nil {
		return Batch{}, err
	}
	b.CustomValues = custom
	return b, nil
}

func customValuesOrEmpty(values map[string]string) map[string]string {
	if values == nil {
		return map[string]string{}
	}
	return values
}
