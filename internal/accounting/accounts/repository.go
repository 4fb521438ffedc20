package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nusantara-erp/nusantara-erp/internal/shared"
)

// Repository encapsulates DB operations for the chart of accounts.
type Repository interface {
	GetByID(ctx context.Context, id int64) (Account, error)
	GetByCode(ctx context.Context, code string) (Account, error)
	HasChildren(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context) ([]Account, error)
	Insert(ctx context.Context, a Account) (int64, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const accountColumns = `id, code, name, type, normal_balance, parent_id, opening_balance::text, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	var opening string
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.NormalBalance, &a.ParentID, &opening, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrNotFound
		}
		return Account{}, err
	}
	a.OpeningBalance, err = decimal.NewFromString(opening)
	if err != nil {
		return Account{}, err
	}
	return a, nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id)
	return scanAccount(row)
}

func (r *repository) GetByCode(ctx context.Context, code string) (Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code=$1`, code)
	return scanAccount(row)
}

func (r *repository) HasChildren(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE parent_id=$1)`, id).Scan(&exists)
	return exists, err
}

func (r *repository) List(ctx context.Context) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY code ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) Insert(ctx context.Context, a Account) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO accounts (code, name, type, normal_balance, parent_id, opening_balance, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		a.Code, a.Name, a.Type, a.NormalBalance, a.ParentID, a.OpeningBalance.StringFixed(2), a.IsActive).Scan(&id)
	return id, err
}
