package assets

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nusantara-erp/nusantara-erp/internal/shared"
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL asset repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const assetColumns = `id, code, name, status, purchase_date, usage_date, purchase_cost::text, salvage_value::text, useful_life_months, accumulated_depreciation::text, book_value::text, asset_account_id, expense_account_id, accum_account_id, created_by, created_at, updated_at`

func (r *repository) GetAsset(ctx context.Context, id uuid.UUID) (Asset, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+assetColumns+` FROM assets WHERE id=$1`, id)
	return scanAsset(row)
}

func (r *repository) InsertAsset(ctx context.Context, a Asset) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO assets (id, code, name, status, purchase_date, usage_date, purchase_cost, salvage_value, useful_life_months, accumulated_depreciation, book_value, asset_account_id, expense_account_id, accum_account_id, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		a.ID, a.Code, a.Name, a.Status, a.PurchaseDate, a.UsageDate,
		a.PurchaseCost.StringFixed(2), a.SalvageValue.StringFixed(2), a.UsefulLifeMonths,
		a.AccumulatedDepreciation.StringFixed(2), a.BookValue.StringFixed(2),
		a.AssetAccountID, a.ExpenseAccountID, a.AccumAccountID, a.CreatedBy, a.CreatedAt, a.UpdatedAt)
	return err
}

func (r *repository) ListDepreciable(ctx context.Context, cutoff time.Time) ([]Asset, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+assetColumns+` FROM assets
WHERE status='active' AND usage_date <= $1 ORDER BY code ASC`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) SetDepreciation(ctx context.Context, tx pgx.Tx, assetID uuid.UUID, accumulated, bookValue decimal.Decimal) error {
	const sql = `UPDATE assets SET accumulated_depreciation=$2, book_value=$3, updated_at=now() WHERE id=$1`
	var err error
	if tx != nil {
		_, err = tx.Exec(ctx, sql, assetID, accumulated.StringFixed(2), bookValue.StringFixed(2))
	} else {
		_, err = r.pool.Exec(ctx, sql, assetID, accumulated.StringFixed(2), bookValue.StringFixed(2))
	}
	return err
}

const entryColumns = `id, asset_id, date, period_month, period_year, amount::text, accumulated_total::text, book_value::text, status, notes, created_at`

func (r *repository) GetEntry(ctx context.Context, id uuid.UUID) (Entry, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM asset_depreciations WHERE id=$1`, id)
	return scanEntry(row)
}

func (r *repository) ListEntries(ctx context.Context, assetID uuid.UUID) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM asset_depreciations
WHERE asset_id=$1 ORDER BY period_year ASC, period_month ASC`, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *repository) HasRecordedPeriod(ctx context.Context, assetID uuid.UUID, month, year int) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM asset_depreciations WHERE asset_id=$1 AND period_month=$2 AND period_year=$3 AND status='recorded')`,
		assetID, month, year).Scan(&exists)
	return exists, err
}

func (r *repository) InsertEntry(ctx context.Context, tx pgx.Tx, e Entry) error {
	const sql = `INSERT INTO asset_depreciations (id, asset_id, date, period_month, period_year, amount, accumulated_total, book_value, status, notes, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	args := []any{e.ID, e.AssetID, e.Date, e.PeriodMonth, e.PeriodYear,
		e.Amount.StringFixed(2), e.AccumulatedTotal.StringFixed(2), e.BookValue.StringFixed(2),
		e.Status, e.Notes, e.CreatedAt}
	var err error
	if tx != nil {
		_, err = tx.Exec(ctx, sql, args...)
	} else {
		_, err = r.pool.Exec(ctx, sql, args...)
	}
	return err
}

func (r *repository) EntryStatusCAS(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to EntryStatus) error {
	const sql = `UPDATE asset_depreciations SET status=$1 WHERE id=$2 AND status=$3`
	var tag interface{ RowsAffected() int64 }
	var err error
	if tx != nil {
		tag, err = tx.Exec(ctx, sql, to, id, from)
	} else {
		tag, err = r.pool.Exec(ctx, sql, to, id, from)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

func scanAsset(row pgx.Row) (Asset, error) {
	var a Asset
	var cost, salvage, accumulated, book string
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Status, &a.PurchaseDate, &a.UsageDate,
		&cost, &salvage, &a.UsefulLifeMonths, &accumulated, &book,
		&a.AssetAccountID, &a.ExpenseAccountID, &a.AccumAccountID, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Asset{}, shared.ErrNotFound
	}
	if err != nil {
		return Asset{}, err
	}
	if a.PurchaseCost, err = decimal.NewFromString(cost); err != nil {
		return Asset{}, err
	}
	if a.SalvageValue, err = decimal.NewFromString(salvage); err != nil {
		return Asset{}, err
	}
	if a.AccumulatedDepreciation, err = decimal.NewFromString(accumulated); err != nil {
		return Asset{}, err
	}
	if a.BookValue, err = decimal.NewFromString(book); err != nil {
		return Asset{}, err
	}
	return a, nil
}

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	var amount, accumulated, book string
	err := row.Scan(&e.ID, &e.AssetID, &e.Date, &e.PeriodMonth, &e.PeriodYear,
		&amount, &accumulated, &book, &e.Status, &e.Notes, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, shared.ErrNotFound
	}
	if err != nil {
		return Entry{}, err
	}
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return Entry{}, err
	}
	if e.AccumulatedTotal, err = decimal.NewFromString(accumulated); err != nil {
		return Entry{}, err
	}
	if e.BookValue, err = decimal.NewFromString(book); err != nil {
		return Entry{}, err
	}
	return e, nil
}
