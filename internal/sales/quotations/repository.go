package quotations

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

// NewRepository constructs the PostgreSQL quotation repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const quotationColumns = `id, number, date, customer_name, valid_until, status, total::text, notes, created_by, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Quotation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+quotationColumns+` FROM quotations WHERE id=$1`, id)
	q, err := scanQuotation(row)
	if err != nil {
		return Quotation{}, err
	}
	q.Items, err = r.queryItems(ctx, id)
	return q, err
}

func (r *repository) Insert(ctx context.Context, q Quotation) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	_, err = tx.Exec(ctx, `INSERT INTO quotations (id, number, date, customer_name, valid_until, status, total, notes, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		q.ID, q.Number, q.Date, q.CustomerName, q.ValidUntil, q.Status, q.Total.StringFixed(2), q.Notes, q.CreatedBy, q.CreatedAt, q.UpdatedAt)
	if err != nil {
		return err
	}
	if err := insertItems(ctx, tx, q.ID, q.Items); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *repository) Update(ctx context.Context, q Quotation) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	tag, err := tx.Exec(ctx, `UPDATE quotations
SET date=$2, customer_name=$3, valid_until=$4, total=$5, notes=$6, updated_at=$7
WHERE id=$1`,
		q.ID, q.Date, q.CustomerName, q.ValidUntil, q.Total.StringFixed(2), q.Notes, q.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM quotation_items WHERE quotation_id=$1`, q.ID); err != nil {
		return err
	}
	if err := insertItems(ctx, tx, q.ID, q.Items); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *repository) StatusCAS(ctx context.Context, id uuid.UUID, from, to Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE quotations SET status=$1, updated_at=now() WHERE id=$2 AND status=$3`, to, id, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

func (r *repository) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]Quotation, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+quotationColumns+` FROM quotations
WHERE status=$1 AND valid_until < $2 ORDER BY valid_until ASC`, StatusRequestApprove, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Quotation
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *repository) queryItems(ctx context.Context, quotationID uuid.UUID) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, item_id, description, qty::text, unit_price::text, discount_pct::text, tax_pct::text, subtotal::text
FROM quotation_items WHERE quotation_id=$1 ORDER BY id ASC`, quotationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var item Item
		var qty, price, disc, tax, subtotal string
		if err := rows.Scan(&item.ID, &item.ItemID, &item.Description, &qty, &price, &disc, &tax, &subtotal); err != nil {
			return nil, err
		}
		for _, pair := range []struct {
			dst *decimal.Decimal
			src string
		}{
			{&item.Qty, qty},
			{&item.UnitPrice, price},
			{&item.DiscountPct, disc},
			{&item.TaxPct, tax},
			{&item.Subtotal, subtotal},
		} {
			if *pair.dst, err = decimal.NewFromString(pair.src); err != nil {
				return nil, err
			}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func insertItems(ctx context.Context, tx pgx.Tx, quotationID uuid.UUID, items []Item) error {
	for _, item := range items {
		_, err := tx.Exec(ctx, `INSERT INTO quotation_items (quotation_id, item_id, description, qty, unit_price, discount_pct, tax_pct, subtotal)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			quotationID, item.ItemID, item.Description, item.Qty.String(), item.UnitPrice.StringFixed(2), item.DiscountPct.String(), item.TaxPct.String(), item.Subtotal.StringFixed(2))
		if err != nil {
			return err
		}
	}
	return nil
}

func scanQuotation(row pgx.Row) (Quotation, error) {
	var q Quotation
	var total string
	err := row.Scan(&q.ID, &q.Number, &q.Date, &q.CustomerName, &q.ValidUntil, &q.Status, &total, &q.Notes, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Quotation{}, shared.ErrNotFound
	}
	if err != nil {
		return Quotation{}, err
	}
	if q.Total, err = decimal.NewFromString(total); err != nil {
		return Quotation{}, err
	}
	return q, nil
}
