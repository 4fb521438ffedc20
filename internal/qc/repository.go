package qc

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nusantara-erp/nusantara-erp/internal/shared"
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL quality control repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Control, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, number, date, supplier_name, warehouse_id, return_account_id, status, created_by, created_at, updated_at
FROM quality_controls WHERE id=$1`, id)
	var c Control
	err := row.Scan(&c.ID, &c.Number, &c.Date, &c.SupplierName, &c.WarehouseID, &c.ReturnAccountID, &c.Status, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Control{}, shared.ErrNotFound
	}
	if err != nil {
		return Control{}, err
	}
	c.Items, err = r.queryItems(ctx, id)
	return c, err
}

func (r *repository) queryItems(ctx context.Context, controlID uuid.UUID) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, item_id, description, qty_passed::text, qty_failed::text, unit_cost::text, inventory_account_id, return_processed
FROM quality_control_items WHERE control_id=$1 ORDER BY id ASC`, controlID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var item Item
		var passed, failed, cost string
		if err := rows.Scan(&item.ID, &item.ItemID, &item.Description, &passed, &failed, &cost, &item.InventoryAccountID, &item.ReturnProcessed); err != nil {
			return nil, err
		}
		if item.QtyPassed, err = decimal.NewFromString(passed); err != nil {
			return nil, err
		}
		if item.QtyFailed, err = decimal.NewFromString(failed); err != nil {
			return nil, err
		}
		if item.UnitCost, err = decimal.NewFromString(cost); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *repository) Insert(ctx context.Context, c Control) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	_, err = tx.Exec(ctx, `INSERT INTO quality_controls (id, number, date, supplier_name, warehouse_id, return_account_id, status, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.Number, c.Date, c.SupplierName, c.WarehouseID, c.ReturnAccountID, c.Status, c.CreatedBy, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return err
	}
	for _, item := range c.Items {
		_, err := tx.Exec(ctx, `INSERT INTO quality_control_items (control_id, item_id, description, qty_passed, qty_failed, unit_cost, inventory_account_id, return_processed)
VALUES ($1, $2, $3, $4, $5, $6, $7, false)`,
			c.ID, item.ItemID, item.Description, item.QtyPassed.StringFixed(2), item.QtyFailed.StringFixed(2), item.UnitCost.StringFixed(2), nullAccount(item.InventoryAccountID))
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *repository) StatusCAS(ctx context.Context, id uuid.UUID, from, to Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE quality_controls SET status=$1, updated_at=now() WHERE id=$2 AND status=$3`, to, id, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

func (r *repository) MarkItemProcessed(ctx context.Context, tx pgx.Tx, itemID int64) error {
	const sql = `UPDATE quality_control_items SET return_processed=true WHERE id=$1 AND return_processed=false`
	var tag interface{ RowsAffected() int64 }
	var err error
	if tx != nil {
		tag, err = tx.Exec(ctx, sql, itemID)
	} else {
		tag, err = r.pool.Exec(ctx, sql, itemID)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

func (r *repository) InsertReturn(ctx context.Context, tx pgx.Tx, ret Return) error {
	const sql = `INSERT INTO purchase_returns (id, number, control_id, qc_item_id, item_id, qty, unit_cost, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	args := []any{ret.ID, ret.Number, ret.ControlID, ret.QCItemID, ret.ItemID, ret.Qty.StringFixed(2), ret.UnitCost.StringFixed(2), ret.CreatedBy, ret.CreatedAt}
	var err error
	if tx != nil {
		_, err = tx.Exec(ctx, sql, args...)
	} else {
		_, err = r.pool.Exec(ctx, sql, args...)
	}
	return err
}

func (r *repository) ListReturns(ctx context.Context, controlID uuid.UUID) ([]Return, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, number, control_id, qc_item_id, item_id, qty::text, unit_cost::text, created_by, created_at
FROM purchase_returns WHERE control_id=$1 ORDER BY created_at ASC`, controlID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var returns []Return
	for rows.Next() {
		var ret Return
		var qty, cost string
		if err := rows.Scan(&ret.ID, &ret.Number, &ret.ControlID, &ret.QCItemID, &ret.ItemID, &qty, &cost, &ret.CreatedBy, &ret.CreatedAt); err != nil {
			return nil, err
		}
		if ret.Qty, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		if ret.UnitCost, err = decimal.NewFromString(cost); err != nil {
			return nil, err
		}
		returns = append(returns, ret)
	}
	return returns, rows.Err()
}

func nullAccount(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
