package delivery

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

// NewRepository constructs the PostgreSQL delivery order repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const orderColumns = `id, number, date, customer_name, warehouse_id, surat_jalan, description, status, created_by, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM delivery_orders WHERE id=$1`, id)
	var o Order
	err := row.Scan(&o.ID, &o.Number, &o.Date, &o.CustomerName, &o.WarehouseID, &o.SuratJalan, &o.Description, &o.Status, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, shared.ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	o.Items, err = r.queryItems(ctx, id)
	return o, err
}

func (r *repository) Insert(ctx context.Context, o Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	_, err = tx.Exec(ctx, `INSERT INTO delivery_orders (id, number, date, customer_name, warehouse_id, surat_jalan, description, status, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		o.ID, o.Number, o.Date, o.CustomerName, o.WarehouseID, o.SuratJalan, o.Description, o.Status, o.CreatedBy, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}
	if err := insertItems(ctx, tx, o.ID, o.Items); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *repository) Update(ctx context.Context, o Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	tag, err := tx.Exec(ctx, `UPDATE delivery_orders
SET date=$2, customer_name=$3, warehouse_id=$4, surat_jalan=$5, description=$6, updated_at=$7
WHERE id=$1`,
		o.ID, o.Date, o.CustomerName, o.WarehouseID, o.SuratJalan, o.Description, o.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM delivery_order_items WHERE order_id=$1`, o.ID); err != nil {
		return err
	}
	if err := insertItems(ctx, tx, o.ID, o.Items); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *repository) StatusCAS(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to Status) error {
	const sql = `UPDATE delivery_orders SET status=$1, updated_at=now() WHERE id=$2 AND status=$3`
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

func (r *repository) queryItems(ctx context.Context, orderID uuid.UUID) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, item_id, description, qty::text, unit_cost::text, inventory_account_id, cogs_account_id
FROM delivery_order_items WHERE order_id=$1 ORDER BY id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var item Item
		var qty, cost string
		if err := rows.Scan(&item.ID, &item.ItemID, &item.Description, &qty, &cost, &item.InventoryAccountID, &item.CogsAccountID); err != nil {
			return nil, err
		}
		if item.Qty, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		if item.UnitCost, err = decimal.NewFromString(cost); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func insertItems(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, items []Item) error {
	for _, item := range items {
		_, err := tx.Exec(ctx, `INSERT INTO delivery_order_items (order_id, item_id, description, qty, unit_cost, inventory_account_id, cogs_account_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			orderID, item.ItemID, item.Description, item.Qty.StringFixed(2), item.UnitCost.StringFixed(2), item.InventoryAccountID, item.CogsAccountID)
		if err != nil {
			return err
		}
	}
	return nil
}
