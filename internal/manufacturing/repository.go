package manufacturing

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

// NewRepository constructs the PostgreSQL production order repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, number, date, product_name, warehouse_id, status, created_by, created_at, updated_at
FROM production_orders WHERE id=$1`, id)
	var o Order
	err := row.Scan(&o.ID, &o.Number, &o.Date, &o.ProductName, &o.WarehouseID, &o.Status, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, shared.ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	o.Materials, err = r.queryMaterials(ctx, id)
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
	_, err = tx.Exec(ctx, `INSERT INTO production_orders (id, number, date, product_name, warehouse_id, status, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		o.ID, o.Number, o.Date, o.ProductName, o.WarehouseID, o.Status, o.CreatedBy, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}
	for _, m := range o.Materials {
		_, err := tx.Exec(ctx, `INSERT INTO production_order_materials (order_id, item_id, description, qty_required, unit_cost, inventory_account_id)
VALUES ($1, $2, $3, $4, $5, $6)`,
			o.ID, m.ItemID, m.Description, m.QtyRequired.StringFixed(2), m.UnitCost.StringFixed(2), m.InventoryAccountID)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *repository) StatusCAS(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to Status) error {
	const sql = `UPDATE production_orders SET status=$1, updated_at=now() WHERE id=$2 AND status=$3`
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

func (r *repository) SaveFulfillment(ctx context.Context, orderID uuid.UUID, lines []Fulfillment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if _, err := tx.Exec(ctx, `DELETE FROM material_fulfillments WHERE order_id=$1`, orderID); err != nil {
		return err
	}
	for _, line := range lines {
		_, err := tx.Exec(ctx, `INSERT INTO material_fulfillments (order_id, item_id, qty_required, qty_available, percent, checked_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
			orderID, line.ItemID, line.Required.StringFixed(2), line.Available.StringFixed(2), line.Percent.StringFixed(2), line.CheckedAt)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *repository) ListFulfillment(ctx context.Context, orderID uuid.UUID) ([]Fulfillment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, item_id, qty_required::text, qty_available::text, percent::text, checked_at
FROM material_fulfillments WHERE order_id=$1 ORDER BY id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Fulfillment
	for rows.Next() {
		var line Fulfillment
		var required, available, percent string
		if err := rows.Scan(&line.ID, &line.OrderID, &line.ItemID, &required, &available, &percent, &line.CheckedAt); err != nil {
			return nil, err
		}
		if line.Required, err = decimal.NewFromString(required); err != nil {
			return nil, err
		}
		if line.Available, err = decimal.NewFromString(available); err != nil {
			return nil, err
		}
		if line.Percent, err = decimal.NewFromString(percent); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *repository) InsertIssue(ctx context.Context, tx pgx.Tx, issue Issue) error {
	const sql = `INSERT INTO material_issues (id, number, order_id, date, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	var err error
	if tx != nil {
		_, err = tx.Exec(ctx, sql, issue.ID, issue.Number, issue.OrderID, issue.Date, issue.CreatedBy, issue.CreatedAt)
	} else {
		_, err = r.pool.Exec(ctx, sql, issue.ID, issue.Number, issue.OrderID, issue.Date, issue.CreatedBy, issue.CreatedAt)
	}
	return err
}

func (r *repository) GetIssueByOrder(ctx context.Context, orderID uuid.UUID) (Issue, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, number, order_id, date, created_by, created_at
FROM material_issues WHERE order_id=$1 ORDER BY created_at DESC LIMIT 1`, orderID)
	var issue Issue
	err := row.Scan(&issue.ID, &issue.Number, &issue.OrderID, &issue.Date, &issue.CreatedBy, &issue.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Issue{}, shared.ErrNotFound
	}
	return issue, err
}

func (r *repository) queryMaterials(ctx context.Context, orderID uuid.UUID) ([]Material, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, item_id, description, qty_required::text, unit_cost::text, inventory_account_id
FROM production_order_materials WHERE order_id=$1 ORDER BY id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var materials []Material
	for rows.Next() {
		var m Material
		var qty, cost string
		if err := rows.Scan(&m.ID, &m.ItemID, &m.Description, &qty, &cost, &m.InventoryAccountID); err != nil {
			return nil, err
		}
		if m.QtyRequired, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		if m.UnitCost, err = decimal.NewFromString(cost); err != nil {
			return nil, err
		}
		materials = append(materials, m)
	}
	return materials, rows.Err()
}
