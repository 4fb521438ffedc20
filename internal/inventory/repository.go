package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nusantara-erp/nusantara-erp/internal/platform/db"
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL stock repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

func (r *repository) GetStock(ctx context.Context, itemID, warehouseID int64) (Stock, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, item_id, warehouse_id, qty_available::text, qty_reserved::text, updated_at
FROM inventory_stocks WHERE item_id=$1 AND warehouse_id=$2`, itemID, warehouseID)
	return scanStock(row)
}

func (r *repository) ListMovements(ctx context.Context, itemID, warehouseID int64, limit int) ([]Movement, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, item_id, warehouse_id, kind, qty::text, source_kind, source_id, note, actor_id, created_at
FROM inventory_movements WHERE item_id=$1 AND warehouse_id=$2 ORDER BY id DESC LIMIT $3`, itemID, warehouseID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var movements []Movement
	for rows.Next() {
		var m Movement
		var qty string
		if err := rows.Scan(&m.ID, &m.ItemID, &m.WarehouseID, &m.Kind, &qty, &m.Source.Kind, &m.Source.ID, &m.Note, &m.ActorID, &m.CreatedAt); err != nil {
			return nil, err
		}
		if m.Qty, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps a caller-owned transaction so stock writes can join
// a journal posting transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *txRepository) Tx() pgx.Tx {
	return r.tx
}

func (r *txRepository) GetStockForUpdate(ctx context.Context, itemID, warehouseID int64) (Stock, error) {
	row := r.tx.QueryRow(ctx, `SELECT id, item_id, warehouse_id, qty_available::text, qty_reserved::text, updated_at
FROM inventory_stocks WHERE item_id=$1 AND warehouse_id=$2 FOR UPDATE`, itemID, warehouseID)
	return scanStock(row)
}

func (r *txRepository) UpsertStock(ctx context.Context, stock Stock) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO inventory_stocks (item_id, warehouse_id, qty_available, qty_reserved, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (item_id, warehouse_id) DO UPDATE
SET qty_available = EXCLUDED.qty_available, qty_reserved = EXCLUDED.qty_reserved, updated_at = EXCLUDED.updated_at`,
		stock.ItemID, stock.WarehouseID, stock.QtyAvailable.StringFixed(2), stock.QtyReserved.StringFixed(2), stock.UpdatedAt)
	return err
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO inventory_movements (item_id, warehouse_id, kind, qty, source_kind, source_id, note, actor_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ItemID, m.WarehouseID, m.Kind, m.Qty.StringFixed(2), m.Source.Kind, m.Source.ID, m.Note, m.ActorID, m.CreatedAt)
	return err
}

func scanStock(row pgx.Row) (Stock, error) {
	var stock Stock
	var available, reserved string
	err := row.Scan(&stock.ID, &stock.ItemID, &stock.WarehouseID, &available, &reserved, &stock.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Stock{}, ErrStockNotFound
	}
	if err != nil {
		return Stock{}, err
	}
	if stock.QtyAvailable, err = decimal.NewFromString(available); err != nil {
		return Stock{}, err
	}
	if stock.QtyReserved, err = decimal.NewFromString(reserved); err != nil {
		return Stock{}, err
	}
	return stock, nil
}
