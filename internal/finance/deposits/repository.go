package deposits

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

// NewRepository constructs the PostgreSQL deposit repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const depositColumns = `id, number, date, owner_kind, owner_id, owner_name, account_id, counter_account_id, amount::text, used_amount::text, remaining_amount::text, note, status, created_by, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Deposit, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+depositColumns+` FROM deposits WHERE id=$1`, id)
	return scanDeposit(row)
}

func (r *repository) Insert(ctx context.Context, tx pgx.Tx, d Deposit) error {
	const sql = `INSERT INTO deposits (id, number, date, owner_kind, owner_id, owner_name, account_id, counter_account_id, amount, used_amount, remaining_amount, note, status, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	args := []any{d.ID, d.Number, d.Date, d.OwnerKind, d.OwnerID, d.OwnerName, d.AccountID, d.CounterAccountID,
		d.Amount.StringFixed(2), d.Used.StringFixed(2), d.Remaining.StringFixed(2), d.Note, d.Status, d.CreatedBy, d.CreatedAt, d.UpdatedAt}
	var err error
	if tx != nil {
		_, err = tx.Exec(ctx, sql, args...)
	} else {
		_, err = r.pool.Exec(ctx, sql, args...)
	}
	return err
}

// Apply moves the deposit balance and writes the matching log row in one
// transaction, so remaining_amount never drifts from the log deltas. A nil tx
// opens its own transaction.
func (r *repository) Apply(ctx context.Context, tx pgx.Tx, log Log) (decimal.Decimal, error) {
	if tx == nil {
		own, err := r.pool.Begin(ctx)
		if err != nil {
			return decimal.Zero, err
		}
		defer func() {
			_ = own.Rollback(ctx)
		}()
		remaining, err := applyTx(ctx, own, log)
		if err != nil {
			return decimal.Zero, err
		}
		if err := own.Commit(ctx); err != nil {
			return decimal.Zero, err
		}
		return remaining, nil
	}
	return applyTx(ctx, tx, log)
}

func applyTx(ctx context.Context, tx pgx.Tx, log Log) (decimal.Decimal, error) {
	update := `UPDATE deposits
SET used_amount=used_amount+$1, remaining_amount=remaining_amount-$1, updated_at=now()
WHERE id=$2 AND status='active' AND remaining_amount >= $1
RETURNING remaining_amount::text`
	args := []any{log.Amount.StringFixed(2), log.DepositID}
	if log.Type == LogCreate {
		// The create row is written by Insert with the full balance, the log
		// entry just needs to exist.
		update = `UPDATE deposits SET updated_at=now() WHERE id=$1 AND status='active' RETURNING remaining_amount::text`
		args = []any{log.DepositID}
	}

	var remaining string
	if err := tx.QueryRow(ctx, update, args...).Scan(&remaining); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, shared.ErrConcurrencyConflict
		}
		return decimal.Zero, err
	}
	_, err := tx.Exec(ctx, `INSERT INTO deposit_logs (id, deposit_id, type, amount, note, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		log.ID, log.DepositID, log.Type, log.Amount.StringFixed(2), log.Note, log.CreatedBy, log.CreatedAt)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(remaining)
}

func (r *repository) ListLogs(ctx context.Context, depositID uuid.UUID) ([]Log, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, deposit_id, type, amount::text, note, created_by, created_at
FROM deposit_logs WHERE deposit_id=$1 ORDER BY created_at ASC, id ASC`, depositID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var logs []Log
	for rows.Next() {
		var l Log
		var amount string
		if err := rows.Scan(&l.ID, &l.DepositID, &l.Type, &amount, &l.Note, &l.CreatedBy, &l.CreatedAt); err != nil {
			return nil, err
		}
		if l.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (r *repository) StatusCAS(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to Status) error {
	const sql = `UPDATE deposits SET status=$1, updated_at=now() WHERE id=$2 AND status=$3`
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

func scanDeposit(row pgx.Row) (Deposit, error) {
	var d Deposit
	var amount, used, remaining string
	err := row.Scan(&d.ID, &d.Number, &d.Date, &d.OwnerKind, &d.OwnerID, &d.OwnerName, &d.AccountID, &d.CounterAccountID,
		&amount, &used, &remaining, &d.Note, &d.Status, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Deposit{}, shared.ErrNotFound
	}
	if err != nil {
		return Deposit{}, err
	}
	if d.Amount, err = decimal.NewFromString(amount); err != nil {
		return Deposit{}, err
	}
	if d.Used, err = decimal.NewFromString(used); err != nil {
		return Deposit{}, err
	}
	if d.Remaining, err = decimal.NewFromString(remaining); err != nil {
		return Deposit{}, err
	}
	return d, nil
}
