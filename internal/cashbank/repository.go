package cashbank

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nusantara-erp/nusantara-erp/internal/shared"
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL voucher repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const transactionColumns = `id, number, date, account_id, direction, amount::text, description, status, created_by, created_at, updated_at`

func (r *repository) GetTransaction(ctx context.Context, id uuid.UUID) (Transaction, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM cashbank_transactions WHERE id=$1`, id)
	t, err := scanTransaction(row)
	if err != nil {
		return Transaction{}, err
	}
	t.Details, err = r.queryDetails(ctx, id)
	return t, err
}

func (r *repository) InsertTransaction(ctx context.Context, t Transaction) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	_, err = tx.Exec(ctx, `INSERT INTO cashbank_transactions (id, number, date, account_id, direction, amount, description, status, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, t.Number, t.Date, t.AccountID, t.Direction, t.Amount.StringFixed(2), t.Description, t.Status, t.CreatedBy, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return err
	}
	if err := insertDetails(ctx, tx, t.ID, t.Details); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *repository) UpdateTransaction(ctx context.Context, tx pgx.Tx, t Transaction) error {
	if tx != nil {
		return updateTransactionTx(ctx, tx, t)
	}
	own, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = own.Rollback(ctx)
	}()
	if err := updateTransactionTx(ctx, own, t); err != nil {
		return err
	}
	return own.Commit(ctx)
}

func updateTransactionTx(ctx context.Context, tx pgx.Tx, t Transaction) error {
	tag, err := tx.Exec(ctx, `UPDATE cashbank_transactions
SET date=$2, account_id=$3, direction=$4, amount=$5, description=$6, updated_at=$7
WHERE id=$1`,
		t.ID, t.Date, t.AccountID, t.Direction, t.Amount.StringFixed(2), t.Description, t.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM cashbank_details WHERE transaction_id=$1`, t.ID); err != nil {
		return err
	}
	return insertDetails(ctx, tx, t.ID, t.Details)
}

func (r *repository) TransactionStatusCAS(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to Status) error {
	return statusCAS(ctx, r.pool, tx, `UPDATE cashbank_transactions SET status=$1, updated_at=now() WHERE id=$2 AND status=$3`, id, from, to)
}

const transferColumns = `id, number, date, from_account_id, to_account_id, amount::text, other_costs::text, fee_account_id, description, status, created_by, created_at, updated_at`

func (r *repository) GetTransfer(ctx context.Context, id uuid.UUID) (Transfer, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+transferColumns+` FROM cashbank_transfers WHERE id=$1`, id)
	return scanTransfer(row)
}

func (r *repository) InsertTransfer(ctx context.Context, t Transfer) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO cashbank_transfers (id, number, date, from_account_id, to_account_id, amount, other_costs, fee_account_id, description, status, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		t.ID, t.Number, t.Date, t.FromAccountID, t.ToAccountID, t.Amount.StringFixed(2), t.OtherCosts.StringFixed(2), nullInt64(t.FeeAccountID), t.Description, t.Status, t.CreatedBy, t.CreatedAt, t.UpdatedAt)
	return err
}

func (r *repository) UpdateTransfer(ctx context.Context, tx pgx.Tx, t Transfer) error {
	var exec interface {
		Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	} = r.pool
	if tx != nil {
		exec = tx
	}
	tag, err := exec.Exec(ctx, `UPDATE cashbank_transfers
SET date=$2, from_account_id=$3, to_account_id=$4, amount=$5, other_costs=$6, fee_account_id=$7, description=$8, updated_at=$9
WHERE id=$1`,
		t.ID, t.Date, t.FromAccountID, t.ToAccountID, t.Amount.StringFixed(2), t.OtherCosts.StringFixed(2), nullInt64(t.FeeAccountID), t.Description, t.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) TransferStatusCAS(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to Status) error {
	return statusCAS(ctx, r.pool, tx, `UPDATE cashbank_transfers SET status=$1, updated_at=now() WHERE id=$2 AND status=$3`, id, from, to)
}

func statusCAS(ctx context.Context, pool *pgxpool.Pool, tx pgx.Tx, sql string, id uuid.UUID, from, to Status) error {
	var tag interface{ RowsAffected() int64 }
	var err error
	if tx != nil {
		tag, err = tx.Exec(ctx, sql, to, id, from)
	} else {
		tag, err = pool.Exec(ctx, sql, to, id, from)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

func (r *repository) queryDetails(ctx context.Context, transactionID uuid.UUID) ([]Detail, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, account_id, amount::text, description
FROM cashbank_details WHERE transaction_id=$1 ORDER BY id ASC`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var details []Detail
	for rows.Next() {
		var d Detail
		var amount string
		if err := rows.Scan(&d.ID, &d.AccountID, &amount, &d.Description); err != nil {
			return nil, err
		}
		if d.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

func insertDetails(ctx context.Context, tx pgx.Tx, transactionID uuid.UUID, details []Detail) error {
	for _, d := range details {
		_, err := tx.Exec(ctx, `INSERT INTO cashbank_details (transaction_id, account_id, amount, description)
VALUES ($1, $2, $3, $4)`, transactionID, d.AccountID, d.Amount.StringFixed(2), d.Description)
		if err != nil {
			return err
		}
	}
	return nil
}

func nullInt64(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	var amount string
	err := row.Scan(&t.ID, &t.Number, &t.Date, &t.AccountID, &t.Direction, &amount, &t.Description, &t.Status, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, shared.ErrNotFound
	}
	if err != nil {
		return Transaction{}, err
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

func scanTransfer(row pgx.Row) (Transfer, error) {
	var t Transfer
	var amount, otherCosts string
	var feeAccountID *int64
	err := row.Scan(&t.ID, &t.Number, &t.Date, &t.FromAccountID, &t.ToAccountID, &amount, &otherCosts, &feeAccountID, &t.Description, &t.Status, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transfer{}, shared.ErrNotFound
	}
	if err != nil {
		return Transfer{}, err
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return Transfer{}, err
	}
	if t.OtherCosts, err = decimal.NewFromString(otherCosts); err != nil {
		return Transfer{}, err
	}
	if feeAccountID != nil {
		t.FeeAccountID = *feeAccountID
	}
	return t, nil
}
