package payments

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

// NewRepository constructs the PostgreSQL payment request repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const requestColumns = `id, number, date, payee_name, amount::text, description, status, cash_bank_transaction_id, approved_by, approved_at, created_by, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Request, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM payment_requests WHERE id=$1`, id)
	return scanRequest(row)
}

func (r *repository) Insert(ctx context.Context, req Request) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO payment_requests (id, number, date, payee_name, amount, description, status, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		req.ID, req.Number, req.Date, req.PayeeName, req.Amount.StringFixed(2), req.Description, req.Status, req.CreatedBy, req.CreatedAt, req.UpdatedAt)
	return err
}

func (r *repository) Update(ctx context.Context, req Request) error {
	tag, err := r.pool.Exec(ctx, `UPDATE payment_requests
SET date=$2, payee_name=$3, amount=$4, description=$5, updated_at=$6
WHERE id=$1`,
		req.ID, req.Date, req.PayeeName, req.Amount.StringFixed(2), req.Description, req.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) StatusCAS(ctx context.Context, id uuid.UUID, from, to Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE payment_requests SET status=$1, updated_at=now() WHERE id=$2 AND status=$3`, to, id, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

func (r *repository) SetApproval(ctx context.Context, id uuid.UUID, approvedBy int64, approvedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE payment_requests SET approved_by=$2, approved_at=$3, updated_at=now() WHERE id=$1`,
		id, approvedBy, approvedAt)
	return err
}

func (r *repository) LinkTransaction(ctx context.Context, id, transactionID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE payment_requests
SET cash_bank_transaction_id=$2, updated_at=now()
WHERE id=$1 AND cash_bank_transaction_id IS NULL`, id, transactionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	var amount string
	err := row.Scan(&req.ID, &req.Number, &req.Date, &req.PayeeName, &amount, &req.Description, &req.Status,
		&req.TransactionID, &req.ApprovedBy, &req.ApprovedAt, &req.CreatedBy, &req.CreatedAt, &req.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, shared.ErrNotFound
	}
	if err != nil {
		return Request{}, err
	}
	if req.Amount, err = decimal.NewFromString(amount); err != nil {
		return Request{}, err
	}
	return req, nil
}
