package recon

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nusantara-erp/nusantara-erp/internal/accounting/ledger"
	"github.com/nusantara-erp/nusantara-erp/internal/platform/db"
	"github.com/nusantara-erp/nusantara-erp/internal/shared"
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL reconciliation repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const reconColumns = `id, account_id, statement_date, reference, status, created_by, created_at, completed_at`

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *repository) Get(ctx context.Context, id int64) (Reconciliation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+reconColumns+` FROM reconciliations WHERE id=$1`, id)
	return scanReconciliation(row)
}

func (r *repository) ListUnclearedLines(ctx context.Context, accountID int64, until time.Time) ([]ledger.Line, error) {
	rows, err := r.pool.Query(ctx, `SELECT l.id, l.posting_id, l.account_id, p.date, l.debit::text, l.credit::text, l.description, l.recon_id, l.recon_status, l.recon_date, l.created_at
FROM posting_lines l
JOIN postings p ON p.id = l.posting_id
WHERE l.account_id=$1 AND l.recon_status=$2 AND p.status=$3 AND p.date <= $4
ORDER BY p.date ASC, l.id ASC`, accountID, ledger.ReconUncleared, ledger.PostingStatusPosted, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []ledger.Line
	for rows.Next() {
		line, err := ledger.ScanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Reconciliation, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+reconColumns+` FROM reconciliations WHERE id=$1 FOR UPDATE`, id)
	return scanReconciliation(row)
}

func (r *txRepository) ClearLines(ctx context.Context, reconID int64, lineIDs []int64, date time.Time) (int64, error) {
	tag, err := r.tx.Exec(ctx, `UPDATE posting_lines
SET recon_id=$1, recon_status=$2, recon_date=$3
WHERE id = ANY($4) AND recon_status=$5`,
		reconID, ledger.ReconCleared, date, lineIDs, ledger.ReconUncleared)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *txRepository) Complete(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE reconciliations SET status=$1, completed_at=$2 WHERE id=$3 AND status=$4`,
		StatusCompleted, at, id, StatusOpen)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

func scanReconciliation(row pgx.Row) (Reconciliation, error) {
	var rec Reconciliation
	err := row.Scan(&rec.ID, &rec.AccountID, &rec.StatementDate, &rec.Reference, &rec.Status, &rec.CreatedBy, &rec.CreatedAt, &rec.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Reconciliation{}, shared.ErrNotFound
	}
	return rec, err
}
