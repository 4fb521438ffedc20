package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL report repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) TrialBalanceRows(ctx context.Context, asOf time.Time) ([]TrialBalanceRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT a.id, a.code, a.name, a.type,
COALESCE(SUM(l.debit),0)::text, COALESCE(SUM(l.credit),0)::text
FROM accounts a
JOIN posting_lines l ON l.account_id = a.id
JOIN postings p ON p.id = l.posting_id
WHERE p.date <= $1
GROUP BY a.id, a.code, a.name, a.type
ORDER BY a.code`, asOf)
	if err != nil {
		return nil, fmt.Errorf("reports: trial balance: %w", err)
	}
	defer rows.Close()

	var out []TrialBalanceRow
	for rows.Next() {
		var row TrialBalanceRow
		var debit, credit string
		if err := rows.Scan(&row.AccountID, &row.Code, &row.Name, &row.Type, &debit, &credit); err != nil {
			return nil, err
		}
		if row.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, err
		}
		if row.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
