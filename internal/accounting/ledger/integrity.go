package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// IntegrityIssue describes a stored posting whose lines no longer balance.
// ValidateBalanced rejects unbalanced sets on the way in, so an issue here
// means rows were mutated outside the poster.
type IntegrityIssue struct {
	PostingID int64
	Number    int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// Diff returns the absolute debit/credit difference.
func (i IntegrityIssue) Diff() decimal.Decimal {
	return i.Debit.Sub(i.Credit).Abs()
}

// IntegrityScanner audits stored postings against the balance invariant.
type IntegrityScanner struct {
	pool *pgxpool.Pool
}

// NewIntegrityScanner constructs a scanner over a pool.
func NewIntegrityScanner(pool *pgxpool.Pool) *IntegrityScanner {
	return &IntegrityScanner{pool: pool}
}

// Scan returns every posting whose line totals differ by more than Tolerance.
func (s *IntegrityScanner) Scan(ctx context.Context) ([]IntegrityIssue, error) {
	rows, err := s.pool.Query(ctx, `SELECT p.id, p.number, COALESCE(SUM(l.debit),0)::text, COALESCE(SUM(l.credit),0)::text
FROM postings p
JOIN posting_lines l ON l.posting_id = p.id
GROUP BY p.id, p.number
HAVING ABS(COALESCE(SUM(l.debit),0) - COALESCE(SUM(l.credit),0)) > 0.01
ORDER BY p.id`)
	if err != nil {
		return nil, fmt.Errorf("ledger: integrity scan: %w", err)
	}
	defer rows.Close()

	var issues []IntegrityIssue
	for rows.Next() {
		var issue IntegrityIssue
		var debit, credit string
		if err := rows.Scan(&issue.PostingID, &issue.Number, &debit, &credit); err != nil {
			return nil, err
		}
		if issue.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, err
		}
		if issue.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}
