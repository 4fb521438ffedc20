package reports

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrialBalanceRow is one account's posted totals up to the report date.
type TrialBalanceRow struct {
	AccountID int64           `json:"account_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

// TrialBalance lists per-account totals with their grand totals. On a sound
// ledger the grand totals are equal.
type TrialBalance struct {
	AsOf        time.Time         `json:"as_of"`
	Rows        []TrialBalanceRow `json:"rows"`
	TotalDebit  decimal.Decimal   `json:"total_debit"`
	TotalCredit decimal.Decimal   `json:"total_credit"`
}

// Balanced reports whether the grand totals match.
func (t TrialBalance) Balanced() bool {
	return t.TotalDebit.Equal(t.TotalCredit)
}
