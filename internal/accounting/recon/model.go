// Package recon matches ledger lines against external bank statements.
package recon

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates reconciliation period lifecycle values.
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusCompleted Status = "COMPLETED"
)

// Reconciliation is one statement-matching session for a bank account.
type Reconciliation struct {
	ID            int64
	AccountID     int64
	StatementDate time.Time
	Reference     string
	Status        Status
	CreatedBy     int64
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

// StatementLine is one row of the external bank statement. Amount is signed
// from the bank account's perspective: positive for money in.
type StatementLine struct {
	Date      time.Time
	Amount    decimal.Decimal
	Reference string
}

// MatchPair records a statement line matched to a ledger line.
type MatchPair struct {
	LedgerLineID int64
	Statement    StatementLine
}

// MatchReport summarises an auto-match run. Ambiguous statement lines had
// more than one candidate and are left for manual selection.
type MatchReport struct {
	Matched   []MatchPair
	Ambiguous []StatementLine
	Unmatched []StatementLine
}
