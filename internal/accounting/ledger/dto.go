package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// LineInput describes a proposed ledger line.
type LineInput struct {
	AccountID   int64
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

// Debit builds a debit-side line input.
func Debit(accountID int64, amount decimal.Decimal, description string) LineInput {
	return LineInput{AccountID: accountID, Debit: amount, Description: description}
}

// Credit builds a credit-side line input.
func Credit(accountID int64, amount decimal.Decimal, description string) LineInput {
	return LineInput{AccountID: accountID, Credit: amount, Description: description}
}

// PostingInput groups fields required to write a posting.
type PostingInput struct {
	Date        time.Time
	Source      SourceRef
	JournalType string
	Reference   string
	Description string
	PostedBy    int64
	Lines       []LineInput
}

// Validate ensures the posting input meets minimum criteria: a valid typed
// source, single-sided non-negative lines, and balanced totals.
func (in PostingInput) Validate() error {
	if in.Source.IsZero() {
		return errors.New("ledger: source reference required")
	}
	if !in.Source.Kind.Valid() {
		return errors.New("ledger: unknown source document kind " + string(in.Source.Kind))
	}
	if in.JournalType == "" {
		return errors.New("ledger: journal type required")
	}
	if in.Date.IsZero() {
		return errors.New("ledger: posting date required")
	}
	if len(in.Lines) < 2 {
		return ErrTooFewLines
	}
	for idx, line := range in.Lines {
		if err := ValidateLine(idx, line); err != nil {
			return err
		}
	}
	return ValidateBalanced(in.Lines)
}
