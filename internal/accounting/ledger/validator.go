package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Tolerance is the maximum debit/credit difference accepted for a balanced
// posting. Currency amounts are decimals, never binary floats, so the
// tolerance only absorbs rounding of divided percentages.
var Tolerance = decimal.RequireFromString("0.01")

var amountPrinter = message.NewPrinter(language.English)

// ImbalanceError reports totals of an unbalanced line set.
type ImbalanceError struct {
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Difference  decimal.Decimal
}

func (e *ImbalanceError) Error() string {
	return amountPrinter.Sprintf("ledger: lines do not balance: total debit %.2f, total credit %.2f, difference %.2f",
		e.TotalDebit.InexactFloat64(), e.TotalCredit.InexactFloat64(), e.Difference.InexactFloat64())
}

// ValidateBalanced asserts that the proposed lines balance within Tolerance.
// Pure: callable standalone, no side effects.
func ValidateBalanced(lines []LineInput) error {
	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for _, line := range lines {
		totalDebit = totalDebit.Add(line.Debit)
		totalCredit = totalCredit.Add(line.Credit)
	}
	diff := totalDebit.Sub(totalCredit).Abs()
	if diff.Cmp(Tolerance) > 0 {
		return &ImbalanceError{TotalDebit: totalDebit, TotalCredit: totalCredit, Difference: diff}
	}
	return nil
}

// ValidateLine asserts the single-sided movement shape of one line.
func ValidateLine(idx int, line LineInput) error {
	if line.AccountID == 0 {
		return fmt.Errorf("ledger: line %d missing account", idx)
	}
	if line.Debit.IsNegative() || line.Credit.IsNegative() {
		return fmt.Errorf("ledger: line %d negative amount", idx)
	}
	if line.Debit.IsPositive() && line.Credit.IsPositive() {
		return fmt.Errorf("ledger: line %d cannot be both debit and credit", idx)
	}
	if line.Debit.IsZero() && line.Credit.IsZero() {
		return fmt.Errorf("ledger: line %d has no amount", idx)
	}
	return nil
}
