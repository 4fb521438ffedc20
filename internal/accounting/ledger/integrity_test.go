package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestIntegrityIssueDiff(t *testing.T) {
	p := Posting{ID: 7, Number: 42}
	issue := IntegrityIssue{
		PostingID: p.ID,
		Number:    p.Number,
		Debit:     decimal.NewFromInt(100_000),
		Credit:    decimal.NewFromInt(99_500),
	}
	require.True(t, issue.Diff().Equal(decimal.NewFromInt(500)))

	flipped := IntegrityIssue{Debit: issue.Credit, Credit: issue.Debit}
	require.True(t, flipped.Diff().Equal(decimal.NewFromInt(500)))
}
