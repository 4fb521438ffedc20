package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestValidateBalanced(t *testing.T) {
	t.Run("balanced two lines", func(t *testing.T) {
		lines := []LineInput{
			Debit(1, dec("1000000"), ""),
			Credit(2, dec("1000000"), ""),
		}
		require.NoError(t, ValidateBalanced(lines))
	})

	t.Run("difference inside tolerance passes", func(t *testing.T) {
		lines := []LineInput{
			Debit(1, dec("100.00"), ""),
			Credit(2, dec("99.99"), ""),
		}
		require.NoError(t, ValidateBalanced(lines))
	})

	t.Run("difference beyond tolerance fails", func(t *testing.T) {
		lines := []LineInput{
			Debit(1, dec("100.00"), ""),
			Credit(2, dec("99.98"), ""),
		}
		err := ValidateBalanced(lines)
		require.Error(t, err)
		var imbalance *ImbalanceError
		require.ErrorAs(t, err, &imbalance)
		require.True(t, imbalance.TotalDebit.Equal(dec("100.00")))
		require.True(t, imbalance.TotalCredit.Equal(dec("99.98")))
		require.True(t, imbalance.Difference.Equal(dec("0.02")))
	})

	t.Run("multi line split balances", func(t *testing.T) {
		lines := []LineInput{
			Debit(1, dec("1500000"), ""),
			Credit(2, dec("1000000"), ""),
			Credit(3, dec("500000"), ""),
		}
		require.NoError(t, ValidateBalanced(lines))
	})
}

func TestValidateLine(t *testing.T) {
	require.Error(t, ValidateLine(0, LineInput{AccountID: 0, Debit: dec("10")}))
	require.Error(t, ValidateLine(0, LineInput{AccountID: 1, Debit: dec("-10")}))
	require.Error(t, ValidateLine(0, LineInput{AccountID: 1, Debit: dec("10"), Credit: dec("10")}))
	require.Error(t, ValidateLine(0, LineInput{AccountID: 1}))
	require.NoError(t, ValidateLine(0, Debit(1, dec("10"), "ok")))
}

func TestPostingInputValidate(t *testing.T) {
	base := func() PostingInput {
		return PostingInput{
			Date:        testDate,
			Source:      NewSourceRef(KindCashBankTransfer, testUUID),
			JournalType: "transfer",
			Lines: []LineInput{
				Debit(1, dec("1000"), ""),
				Credit(2, dec("1000"), ""),
			},
		}
	}

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, base().Validate())
	})

	t.Run("missing source", func(t *testing.T) {
		in := base()
		in.Source = SourceRef{}
		require.Error(t, in.Validate())
	})

	t.Run("unknown kind", func(t *testing.T) {
		in := base()
		in.Source.Kind = "SOMETHING_ELSE"
		require.Error(t, in.Validate())
	})

	t.Run("single line rejected", func(t *testing.T) {
		in := base()
		in.Lines = in.Lines[:1]
		require.ErrorIs(t, in.Validate(), ErrTooFewLines)
	})

	t.Run("unbalanced rejected", func(t *testing.T) {
		in := base()
		in.Lines[1] = Credit(2, dec("900"), "")
		var imbalance *ImbalanceError
		require.ErrorAs(t, in.Validate(), &imbalance)
	})
}
