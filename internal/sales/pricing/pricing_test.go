package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestSubtotal(t *testing.T) {
	cases := []struct {
		name                  string
		qty, price, disc, tax string
		want                  string
	}{
		{"discount and tax", "10", "5000", "10", "11", "49950"},
		{"no discount no tax", "3", "12500", "0", "0", "37500"},
		{"tax only", "1", "100000", "0", "11", "111000"},
		{"discount only", "4", "25000", "5", "0", "95000"},
		{"fractional qty", "2.5", "10000", "0", "11", "27750"},
		{"rounding", "1", "9999", "3", "11", "10765.92"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Subtotal(d(tc.qty), d(tc.price), d(tc.disc), d(tc.tax))
			require.True(t, got.Equal(d(tc.want)), "got %s want %s", got, tc.want)
		})
	}
}

func TestDiscountAndTaxAmounts(t *testing.T) {
	disc := DiscountAmount(d("10"), d("5000"), d("10"))
	require.True(t, disc.Equal(d("5000")))

	tax := TaxAmount(d("10"), d("5000"), d("10"), d("11"))
	require.True(t, tax.Equal(d("4950")))

	// subtotal = gross - discount + tax
	subtotal := Subtotal(d("10"), d("5000"), d("10"), d("11"))
	gross := d("10").Mul(d("5000"))
	require.True(t, subtotal.Equal(gross.Sub(disc).Add(tax)))
}
