// Package pricing holds the shared line amount arithmetic used by sales
// documents. All amounts are computed in decimals and rounded half-up to two
// places at the line level, so document totals are reproducible bit-exact.
package pricing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Subtotal computes a line amount: quantity times unit price, minus the
// discount percentage, plus the tax percentage on the discounted base.
func Subtotal(qty, unitPrice, discountPct, taxPct decimal.Decimal) decimal.Decimal {
	gross := qty.Mul(unitPrice)
	discounted := gross.Mul(decimal.NewFromInt(1).Sub(discountPct.Div(hundred)))
	taxed := discounted.Mul(decimal.NewFromInt(1).Add(taxPct.Div(hundred)))
	return taxed.Round(2)
}

// DiscountAmount is the absolute discount on a line.
func DiscountAmount(qty, unitPrice, discountPct decimal.Decimal) decimal.Decimal {
	return qty.Mul(unitPrice).Mul(discountPct.Div(hundred)).Round(2)
}

// TaxAmount is the absolute tax on a line after discount.
func TaxAmount(qty, unitPrice, discountPct, taxPct decimal.Decimal) decimal.Decimal {
	base := qty.Mul(unitPrice).Mul(decimal.NewFromInt(1).Sub(discountPct.Div(hundred)))
	return base.Mul(taxPct.Div(hundred)).Round(2)
}
