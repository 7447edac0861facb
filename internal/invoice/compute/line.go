// Package compute derives per-line and per-invoice amounts from upstream
// line values. Every step rounds half away from zero to two decimals.
package compute

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Round rounds to two decimals, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Line is the numeric part of one upstream invoice line.
type Line struct {
	Quantity       decimal.Decimal
	UnitPrice      decimal.Decimal
	DiscountAmount decimal.Decimal
	RatePercent    decimal.Decimal
}

// Options are the invoice-level switches that change line arithmetic.
type Options struct {
	// Discounts enables per-line discount amounts.
	Discounts bool
	// AmountsIncludeTax marks unit prices and discounts as tax-inclusive.
	AmountsIncludeTax bool
}

// LineResult holds the amounts the invoice document carries for a line.
type LineResult struct {
	Quantity       decimal.Decimal
	UnitPrice      decimal.Decimal
	Discount       decimal.Decimal
	Rate           decimal.Decimal
	TaxableAmount  decimal.Decimal
	TaxAmount      decimal.Decimal
	RoundingAmount decimal.Decimal
}

// ComputeLine is pure: the same input always yields the same result.
func ComputeLine(l Line, opts Options) LineResult {
	qty := l.Quantity

	rate := decimal.Zero
	if l.RatePercent.IsPositive() {
		rate = l.RatePercent.Div(hundred)
	}

	perUnit := decimal.Zero
	if opts.Discounts && l.DiscountAmount.IsPositive() && !qty.IsZero() {
		perUnit = l.DiscountAmount.Div(qty)
	}

	var discount, unit decimal.Decimal
	if opts.AmountsIncludeTax && rate.IsPositive() {
		divisor := decimal.NewFromInt(1).Add(rate)
		if perUnit.IsPositive() {
			discount = Round(perUnit.Div(divisor))
		}
		unit = Round(l.UnitPrice.Div(divisor).Sub(discount))
	} else {
		discount = Round(perUnit)
		unit = Round(l.UnitPrice.Sub(discount))
	}

	taxable := Round(qty.Mul(unit))
	tax := Round(taxable.Mul(rate))

	return LineResult{
		Quantity:       qty,
		UnitPrice:      unit,
		Discount:       discount,
		Rate:           rate,
		TaxableAmount:  taxable,
		TaxAmount:      tax,
		RoundingAmount: taxable.Add(tax),
	}
}
