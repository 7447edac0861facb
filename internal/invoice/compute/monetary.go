package compute

import "github.com/shopspring/decimal"

// Monetary is the legal monetary total of an invoice.
type Monetary struct {
	LineExtension   decimal.Decimal
	TaxExclusive    decimal.Decimal
	TaxInclusive    decimal.Decimal
	Prepaid         decimal.Decimal
	Payable         decimal.Decimal
	PayableRounding decimal.Decimal
}

// HasPayableRounding reports whether the payable rounding row is emitted.
func (m Monetary) HasPayableRounding() bool {
	return !m.PayableRounding.IsZero()
}

// Summarize sums line results against the upstream invoice total. The
// rounding row absorbs the difference between the upstream total and the
// computed tax-inclusive amount, and only exists for a positive total.
func Summarize(lines []LineResult, invoiceTotal decimal.Decimal) Monetary {
	taxable := decimal.Zero
	gross := decimal.Zero
	for _, line := range lines {
		taxable = taxable.Add(line.TaxableAmount)
		gross = gross.Add(line.RoundingAmount)
	}

	prepaid := decimal.Zero
	payable := invoiceTotal.Sub(prepaid)

	rounding := decimal.Zero
	if invoiceTotal.IsPositive() {
		rounding = Round(payable.Sub(gross))
	}

	return Monetary{
		LineExtension:   taxable,
		TaxExclusive:    taxable,
		TaxInclusive:    gross,
		Prepaid:         prepaid,
		Payable:         payable,
		PayableRounding: rounding,
	}
}
