package compute

import (
	"testing"

	"github.com/shopspring/decimal"
	vatdomain "github.com/smallbiznis/egsbridge/internal/vat/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func taxed(qty, price, rate string, info vatdomain.Info) TaxedLine {
	return TaxedLine{
		Result:      ComputeLine(Line{Quantity: d(qty), UnitPrice: d(price), RatePercent: d(rate)}, Options{}),
		RatePercent: d(rate),
		VAT:         info,
	}
}

var education = vatdomain.Info{
	Category:            vatdomain.CategoryZeroRated,
	ExemptionReasonCode: "VATEX-SA-EDU",
	ExemptionReason:     "Private education to citizen",
}

func TestAggregateMergesSharedExemptionReason(t *testing.T) {
	lines := []TaxedLine{
		taxed("1", "100", "15", vatdomain.Standard()),
		taxed("2", "40", "0", education),
		taxed("1", "25", "0", education),
	}

	totals := Aggregate(lines, decimal.Zero)

	require.Len(t, totals.Subtotals, 2)
	standard := totals.Subtotals[0]
	assert.Equal(t, vatdomain.CategoryStandard, standard.Category)
	assert.Empty(t, standard.ExemptionReasonCode)
	assertDecimal(t, "15", standard.RatePercent)
	assertDecimal(t, "100.00", standard.TaxableAmount)
	assertDecimal(t, "15.00", standard.TaxAmount)

	zero := totals.Subtotals[1]
	assert.Equal(t, vatdomain.CategoryZeroRated, zero.Category)
	assert.Equal(t, "VATEX-SA-EDU", zero.ExemptionReasonCode)
	assert.Equal(t, "Private education to citizen", zero.ExemptionReason)
	assertDecimal(t, "105.00", zero.TaxableAmount)
	assertDecimal(t, "0", zero.TaxAmount)

	assertDecimal(t, "15.00", totals.TaxAmount)
	assertDecimal(t, "15.00", totals.TaxAmountInTaxCurrency)
}

func TestAggregateSubtotalsSumToLines(t *testing.T) {
	lines := []TaxedLine{
		taxed("3", "9.99", "15", vatdomain.Standard()),
		taxed("1", "0.99", "15", vatdomain.Standard()),
		taxed("4", "12.50", "0", education),
		taxed("1", "8", "0", vatdomain.Info{Category: vatdomain.CategoryExempt, ExemptionReasonCode: "VATEX-SA-29"}),
	}

	totals := Aggregate(lines, d("1"))

	taxable, tax := decimal.Zero, decimal.Zero
	for _, sub := range totals.Subtotals {
		taxable = taxable.Add(sub.TaxableAmount)
		tax = tax.Add(sub.TaxAmount)
	}
	lineTaxable, lineTax := decimal.Zero, decimal.Zero
	for _, line := range lines {
		lineTaxable = lineTaxable.Add(line.Result.TaxableAmount)
		lineTax = lineTax.Add(line.Result.TaxAmount)
	}

	assert.Len(t, totals.Subtotals, 3)
	assert.True(t, taxable.Equal(lineTaxable))
	assert.True(t, tax.Equal(lineTax))
	assert.True(t, totals.TaxAmount.Equal(lineTax))
}

func TestAggregateSplitsStandardLinesByRate(t *testing.T) {
	lines := []TaxedLine{
		taxed("1", "100", "15", vatdomain.Standard()),
		taxed("1", "200", "5", vatdomain.Standard()),
		taxed("1", "50", "15.0", vatdomain.Standard()),
	}

	totals := Aggregate(lines, decimal.Zero)

	require.Len(t, totals.Subtotals, 2)
	assertDecimal(t, "15", totals.Subtotals[0].RatePercent)
	assertDecimal(t, "150.00", totals.Subtotals[0].TaxableAmount)
	assertDecimal(t, "22.50", totals.Subtotals[0].TaxAmount)
	assertDecimal(t, "5", totals.Subtotals[1].RatePercent)
	assertDecimal(t, "200.00", totals.Subtotals[1].TaxableAmount)
	assertDecimal(t, "10.00", totals.Subtotals[1].TaxAmount)
	assertDecimal(t, "32.50", totals.TaxAmount)
}

func TestAggregateConvertsToTaxCurrency(t *testing.T) {
	totals := Aggregate([]TaxedLine{taxed("1", "100", "15", vatdomain.Standard())}, d("3.75"))

	assertDecimal(t, "15.00", totals.TaxAmount)
	assertDecimal(t, "56.25", totals.TaxAmountInTaxCurrency)
}

func TestAggregateEmpty(t *testing.T) {
	totals := Aggregate(nil, decimal.Zero)
	assert.Empty(t, totals.Subtotals)
	assertDecimal(t, "0", totals.TaxAmountInTaxCurrency)
}
