package compute

import (
	"github.com/shopspring/decimal"
	vatdomain "github.com/smallbiznis/egsbridge/internal/vat/domain"
)

// TaxedLine pairs a computed line with its resolved VAT treatment.
type TaxedLine struct {
	Result      LineResult
	RatePercent decimal.Decimal
	VAT         vatdomain.Info
}

// Subtotal is the merged tax of every line sharing a category and either
// its exemption reason (zero-rated lines) or its rate.
type Subtotal struct {
	Category            vatdomain.CategoryCode
	ExemptionReasonCode string
	ExemptionReason     string
	RatePercent         decimal.Decimal
	TaxableAmount       decimal.Decimal
	TaxAmount           decimal.Decimal
}

// Totals is the invoice-level tax summary.
type Totals struct {
	TaxAmount              decimal.Decimal
	TaxAmountInTaxCurrency decimal.Decimal
	Subtotals              []Subtotal
}

// Aggregate merges lines into subtotals. Zero-rated lines group on category
// and exemption reason; taxed lines group on category and rate, so lines at
// different rates never share a subtotal. Subtotals keep first-seen order.
// A non-positive exchange rate is treated as 1.
func Aggregate(lines []TaxedLine, exchangeRate decimal.Decimal) Totals {
	if !exchangeRate.IsPositive() {
		exchangeRate = decimal.NewFromInt(1)
	}

	index := map[string]int{}
	totals := Totals{TaxAmount: decimal.Zero}
	for _, line := range lines {
		totals.TaxAmount = totals.TaxAmount.Add(line.Result.TaxAmount)

		zeroRated := line.Result.Rate.IsZero()
		code := ""
		if zeroRated {
			code = line.VAT.ExemptionReasonCode
		}
		key := subtotalKey(line, zeroRated)

		pos, ok := index[key]
		if !ok {
			sub := Subtotal{
				Category:      line.VAT.Category,
				RatePercent:   line.RatePercent,
				TaxableAmount: decimal.Zero,
				TaxAmount:     decimal.Zero,
			}
			if zeroRated {
				sub.RatePercent = decimal.Zero
				sub.ExemptionReasonCode = code
				sub.ExemptionReason = line.VAT.ExemptionReason
			}
			totals.Subtotals = append(totals.Subtotals, sub)
			pos = len(totals.Subtotals) - 1
			index[key] = pos
		}

		sub := &totals.Subtotals[pos]
		sub.TaxableAmount = sub.TaxableAmount.Add(line.Result.TaxableAmount)
		sub.TaxAmount = sub.TaxAmount.Add(line.Result.TaxAmount)
	}

	totals.TaxAmountInTaxCurrency = Round(totals.TaxAmount.Mul(exchangeRate))
	return totals
}

func subtotalKey(line TaxedLine, zeroRated bool) string {
	if zeroRated {
		return string(line.VAT.Category) + "|reason|" + line.VAT.ExemptionReasonCode
	}
	return string(line.VAT.Category) + "|rate|" + line.RatePercent.String()
}
