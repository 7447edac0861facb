package domain

import "github.com/shopspring/decimal"

// Resolver maps a line's tax rate and upstream category identifier to the
// VAT treatment the invoice must carry.
type Resolver interface {
	Resolve(ratePercent decimal.Decimal, identifier string) (Info, error)
}
