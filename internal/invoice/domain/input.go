package domain

import (
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/egsbridge/internal/certificate"
	"github.com/smallbiznis/egsbridge/internal/chain"
)

// CustomFields holds the free-form values an upstream document carries,
// keyed by the upstream field identifier.
type CustomFields struct {
	Strings  map[string]string          `json:"Strings,omitempty"`
	Decimals map[string]decimal.Decimal `json:"Decimals,omitempty"`
	Booleans map[string]bool            `json:"Booleans,omitempty"`
}

// String returns a trimmed custom string value.
func (c CustomFields) String(key string) (string, bool) {
	if c.Strings == nil {
		return "", false
	}
	value, ok := c.Strings[key]
	return value, ok
}

type Currency struct {
	Code string `json:"Code"`
}

type InvoiceParty struct {
	Name     string    `json:"Name"`
	Currency *Currency `json:"Currency,omitempty"`
}

type TaxCode struct {
	Name string          `json:"Name"`
	Rate decimal.Decimal `json:"Rate"`
}

type Item struct {
	ItemCode      string       `json:"ItemCode,omitempty"`
	Name          string       `json:"Name,omitempty"`
	ItemName      string       `json:"ItemName,omitempty"`
	UnitName      string       `json:"UnitName,omitempty"`
	CustomFields2 CustomFields `json:"CustomFields2"`
}

// DisplayName prefers the item's invoice name over its catalogue name.
func (i Item) DisplayName() string {
	if i.ItemName != "" {
		return i.ItemName
	}
	return i.Name
}

// Line is one upstream invoice line. A line without an item is a prepaid
// amount row.
type Line struct {
	Item            *Item           `json:"Item,omitempty"`
	LineDescription string          `json:"LineDescription,omitempty"`
	Qty             decimal.Decimal `json:"Qty"`
	UnitPrice       decimal.Decimal `json:"UnitPrice"`
	DiscountAmount  decimal.Decimal `json:"DiscountAmount"`
	TaxCode         *TaxCode        `json:"TaxCode,omitempty"`
	// VATCategory is the upstream tax category identifier, used when the
	// line is zero-rated.
	VATCategory string `json:"VATCategory,omitempty"`
}

// RatePercent is the line's tax rate, zero when it has no tax code.
func (l Line) RatePercent() decimal.Decimal {
	if l.TaxCode == nil {
		return decimal.Zero
	}
	return l.TaxCode.Rate
}

type RefInvoice struct {
	Reference string `json:"Reference"`
}

// ManagerInvoice is the upstream accounting document.
type ManagerInvoice struct {
	Reference         string          `json:"Reference"`
	IssueDate         Date            `json:"IssueDate"`
	DueDate           Date            `json:"DueDate"`
	InvoiceParty      InvoiceParty    `json:"InvoiceParty"`
	RefInvoice        *RefInvoice     `json:"RefInvoice,omitempty"`
	Lines             []Line          `json:"Lines"`
	AmountsIncludeTax bool            `json:"AmountsIncludeTax"`
	Discount          bool            `json:"Discount"`
	ExchangeRate      decimal.Decimal `json:"ExchangeRate"`
	InvoiceTotal      decimal.Decimal `json:"InvoiceTotal"`
	CustomFields2     CustomFields    `json:"CustomFields2"`
}

// CurrencyCode is the document currency, SAR unless the party sets one.
func (m ManagerInvoice) CurrencyCode() string {
	if m.InvoiceParty.Currency != nil && m.InvoiceParty.Currency.Code != "" {
		return m.InvoiceParty.Currency.Code
	}
	return DefaultCurrency
}

// PartyTaxInfo is the buyer as known to the upstream system.
type PartyTaxInfo struct {
	IdentificationID          string `json:"identification_id"`
	IdentificationScheme      string `json:"identification_scheme"`
	StreetName                string `json:"street_name"`
	BuildingNumber            string `json:"building_number"`
	CitySubdivisionName       string `json:"city_subdivision_name"`
	CityName                  string `json:"city_name"`
	PostalZone                string `json:"postal_zone"`
	CountryIdentificationCode string `json:"country_identification_code"`
	CompanyID                 string `json:"company_id"`
	TaxSchemeID               string `json:"tax_scheme_id"`
	RegistrationName          string `json:"registration_name"`
}

// AssembleRequest is everything needed to build one invoice document.
type AssembleRequest struct {
	// Referrer is the upstream page the document came from.
	Referrer string
	UUID     string
	// DateCreated is the upstream creation stamp, "yyyy-MM-dd HH:mm:ss".
	DateCreated string
	// SubType is the standard subtype when empty.
	SubType         SubType
	PaymentMeans    string
	InstructionNote string
	Invoice         ManagerInvoice
	Certificate     certificate.Info
	Party           PartyTaxInfo
	// Chain is the state after the previously issued document.
	Chain chain.State
}
