package domain

import (
	"fmt"
	"strings"
)

// SubType is the seven character transaction code "NNPNESB": two digits
// for the invoice kind followed by the third-party, nominal, export,
// summary and self-billed flags.
type SubType string

const (
	SubTypeStandard   SubType = "0100000"
	SubTypeSimplified SubType = "0200000"
)

const subTypeLength = 7

// ParseSubType validates an upstream subtype string. Empty input yields the
// standard subtype.
func ParseSubType(raw string) (SubType, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return SubTypeStandard, nil
	}
	if len(value) != subTypeLength {
		return "", fmt.Errorf("%w: %q must have %d digits", ErrInvalidSubType, value, subTypeLength)
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: %q must be numeric", ErrInvalidSubType, value)
		}
	}
	if kind := value[:2]; kind != "01" && kind != "02" {
		return "", fmt.Errorf("%w: unknown invoice kind %q", ErrInvalidSubType, kind)
	}
	return SubType(value), nil
}

func (s SubType) flag(i int) bool {
	return len(s) == subTypeLength && s[i] == '1'
}

// IsStandard reports a tax invoice that goes through clearance.
func (s SubType) IsStandard() bool { return strings.HasPrefix(string(s), "01") }

// IsSimplified reports a simplified invoice that is reported after issue.
func (s SubType) IsSimplified() bool { return strings.HasPrefix(string(s), "02") }

func (s SubType) IsThirdParty() bool { return s.flag(2) }
func (s SubType) IsNominal() bool    { return s.flag(3) }
func (s SubType) IsExport() bool     { return s.flag(4) }
func (s SubType) IsSummary() bool    { return s.flag(5) }
func (s SubType) IsSelfBilled() bool { return s.flag(6) }

// RequiresBuyerIdentification is true for standard export invoices.
func (s SubType) RequiresBuyerIdentification() bool {
	return s.IsStandard() && s.IsExport()
}

// TypeCode is the UN/CEFACT 1001 document type.
type TypeCode int

const (
	TypeInvoice    TypeCode = 388
	TypeDebitNote  TypeCode = 383
	TypeCreditNote TypeCode = 381
)

func (t TypeCode) String() string {
	switch t {
	case TypeDebitNote:
		return "debit_note"
	case TypeCreditNote:
		return "credit_note"
	default:
		return "invoice"
	}
}

// TypeCodeForReferrer maps the upstream document page to a type code. Any
// referrer naming neither debit nor credit notes is a plain invoice.
func TypeCodeForReferrer(referrer string) TypeCode {
	value := strings.ToLower(referrer)
	switch {
	case strings.Contains(value, "debit-note"):
		return TypeDebitNote
	case strings.Contains(value, "credit-note"):
		return TypeCreditNote
	default:
		return TypeInvoice
	}
}
