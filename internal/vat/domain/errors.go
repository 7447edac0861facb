package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownTaxCategory = errors.New("unknown_tax_category")
	ErrInvalidTaxRate     = errors.New("invalid_tax_rate")
)

// LookupError reports a zero-rated line whose category identifier does not
// resolve to a catalogue entry.
type LookupError struct {
	Identifier string
}

func (e *LookupError) Error() string {
	if e.Identifier == "" {
		return "vat category missing for zero-rated line"
	}
	return fmt.Sprintf("vat category %q not recognised", e.Identifier)
}

func (e *LookupError) Unwrap() error {
	return ErrUnknownTaxCategory
}
