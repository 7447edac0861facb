package domain

import "errors"

var (
	ErrInvalidSubType     = errors.New("invalid_invoice_subtype")
	ErrInvalidDate        = errors.New("invalid_date")
	ErrMissingInvoice     = errors.New("missing_invoice")
	ErrMissingSupplier    = errors.New("missing_supplier")
	ErrMissingReference   = errors.New("missing_reference")
	ErrInvalidLine        = errors.New("invalid_invoice_line")
	ErrMissingTaxCategory = errors.New("missing_tax_category")
)
