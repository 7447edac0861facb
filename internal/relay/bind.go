package relay

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/egsbridge/internal/certificate"
	"github.com/smallbiznis/egsbridge/internal/chain"
	invoicedomain "github.com/smallbiznis/egsbridge/internal/invoice/domain"
)

var ErrMissingCertificate = errors.New("missing_certificate_info")

// Envelope is a document as relayed from the upstream system.
type Envelope struct {
	Referrer    string `json:"referrer"`
	UUID        string `json:"uuid"`
	DateCreated string `json:"date_created"`
	// Total is the upstream display total, e.g. "SAR 1,234.50". When set it
	// replaces the invoice's own total.
	Total string `json:"total"`
	// APIEndpoint and APISecret are the upstream callback credentials.
	APIEndpoint string                       `json:"api_endpoint"`
	APISecret   string                       `json:"api_secret"`
	Business    map[string]string            `json:"business"`
	Invoice     invoicedomain.ManagerInvoice `json:"invoice"`
	Party       invoicedomain.PartyTaxInfo   `json:"party"`
}

// Bind resolves every custom field the schema names and returns the
// assembler input.
func Bind(schema Schema, env Envelope) (invoicedomain.AssembleRequest, error) {
	encoded := strings.TrimSpace(env.Business[schema.Key(FieldCertificate)])
	if encoded == "" {
		return invoicedomain.AssembleRequest{}, ErrMissingCertificate
	}
	cert, err := certificate.Decode(encoded)
	if err != nil {
		return invoicedomain.AssembleRequest{}, err
	}
	cert.APIEndpoint = env.APIEndpoint
	cert.APISecret = env.APISecret

	state := chain.Genesis()
	if raw, ok := env.Business[schema.Key(FieldLastCounter)]; ok {
		if counter, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil {
			state.Counter = counter
		}
	}
	if hash, ok := env.Business[schema.Key(FieldLastHash)]; ok {
		state.Hash = hash
	}

	inv := env.Invoice
	inv.InvoiceTotal = inv.InvoiceTotal.Round(2)
	if strings.TrimSpace(env.Total) != "" {
		total, err := ParseTotal(env.Total)
		if err != nil {
			return invoicedomain.AssembleRequest{}, err
		}
		inv.InvoiceTotal = total
	}

	var subType invoicedomain.SubType
	if raw, ok := inv.CustomFields2.String(schema.Key(FieldInvoiceSubType)); ok {
		subType, err = invoicedomain.ParseSubType(raw)
		if err != nil {
			return invoicedomain.AssembleRequest{}, err
		}
	}

	paymentMeans, _ := inv.CustomFields2.String(schema.Key(FieldPaymentMeans))
	instructionNote, _ := inv.CustomFields2.String(schema.Key(FieldInstructionNote))

	lines := make([]invoicedomain.Line, len(inv.Lines))
	for i, line := range inv.Lines {
		if line.Item != nil && line.VATCategory == "" {
			line.VATCategory, _ = line.Item.CustomFields2.String(schema.Key(FieldItemTaxCategory))
		}
		lines[i] = line
	}
	inv.Lines = lines

	return invoicedomain.AssembleRequest{
		Referrer:        env.Referrer,
		UUID:            env.UUID,
		DateCreated:     env.DateCreated,
		SubType:         subType,
		PaymentMeans:    paymentMeans,
		InstructionNote: instructionNote,
		Invoice:         inv,
		Certificate:     cert,
		Party:           env.Party,
		Chain:           state.Normalize(),
	}, nil
}

// ParseTotal reads an upstream display total such as "SAR 1,234.50".
func ParseTotal(raw string) (decimal.Decimal, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return -1
		}
	}, raw)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("invoice total %q has no digits", raw)
	}
	total, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invoice total %q: %w", raw, err)
	}
	return total.Round(2), nil
}
