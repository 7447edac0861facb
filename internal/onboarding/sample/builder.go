package sample

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/egsbridge/internal/clock"
	invoicedomain "github.com/smallbiznis/egsbridge/internal/invoice/domain"
	"github.com/smallbiznis/egsbridge/internal/invoice/format"
	"github.com/smallbiznis/egsbridge/internal/onboarding/domain"
	vatdomain "github.com/smallbiznis/egsbridge/internal/vat/domain"
)

// template describes how one sample kind is referenced.
type template struct {
	prefix        string
	billingPrefix string
	referrer      string
}

var templates = map[domain.SampleKind]template{
	domain.SampleDebitNote:  {prefix: "DN", billingPrefix: "PCH", referrer: "debit-note"},
	domain.SampleInvoice:    {prefix: "INV", referrer: "sales-invoice"},
	domain.SampleCreditNote: {prefix: "CN", billingPrefix: "INV", referrer: "credit-note"},
}

// sampleBuyer is the fixed counterparty every compliance sample is issued to.
var sampleBuyer = invoicedomain.PartyTaxInfo{
	IdentificationID:          "1010010000",
	IdentificationScheme:      "CRN",
	StreetName:                "King Fahd Road",
	BuildingNumber:            "1111",
	CitySubdivisionName:       "Al Olaya",
	CityName:                  "Riyadh",
	PostalZone:                "12222",
	CountryIdentificationCode: "SA",
	CompanyID:                 "300000000000003",
	TaxSchemeID:               vatdomain.TaxSchemeVAT,
	RegistrationName:          "Sample Buyer Co.",
}

type Params struct {
	fx.In

	Log       *zap.Logger
	Assembler invoicedomain.Assembler
	Clock     clock.Clock `optional:"true"`
	Signer    Signer      `optional:"true"`
}

type builder struct {
	log       *zap.Logger
	assembler invoicedomain.Assembler
	clock     clock.Clock
	signer    Signer
	newID     func() string
}

func NewBuilder(p Params) domain.SampleBuilder {
	c := p.Clock
	if c == nil {
		c = clock.NewClock()
	}
	signer := p.Signer
	if signer == nil {
		signer = NewSigner()
	}
	return &builder{
		log:       p.Log.Named("onboarding.sample"),
		assembler: p.Assembler,
		clock:     c,
		signer:    signer,
		newID:     uuid.NewString,
	}
}

func (b *builder) Build(ctx context.Context, spec domain.SampleSpec) (domain.Sample, error) {
	tmpl, ok := templates[spec.Kind]
	if !ok {
		return domain.Sample{}, fmt.Errorf("%w: unknown sample kind %q", domain.ErrInvalidRequest, spec.Kind)
	}

	now := b.clock.Now()
	reference, err := format.FormatReference(format.DefaultReferenceTemplate, tmpl.prefix, now, 1)
	if err != nil {
		return domain.Sample{}, err
	}
	var billing *invoicedomain.RefInvoice
	if tmpl.billingPrefix != "" {
		ref, err := format.FormatReference(format.DefaultReferenceTemplate, tmpl.billingPrefix, now, 1)
		if err != nil {
			return domain.Sample{}, err
		}
		billing = &invoicedomain.RefInvoice{Reference: ref}
	}

	id := b.newID()
	state := spec.Chain.Normalize()
	doc, err := b.assembler.Assemble(ctx, invoicedomain.AssembleRequest{
		Referrer:    tmpl.referrer,
		UUID:        id,
		DateCreated: now.Format("2006-01-02 15:04:05"),
		SubType:     spec.Flow.SubType(),
		Invoice:     sampleInvoice(reference, billing, now),
		Certificate: spec.Certificate,
		Party:       sampleBuyer,
		Chain:       state,
	})
	if err != nil {
		return domain.Sample{}, fmt.Errorf("assemble %s sample: %w", spec.Kind, err)
	}

	raw, err := doc.MarshalDocument()
	if err != nil {
		return domain.Sample{}, fmt.Errorf("serialize %s sample: %w", spec.Kind, err)
	}
	signed, err := b.signer.Sign(ctx, raw)
	if err != nil {
		return domain.Sample{}, fmt.Errorf("sign %s sample: %w", spec.Kind, err)
	}

	b.log.Debug("compliance sample built",
		zap.String("flow", string(spec.Flow)),
		zap.String("kind", string(spec.Kind)),
		zap.String("reference", reference),
		zap.Int64("icv", state.NextCounter()),
	)

	return domain.Sample{
		Flow:        spec.Flow,
		Kind:        spec.Kind,
		Reference:   reference,
		Counter:     state.NextCounter(),
		UUID:        id,
		InvoiceHash: signed.Hash,
		Invoice:     base64.StdEncoding.EncodeToString(signed.Document),
	}, nil
}

func sampleInvoice(reference string, billing *invoicedomain.RefInvoice, issuedAt time.Time) invoicedomain.ManagerInvoice {
	year, month, day := issuedAt.Date()
	issue := invoicedomain.NewDate(year, month, day)
	return invoicedomain.ManagerInvoice{
		Reference: reference,
		IssueDate: issue,
		DueDate:   issue,
		InvoiceParty: invoicedomain.InvoiceParty{
			Name:     sampleBuyer.RegistrationName,
			Currency: &invoicedomain.Currency{Code: invoicedomain.DefaultCurrency},
		},
		RefInvoice: billing,
		Lines: []invoicedomain.Line{
			{
				Item: &invoicedomain.Item{
					ItemCode: "SAMPLE-1",
					ItemName: "Compliance sample item",
					UnitName: "PCE",
				},
				Qty:       decimal.NewFromInt(1),
				UnitPrice: decimal.NewFromInt(100),
				TaxCode:   &invoicedomain.TaxCode{Name: "VAT 15%", Rate: decimal.NewFromInt(15)},
			},
		},
		ExchangeRate: decimal.NewFromInt(1),
		InvoiceTotal: decimal.NewFromInt(115),
	}
}
