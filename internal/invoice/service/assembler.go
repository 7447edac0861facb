package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/smallbiznis/egsbridge/internal/chain"
	"github.com/smallbiznis/egsbridge/internal/invoice/compute"
	invoicedomain "github.com/smallbiznis/egsbridge/internal/invoice/domain"
	"github.com/smallbiznis/egsbridge/internal/observability/metrics"
	vatdomain "github.com/smallbiznis/egsbridge/internal/vat/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Due dates before this year are placeholders in upstream data and are
// replaced by the issue date.
const legacyDueDateCutoverYear = 2024

const defaultIssueTime = "00:00:00"

type AssemblerParams struct {
	fx.In

	Log      *zap.Logger
	Resolver vatdomain.Resolver
	Metrics  *metrics.Metrics `optional:"true"`
}

type assembler struct {
	log      *zap.Logger
	resolver vatdomain.Resolver
	metrics  *metrics.Metrics
}

func NewAssembler(p AssemblerParams) invoicedomain.Assembler {
	return &assembler{
		log:      p.Log.Named("invoice.assembler"),
		resolver: p.Resolver,
		metrics:  p.Metrics,
	}
}

// lineValues is the computed form of one upstream line.
type lineValues struct {
	line   invoicedomain.Line
	result compute.LineResult
	vat    vatdomain.Info
}

func (a *assembler) Assemble(ctx context.Context, req invoicedomain.AssembleRequest) (*invoicedomain.Invoice, error) {
	src := req.Invoice
	if strings.TrimSpace(src.Reference) == "" {
		return nil, invoicedomain.ErrMissingReference
	}
	if strings.TrimSpace(req.Certificate.RegistrationName) == "" {
		return nil, invoicedomain.ErrMissingSupplier
	}

	subType := req.SubType
	if subType == "" {
		subType = invoicedomain.SubTypeStandard
	}
	typeCode := invoicedomain.TypeCodeForReferrer(req.Referrer)
	currency := src.CurrencyCode()
	state := req.Chain.Normalize()

	values, err := a.computeLines(src)
	if err != nil {
		return nil, err
	}

	issueDate, issueTime := splitCreated(req.DateCreated, src.IssueDate)

	doc := invoicedomain.NewInvoice()
	doc.ProfileID = invoicedomain.ProfileReporting
	doc.ID = src.Reference
	doc.UUID = req.UUID
	doc.IssueDate = issueDate
	doc.IssueTime = issueTime
	doc.InvoiceTypeCode = invoicedomain.InvoiceTypeCode{Name: string(subType), Value: typeCode}
	doc.DocumentCurrencyCode = currency
	doc.TaxCurrencyCode = invoicedomain.TaxCurrency

	if src.RefInvoice != nil && src.RefInvoice.Reference != "" {
		doc.BillingReference = &invoicedomain.BillingReference{
			InvoiceDocumentReference: invoicedomain.DocumentReference{ID: src.RefInvoice.Reference},
		}
	}

	doc.AdditionalDocumentReference = chainReferences(state)
	doc.AccountingSupplierParty = supplierParty(req)
	doc.AccountingCustomerParty = customerParty(req.Party)
	doc.Delivery = delivery(src)
	doc.PaymentMeans = paymentMeans(req.PaymentMeans, req.InstructionNote)
	doc.InvoiceLine = invoiceLines(values, currency, src.Discount)

	totals := compute.Aggregate(taxedLines(values), src.ExchangeRate)
	doc.TaxTotal = taxTotals(totals, currency)

	monetary := compute.Summarize(lo.Map(values, func(v lineValues, _ int) compute.LineResult {
		return v.result
	}), src.InvoiceTotal)
	doc.LegalMonetaryTotal = monetaryTotal(monetary, currency)

	if requiresBuyerIdentification(totals, subType) {
		doc.AccountingCustomerParty.Party.PartyIdentification = &invoicedomain.PartyIdentification{
			ID: invoicedomain.Identifier{
				SchemeID: req.Party.IdentificationScheme,
				Value:    req.Party.IdentificationID,
			},
		}
	}

	a.metrics.RecordInvoiceAssembled(ctx, typeCode.String(), string(subType))
	a.log.Debug("invoice assembled",
		zap.String("reference", doc.ID),
		zap.Int("type_code", int(typeCode)),
		zap.String("subtype", string(subType)),
		zap.Int64("icv", state.NextCounter()),
		zap.Int("lines", len(doc.InvoiceLine)),
	)
	return doc, nil
}

func (a *assembler) computeLines(src invoicedomain.ManagerInvoice) ([]lineValues, error) {
	opts := compute.Options{Discounts: src.Discount, AmountsIncludeTax: src.AmountsIncludeTax}
	values := make([]lineValues, 0, len(src.Lines))
	for i, line := range src.Lines {
		v := lineValues{
			line: line,
			result: compute.ComputeLine(compute.Line{
				Quantity:       line.Qty,
				UnitPrice:      line.UnitPrice,
				DiscountAmount: line.DiscountAmount,
				RatePercent:    line.RatePercent(),
			}, opts),
		}
		if line.Item != nil {
			info, err := a.resolver.Resolve(line.RatePercent(), line.VATCategory)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i+1, err)
			}
			v.vat = info
		}
		values = append(values, v)
	}
	return values, nil
}

// splitCreated prefers the upstream "date time" creation stamp and falls
// back to the issue date at midnight.
func splitCreated(created string, issueDate invoicedomain.Date) (string, string) {
	created = strings.TrimSpace(created)
	if date, clock, ok := strings.Cut(created, " "); ok && date != "" {
		return date, strings.TrimSpace(clock)
	}
	return issueDate.String(), defaultIssueTime
}

func chainReferences(state chain.State) []invoicedomain.AdditionalDocumentReference {
	return []invoicedomain.AdditionalDocumentReference{
		{
			ID:   invoicedomain.ReferenceCounter,
			UUID: strconv.FormatInt(state.NextCounter(), 10),
		},
		{
			ID: invoicedomain.ReferencePreviousHash,
			Attachment: &invoicedomain.Attachment{
				EmbeddedDocumentBinaryObject: invoicedomain.BinaryObject{MimeCode: "text/plain", Value: state.Hash},
			},
		},
	}
}

func supplierParty(req invoicedomain.AssembleRequest) invoicedomain.PartyEnvelope {
	cert := req.Certificate
	return invoicedomain.PartyEnvelope{Party: invoicedomain.Party{
		PartyIdentification: &invoicedomain.PartyIdentification{
			ID: invoicedomain.Identifier{SchemeID: cert.IdentificationScheme, Value: cert.IdentificationID},
		},
		PostalAddress: invoicedomain.PostalAddress{
			StreetName:          cert.StreetName,
			BuildingNumber:      cert.BuildingNumber,
			CitySubdivisionName: cert.CitySubdivisionName,
			CityName:            cert.CityName,
			PostalZone:          cert.PostalZone,
			Country:             invoicedomain.Country{IdentificationCode: cert.CountryIdentificationCode},
		},
		PartyTaxScheme: invoicedomain.PartyTaxScheme{
			CompanyID: cert.SupplierVATNumber(),
			TaxScheme: invoicedomain.TaxSchemeRef{ID: invoicedomain.Identifier{Value: cert.TaxSchemeID}},
		},
		PartyLegalEntity: invoicedomain.PartyLegalEntity{RegistrationName: cert.RegistrationName},
	}}
}

func customerParty(p invoicedomain.PartyTaxInfo) invoicedomain.PartyEnvelope {
	return invoicedomain.PartyEnvelope{Party: invoicedomain.Party{
		PostalAddress: invoicedomain.PostalAddress{
			StreetName:          p.StreetName,
			BuildingNumber:      p.BuildingNumber,
			CitySubdivisionName: p.CitySubdivisionName,
			CityName:            p.CityName,
			PostalZone:          p.PostalZone,
			Country:             invoicedomain.Country{IdentificationCode: p.CountryIdentificationCode},
		},
		PartyTaxScheme: invoicedomain.PartyTaxScheme{
			CompanyID: p.CompanyID,
			TaxScheme: invoicedomain.TaxSchemeRef{ID: invoicedomain.Identifier{Value: p.TaxSchemeID}},
		},
		PartyLegalEntity: invoicedomain.PartyLegalEntity{RegistrationName: p.RegistrationName},
	}}
}

func delivery(src invoicedomain.ManagerInvoice) *invoicedomain.Delivery {
	latest := src.DueDate
	if latest.IsZero() || latest.Year() < legacyDueDateCutoverYear {
		latest = src.IssueDate
	}
	return &invoicedomain.Delivery{
		ActualDeliveryDate: src.IssueDate.String(),
		LatestDeliveryDate: latest.String(),
	}
}

// paymentMeans reads a "code|description" custom field. Anything without a
// numeric code keeps the default.
func paymentMeans(raw, note string) *invoicedomain.PaymentMeans {
	code := invoicedomain.DefaultPaymentMeansCode
	if raw != "" {
		head, _, _ := strings.Cut(raw, "|")
		if n, err := strconv.Atoi(strings.TrimSpace(head)); err == nil {
			code = strconv.Itoa(n)
		}
	}
	return &invoicedomain.PaymentMeans{PaymentMeansCode: code, InstructionNote: note}
}

func classifiedCategory(v lineValues) invoicedomain.ClassifiedTaxCategory {
	return invoicedomain.ClassifiedTaxCategory{
		ID: invoicedomain.Identifier{
			SchemeID:       vatdomain.CategoryScheme,
			SchemeAgencyID: vatdomain.SchemeAgencyID,
			Value:          string(v.vat.Category),
		},
		Percent:   invoicedomain.NewFixed2(v.line.RatePercent()),
		TaxScheme: vatScheme(),
	}
}

func vatScheme() invoicedomain.TaxSchemeRef {
	return invoicedomain.TaxSchemeRef{ID: invoicedomain.Identifier{
		SchemeID:       vatdomain.TaxScheme,
		SchemeAgencyID: vatdomain.SchemeAgencyID,
		Value:          vatdomain.TaxSchemeVAT,
	}}
}

func invoiceLines(values []lineValues, currency string, discounts bool) []invoicedomain.InvoiceLine {
	lines := make([]invoicedomain.InvoiceLine, 0, len(values))
	for i, v := range values {
		line := invoicedomain.InvoiceLine{
			ID:    strconv.Itoa(i + 1),
			Price: invoicedomain.Price{PriceAmount: invoicedomain.NewAmount(currency, v.result.UnitPrice)},
		}
		if v.line.Item == nil {
			// Prepaid amount rows carry only their price.
			lines = append(lines, line)
			continue
		}

		line.InvoicedQuantity = &invoicedomain.Quantity{UnitCode: v.line.Item.UnitName, Value: v.result.Quantity}
		line.LineExtensionAmount = invoicedomain.AmountPtr(currency, v.result.TaxableAmount)
		line.TaxTotal = &invoicedomain.TaxTotal{
			TaxAmount:      invoicedomain.NewAmount(currency, v.result.TaxAmount),
			RoundingAmount: invoicedomain.AmountPtr(currency, v.result.RoundingAmount),
		}
		line.Item = &invoicedomain.LineItem{
			Name:                  v.line.Item.DisplayName(),
			ClassifiedTaxCategory: classifiedCategory(v),
		}
		if discounts {
			line.Price.AllowanceCharge = &invoicedomain.AllowanceCharge{
				ChargeIndicator:       false,
				AllowanceChargeReason: invoicedomain.AllowanceReasonDiscount,
				Amount:                invoicedomain.NewAmount(currency, v.result.Discount),
			}
		}
		lines = append(lines, line)
	}
	return lines
}

// taxedLines selects the lines that contribute to tax subtotals: lines with
// a tax code and an item.
func taxedLines(values []lineValues) []compute.TaxedLine {
	return lo.FilterMap(values, func(v lineValues, _ int) (compute.TaxedLine, bool) {
		if v.line.TaxCode == nil || v.line.Item == nil {
			return compute.TaxedLine{}, false
		}
		return compute.TaxedLine{Result: v.result, RatePercent: v.line.RatePercent(), VAT: v.vat}, true
	})
}

func taxTotals(totals compute.Totals, currency string) []invoicedomain.TaxTotal {
	subtotals := lo.Map(totals.Subtotals, func(s compute.Subtotal, _ int) invoicedomain.TaxSubtotal {
		return invoicedomain.TaxSubtotal{
			TaxableAmount: invoicedomain.NewAmount(currency, s.TaxableAmount),
			TaxAmount:     invoicedomain.NewAmount(currency, s.TaxAmount),
			TaxCategory: invoicedomain.TaxCategory{
				ID: invoicedomain.Identifier{
					SchemeID:       vatdomain.CategoryScheme,
					SchemeAgencyID: vatdomain.SchemeAgencyID,
					Value:          string(s.Category),
				},
				Percent:                invoicedomain.NewFixed2(s.RatePercent),
				TaxExemptionReasonCode: s.ExemptionReasonCode,
				TaxExemptionReason:     s.ExemptionReason,
				TaxScheme:              vatScheme(),
			},
		}
	})

	return []invoicedomain.TaxTotal{
		{TaxAmount: invoicedomain.NewAmount(invoicedomain.TaxCurrency, totals.TaxAmountInTaxCurrency)},
		{TaxAmount: invoicedomain.NewAmount(currency, totals.TaxAmount), TaxSubtotal: subtotals},
	}
}

func monetaryTotal(m compute.Monetary, currency string) invoicedomain.MonetaryTotal {
	total := invoicedomain.MonetaryTotal{
		LineExtensionAmount: invoicedomain.NewAmount(currency, m.LineExtension),
		TaxExclusiveAmount:  invoicedomain.NewAmount(currency, m.TaxExclusive),
		TaxInclusiveAmount:  invoicedomain.NewAmount(currency, m.TaxInclusive),
		PrepaidAmount:       invoicedomain.NewAmount(currency, m.Prepaid),
		PayableAmount:       invoicedomain.NewAmount(currency, m.Payable),
	}
	if m.HasPayableRounding() {
		total.PayableRoundingAmount = invoicedomain.AmountPtr(currency, m.PayableRounding)
	}
	return total
}

func requiresBuyerIdentification(totals compute.Totals, subType invoicedomain.SubType) bool {
	if subType.RequiresBuyerIdentification() {
		return true
	}
	return lo.ContainsBy(totals.Subtotals, func(s compute.Subtotal) bool {
		return vatdomain.RequiresBuyerIdentification(s.ExemptionReasonCode)
	})
}
