package domain

import (
	"encoding/xml"

	"github.com/shopspring/decimal"
)

// Namespaces of a UBL 2.1 invoice.
const (
	NamespaceInvoice = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	NamespaceCAC     = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
	NamespaceCBC     = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
	NamespaceEXT     = "urn:oasis:names:specification:ubl:schema:xsd:CommonExtensionComponents-2"
)

const (
	ProfileReporting = "reporting:1.0"
	DefaultCurrency  = "SAR"
	TaxCurrency      = "SAR"

	ReferenceCounter      = "ICV"
	ReferencePreviousHash = "PIH"

	DefaultPaymentMeansCode = "30"
	AllowanceReasonDiscount = "Discount"
)

// Fixed2 renders a decimal with exactly two fractional digits.
type Fixed2 decimal.Decimal

func NewFixed2(d decimal.Decimal) Fixed2 { return Fixed2(d) }

func (f Fixed2) Decimal() decimal.Decimal { return decimal.Decimal(f) }

func (f Fixed2) MarshalText() ([]byte, error) {
	return []byte(decimal.Decimal(f).StringFixed(2)), nil
}

func (f *Fixed2) UnmarshalText(text []byte) error {
	d, err := decimal.NewFromString(string(text))
	if err != nil {
		return err
	}
	*f = Fixed2(d)
	return nil
}

type Amount struct {
	CurrencyID string `xml:"currencyID,attr" json:"currency_id"`
	Value      Fixed2 `xml:",chardata" json:"value"`
}

func NewAmount(currency string, value decimal.Decimal) Amount {
	return Amount{CurrencyID: currency, Value: Fixed2(value)}
}

// AmountPtr is NewAmount for optional elements.
func AmountPtr(currency string, value decimal.Decimal) *Amount {
	a := NewAmount(currency, value)
	return &a
}

type Quantity struct {
	UnitCode string          `xml:"unitCode,attr" json:"unit_code"`
	Value    decimal.Decimal `xml:",chardata" json:"value"`
}

// Identifier is a cbc:ID with optional scheme attributes.
type Identifier struct {
	SchemeID       string `xml:"schemeID,attr,omitempty" json:"scheme_id,omitempty"`
	SchemeAgencyID string `xml:"schemeAgencyID,attr,omitempty" json:"scheme_agency_id,omitempty"`
	Value          string `xml:",chardata" json:"value"`
}

type InvoiceTypeCode struct {
	Name  string   `xml:"name,attr" json:"name"`
	Value TypeCode `xml:",chardata" json:"value"`
}

type BillingReference struct {
	InvoiceDocumentReference DocumentReference `xml:"cac:InvoiceDocumentReference" json:"invoice_document_reference"`
}

type DocumentReference struct {
	ID string `xml:"cbc:ID" json:"id"`
}

type BinaryObject struct {
	MimeCode string `xml:"mimeCode,attr" json:"mime_code"`
	Value    string `xml:",chardata" json:"value"`
}

type Attachment struct {
	EmbeddedDocumentBinaryObject BinaryObject `xml:"cbc:EmbeddedDocumentBinaryObject" json:"embedded_document_binary_object"`
}

type AdditionalDocumentReference struct {
	ID         string      `xml:"cbc:ID" json:"id"`
	UUID       string      `xml:"cbc:UUID,omitempty" json:"uuid,omitempty"`
	Attachment *Attachment `xml:"cac:Attachment,omitempty" json:"attachment,omitempty"`
}

type Country struct {
	IdentificationCode string `xml:"cbc:IdentificationCode" json:"identification_code"`
}

type PostalAddress struct {
	StreetName          string  `xml:"cbc:StreetName,omitempty" json:"street_name,omitempty"`
	BuildingNumber      string  `xml:"cbc:BuildingNumber,omitempty" json:"building_number,omitempty"`
	CitySubdivisionName string  `xml:"cbc:CitySubdivisionName,omitempty" json:"city_subdivision_name,omitempty"`
	CityName            string  `xml:"cbc:CityName,omitempty" json:"city_name,omitempty"`
	PostalZone          string  `xml:"cbc:PostalZone,omitempty" json:"postal_zone,omitempty"`
	Country             Country `xml:"cac:Country" json:"country"`
}

type TaxSchemeRef struct {
	ID Identifier `xml:"cbc:ID" json:"id"`
}

type PartyTaxScheme struct {
	CompanyID string       `xml:"cbc:CompanyID,omitempty" json:"company_id,omitempty"`
	TaxScheme TaxSchemeRef `xml:"cac:TaxScheme" json:"tax_scheme"`
}

type PartyIdentification struct {
	ID Identifier `xml:"cbc:ID" json:"id"`
}

type PartyLegalEntity struct {
	RegistrationName string `xml:"cbc:RegistrationName" json:"registration_name"`
}

type Party struct {
	PartyIdentification *PartyIdentification `xml:"cac:PartyIdentification,omitempty" json:"party_identification,omitempty"`
	PostalAddress       PostalAddress        `xml:"cac:PostalAddress" json:"postal_address"`
	PartyTaxScheme      PartyTaxScheme       `xml:"cac:PartyTaxScheme" json:"party_tax_scheme"`
	PartyLegalEntity    PartyLegalEntity     `xml:"cac:PartyLegalEntity" json:"party_legal_entity"`
}

type PartyEnvelope struct {
	Party Party `xml:"cac:Party" json:"party"`
}

type Delivery struct {
	ActualDeliveryDate string `xml:"cbc:ActualDeliveryDate" json:"actual_delivery_date"`
	LatestDeliveryDate string `xml:"cbc:LatestDeliveryDate" json:"latest_delivery_date"`
}

type PaymentMeans struct {
	PaymentMeansCode string `xml:"cbc:PaymentMeansCode" json:"payment_means_code"`
	InstructionNote  string `xml:"cbc:InstructionNote,omitempty" json:"instruction_note,omitempty"`
}

type TaxCategory struct {
	ID                     Identifier   `xml:"cbc:ID" json:"id"`
	Percent                Fixed2       `xml:"cbc:Percent" json:"percent"`
	TaxExemptionReasonCode string       `xml:"cbc:TaxExemptionReasonCode,omitempty" json:"tax_exemption_reason_code,omitempty"`
	TaxExemptionReason     string       `xml:"cbc:TaxExemptionReason,omitempty" json:"tax_exemption_reason,omitempty"`
	TaxScheme              TaxSchemeRef `xml:"cac:TaxScheme" json:"tax_scheme"`
}

type TaxSubtotal struct {
	TaxableAmount Amount      `xml:"cbc:TaxableAmount" json:"taxable_amount"`
	TaxAmount     Amount      `xml:"cbc:TaxAmount" json:"tax_amount"`
	TaxCategory   TaxCategory `xml:"cac:TaxCategory" json:"tax_category"`
}

// TaxTotal appears twice per invoice, once in the tax currency without
// subtotals and once in the document currency with them. On lines it
// carries the line's tax and gross amount instead.
type TaxTotal struct {
	TaxAmount      Amount        `xml:"cbc:TaxAmount" json:"tax_amount"`
	RoundingAmount *Amount       `xml:"cbc:RoundingAmount,omitempty" json:"rounding_amount,omitempty"`
	TaxSubtotal    []TaxSubtotal `xml:"cac:TaxSubtotal,omitempty" json:"tax_subtotal,omitempty"`
}

type MonetaryTotal struct {
	LineExtensionAmount   Amount  `xml:"cbc:LineExtensionAmount" json:"line_extension_amount"`
	TaxExclusiveAmount    Amount  `xml:"cbc:TaxExclusiveAmount" json:"tax_exclusive_amount"`
	TaxInclusiveAmount    Amount  `xml:"cbc:TaxInclusiveAmount" json:"tax_inclusive_amount"`
	PrepaidAmount         Amount  `xml:"cbc:PrepaidAmount" json:"prepaid_amount"`
	PayableRoundingAmount *Amount `xml:"cbc:PayableRoundingAmount,omitempty" json:"payable_rounding_amount,omitempty"`
	PayableAmount         Amount  `xml:"cbc:PayableAmount" json:"payable_amount"`
}

type ClassifiedTaxCategory struct {
	ID        Identifier   `xml:"cbc:ID" json:"id"`
	Percent   Fixed2       `xml:"cbc:Percent" json:"percent"`
	TaxScheme TaxSchemeRef `xml:"cac:TaxScheme" json:"tax_scheme"`
}

type LineItem struct {
	Name                  string                `xml:"cbc:Name" json:"name"`
	ClassifiedTaxCategory ClassifiedTaxCategory `xml:"cac:ClassifiedTaxCategory" json:"classified_tax_category"`
}

type AllowanceCharge struct {
	ChargeIndicator       bool   `xml:"cbc:ChargeIndicator" json:"charge_indicator"`
	AllowanceChargeReason string `xml:"cbc:AllowanceChargeReason" json:"allowance_charge_reason"`
	Amount                Amount `xml:"cbc:Amount" json:"amount"`
}

type Price struct {
	PriceAmount     Amount           `xml:"cbc:PriceAmount" json:"price_amount"`
	AllowanceCharge *AllowanceCharge `xml:"cac:AllowanceCharge,omitempty" json:"allowance_charge,omitempty"`
}

type InvoiceLine struct {
	ID                  string    `xml:"cbc:ID" json:"id"`
	InvoicedQuantity    *Quantity `xml:"cbc:InvoicedQuantity,omitempty" json:"invoiced_quantity,omitempty"`
	LineExtensionAmount *Amount   `xml:"cbc:LineExtensionAmount,omitempty" json:"line_extension_amount,omitempty"`
	TaxTotal            *TaxTotal `xml:"cac:TaxTotal,omitempty" json:"tax_total,omitempty"`
	Item                *LineItem `xml:"cac:Item,omitempty" json:"item,omitempty"`
	Price               Price     `xml:"cac:Price" json:"price"`
}

// Invoice is a UBL 2.1 invoice, debit note or credit note. Field order is
// element order in the serialized document.
type Invoice struct {
	XMLName  xml.Name `xml:"Invoice" json:"-"`
	XmlnsURI string   `xml:"xmlns,attr" json:"-"`
	XmlnsCAC string   `xml:"xmlns:cac,attr" json:"-"`
	XmlnsCBC string   `xml:"xmlns:cbc,attr" json:"-"`
	XmlnsEXT string   `xml:"xmlns:ext,attr" json:"-"`

	ProfileID                   string                        `xml:"cbc:ProfileID" json:"profile_id"`
	ID                          string                        `xml:"cbc:ID" json:"id"`
	UUID                        string                        `xml:"cbc:UUID" json:"uuid"`
	IssueDate                   string                        `xml:"cbc:IssueDate" json:"issue_date"`
	IssueTime                   string                        `xml:"cbc:IssueTime" json:"issue_time"`
	InvoiceTypeCode             InvoiceTypeCode               `xml:"cbc:InvoiceTypeCode" json:"invoice_type_code"`
	DocumentCurrencyCode        string                        `xml:"cbc:DocumentCurrencyCode" json:"document_currency_code"`
	TaxCurrencyCode             string                        `xml:"cbc:TaxCurrencyCode" json:"tax_currency_code"`
	BillingReference            *BillingReference             `xml:"cac:BillingReference,omitempty" json:"billing_reference,omitempty"`
	AdditionalDocumentReference []AdditionalDocumentReference `xml:"cac:AdditionalDocumentReference" json:"additional_document_reference"`
	AccountingSupplierParty     PartyEnvelope                 `xml:"cac:AccountingSupplierParty" json:"accounting_supplier_party"`
	AccountingCustomerParty     PartyEnvelope                 `xml:"cac:AccountingCustomerParty" json:"accounting_customer_party"`
	Delivery                    *Delivery                     `xml:"cac:Delivery,omitempty" json:"delivery,omitempty"`
	PaymentMeans                *PaymentMeans                 `xml:"cac:PaymentMeans,omitempty" json:"payment_means,omitempty"`
	TaxTotal                    []TaxTotal                    `xml:"cac:TaxTotal" json:"tax_total"`
	LegalMonetaryTotal          MonetaryTotal                 `xml:"cac:LegalMonetaryTotal" json:"legal_monetary_total"`
	InvoiceLine                 []InvoiceLine                 `xml:"cac:InvoiceLine" json:"invoice_line"`
}

// NewInvoice returns an empty document with its namespaces declared.
func NewInvoice() *Invoice {
	return &Invoice{
		XmlnsURI: NamespaceInvoice,
		XmlnsCAC: NamespaceCAC,
		XmlnsCBC: NamespaceCBC,
		XmlnsEXT: NamespaceEXT,
	}
}

// MarshalDocument serializes the invoice with an XML declaration.
func (inv *Invoice) MarshalDocument() ([]byte, error) {
	body, err := xml.MarshalIndent(inv, "", "    ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}

// Reference returns the additional document reference with the given id.
func (inv *Invoice) Reference(id string) (AdditionalDocumentReference, bool) {
	for _, ref := range inv.AdditionalDocumentReference {
		if ref.ID == id {
			return ref, true
		}
	}
	return AdditionalDocumentReference{}, false
}
