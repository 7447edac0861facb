package domain

import "strings"

// CategoryCode is the UN/ECE 5305 VAT category carried on invoice lines.
type CategoryCode string

const (
	CategoryStandard   CategoryCode = "S"
	CategoryZeroRated  CategoryCode = "Z"
	CategoryExempt     CategoryCode = "E"
	CategoryOutOfScope CategoryCode = "O"
)

// Identifier schemes used on tax categories and tax schemes.
const (
	CategoryScheme = "UN/ECE 5305"
	TaxScheme      = "UN/ECE 5153"
	SchemeAgencyID = "6"
	TaxSchemeVAT   = "VAT"
)

// Exemption reason codes that oblige the seller to identify the buyer.
const (
	ExemptionPrivateEducation  = "VATEX-SA-EDU"
	ExemptionPrivateHealthcare = "VATEX-SA-HEA"
)

// Info is the resolved VAT treatment of one line.
type Info struct {
	Category            CategoryCode `json:"category"`
	ExemptionReasonCode string       `json:"exemption_reason_code,omitempty"`
	ExemptionReason     string       `json:"exemption_reason,omitempty"`
}

// Standard is the treatment of every line taxed at a positive rate.
func Standard() Info {
	return Info{Category: CategoryStandard}
}

// Exemption is one entry of the authority's exemption reason catalogue.
type Exemption struct {
	Code     string       `json:"code"`
	Category CategoryCode `json:"category"`
	Reason   string       `json:"reason"`
}

// Info converts the catalogue entry into a line treatment.
func (e Exemption) Info() Info {
	return Info{
		Category:            e.Category,
		ExemptionReasonCode: e.Code,
		ExemptionReason:     e.Reason,
	}
}

var catalogue = []Exemption{
	{Code: "VATEX-SA-29", Category: CategoryExempt, Reason: "Financial services mentioned in Article 29 of the VAT Regulations"},
	{Code: "VATEX-SA-29-7", Category: CategoryExempt, Reason: "Life insurance services mentioned in Article 29 of the VAT Regulations"},
	{Code: "VATEX-SA-30", Category: CategoryExempt, Reason: "Real estate transactions mentioned in Article 30 of the VAT Regulations"},
	{Code: "VATEX-SA-32", Category: CategoryZeroRated, Reason: "Export of goods"},
	{Code: "VATEX-SA-33", Category: CategoryZeroRated, Reason: "Export of services"},
	{Code: "VATEX-SA-34-1", Category: CategoryZeroRated, Reason: "The international transport of Goods"},
	{Code: "VATEX-SA-34-2", Category: CategoryZeroRated, Reason: "International transport of passengers"},
	{Code: "VATEX-SA-34-3", Category: CategoryZeroRated, Reason: "Services directly connected and incidental to a Supply of international passenger transport"},
	{Code: "VATEX-SA-34-4", Category: CategoryZeroRated, Reason: "Supply of a qualifying means of transport"},
	{Code: "VATEX-SA-34-5", Category: CategoryZeroRated, Reason: "Any services relating to Goods or passenger transportation, as defined in article twenty five of these Regulations"},
	{Code: "VATEX-SA-35", Category: CategoryZeroRated, Reason: "Medicines and medical equipment"},
	{Code: "VATEX-SA-36", Category: CategoryZeroRated, Reason: "Qualifying metals"},
	{Code: ExemptionPrivateEducation, Category: CategoryZeroRated, Reason: "Private education to citizen"},
	{Code: ExemptionPrivateHealthcare, Category: CategoryZeroRated, Reason: "Private healthcare to citizen"},
	{Code: "VATEX-SA-MLTRY", Category: CategoryZeroRated, Reason: "Supply of qualified military goods"},
	{Code: "VATEX-SA-OOS", Category: CategoryOutOfScope, Reason: "Not subject to VAT"},
}

// Catalogue returns a copy of the exemption reason catalogue.
func Catalogue() []Exemption {
	out := make([]Exemption, len(catalogue))
	copy(out, catalogue)
	return out
}

// RequiresBuyerIdentification reports whether an exemption code forces the
// buyer's identification onto the invoice.
func RequiresBuyerIdentification(code string) bool {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case ExemptionPrivateEducation, ExemptionPrivateHealthcare:
		return true
	default:
		return false
	}
}
