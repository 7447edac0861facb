// Package certificate describes an EGS unit: the seller identity and CSR
// attributes it was onboarded with, and the credentials it was issued.
package certificate

import (
	"strings"
	"time"
)

// EnvironmentType selects which authority environment a unit talks to.
type EnvironmentType string

const (
	EnvironmentNonProduction EnvironmentType = "NonProduction"
	EnvironmentSimulation    EnvironmentType = "Simulation"
	EnvironmentProduction    EnvironmentType = "Production"
)

// Test identifiers the authority expects outside production.
const (
	TestVATNumber              = "399999999900003"
	TestOrganizationIdentifier = "399999999800003"
)

// ParseEnvironment accepts the environment name in any case. Unknown names
// fall back to NonProduction.
func ParseEnvironment(raw string) EnvironmentType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "simulation":
		return EnvironmentSimulation
	case "production", "core":
		return EnvironmentProduction
	default:
		return EnvironmentNonProduction
	}
}

func (e EnvironmentType) IsNonProduction() bool {
	return e == "" || e == EnvironmentNonProduction
}

// Info is the persisted description of one EGS unit.
type Info struct {
	APIEndpoint string `json:"ApiEndpoint,omitempty"`
	APISecret   string `json:"ApiSecret,omitempty"`

	IdentificationID          string `json:"IdentificationID"`
	IdentificationScheme      string `json:"IdentificationScheme"`
	StreetName                string `json:"StreetName"`
	BuildingNumber            string `json:"BuildingNumber"`
	CitySubdivisionName       string `json:"CitySubdivisionName"`
	CityName                  string `json:"CityName"`
	PostalZone                string `json:"PostalZone"`
	CountryIdentificationCode string `json:"CountryIdentificationCode"`
	CompanyID                 string `json:"CompanyID"`
	TaxSchemeID               string `json:"TaxSchemeID"`
	RegistrationName          string `json:"RegistrationName"`
	BusinessCategory          string `json:"BusinessCategory"`

	EnvironmentType EnvironmentType `json:"EnvironmentType"`

	CsrCommonName               string `json:"CsrCommonName"`
	CsrSerialNumber             string `json:"CsrSerialNumber"`
	CsrOrganizationIdentifier   string `json:"CsrOrganizationIdentifier"`
	CsrOrganizationUnitName     string `json:"CsrOrganizationUnitName"`
	CsrOrganizationName         string `json:"CsrOrganizationName"`
	CsrCountryName              string `json:"CsrCountryName"`
	CsrInvoiceType              string `json:"CsrInvoiceType"`
	CsrLocationAddress          string `json:"CsrLocationAddress"`
	CsrIndustryBusinessCategory string `json:"CsrIndustryBusinessCategory"`

	GeneratedCSR  string `json:"GeneratedCsr"`
	PrivateKeyPEM string `json:"EcSecp256k1Privkeypem"`

	CCSIDBinaryToken         string `json:"CCSIDBinaryToken"`
	CCSIDComplianceRequestID string `json:"CCSIDComplianceRequestId"`
	CCSIDSecret              string `json:"CCSIDSecret"`

	PCSIDBinaryToken string     `json:"PCSIDBinaryToken"`
	PCSIDSecret      string     `json:"PCSIDSecret"`
	RegisteredDate   *time.Time `json:"RegisteredDate,omitempty"`

	ComplianceCSIDURL  string `json:"ComplianceCsidUrl,omitempty"`
	ComplianceCheckURL string `json:"ComplianceCheckUrl,omitempty"`
	ProductionCSIDURL  string `json:"ProductionCsidUrl,omitempty"`
}

// Key identifies the unit for locking and persisted onboarding state.
func (i Info) Key() string {
	if key := strings.TrimSpace(i.CsrCommonName); key != "" {
		return key
	}
	return strings.TrimSpace(i.CompanyID)
}

// SupplierVATNumber is the VAT number printed on the unit's invoices.
func (i Info) SupplierVATNumber() string {
	if i.EnvironmentType.IsNonProduction() {
		return TestVATNumber
	}
	return i.CompanyID
}

// Functions decodes the CSR invoice-type flags.
func (i Info) Functions() Functions {
	return ParseFunctions(i.CsrInvoiceType)
}

func (i Info) HasComplianceCredential() bool {
	return i.CCSIDBinaryToken != "" && i.CCSIDSecret != ""
}

func (i Info) HasProductionCredential() bool {
	return i.PCSIDBinaryToken != "" && i.PCSIDSecret != ""
}

// Redacted drops secrets that must not leave the process.
func (i Info) Redacted() Info {
	i.APISecret = ""
	i.APIEndpoint = ""
	return i
}

// Functions is the four-character CSR invoice-type flag string, e.g. "1100".
// Position 0 enables standard invoices (clearance) and position 1 enables
// simplified invoices (reporting).
type Functions string

const functionsLength = 4

func ParseFunctions(raw string) Functions {
	return Functions(strings.TrimSpace(raw))
}

func (f Functions) flag(i int) bool {
	return len(f) == functionsLength && f[i] == '1'
}

func (f Functions) Clearance() bool { return f.flag(0) }
func (f Functions) Reporting() bool { return f.flag(1) }
func (f Functions) Any() bool       { return f.Clearance() || f.Reporting() }
