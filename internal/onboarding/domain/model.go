// Package domain holds the onboarding types shared by the authority client,
// the orchestrator and persistence.
package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/egsbridge/internal/certificate"
	"github.com/smallbiznis/egsbridge/internal/chain"
	invoicedomain "github.com/smallbiznis/egsbridge/internal/invoice/domain"
	"gorm.io/datatypes"
)

// Tier is how far a unit has progressed through onboarding.
type Tier string

const (
	TierNone              Tier = "none"
	TierCompliance        Tier = "compliance"
	TierComplianceChecked Tier = "compliance_checked"
	TierProduction        Tier = "production"
)

// Flow is one compliance check sequence.
type Flow string

const (
	FlowClearance Flow = "clearance"
	FlowReporting Flow = "reporting"
)

// SubType is the invoice subtype every sample of the flow carries.
func (f Flow) SubType() invoicedomain.SubType {
	if f == FlowReporting {
		return invoicedomain.SubTypeSimplified
	}
	return invoicedomain.SubTypeStandard
}

// Accepts reports whether the authority accepted a sample of this flow.
func (f Flow) Accepts(resp *ComplianceResponse) bool {
	if resp == nil {
		return false
	}
	if f == FlowReporting {
		return strings.EqualFold(resp.ReportingStatus, StatusReported)
	}
	return strings.EqualFold(resp.ClearanceStatus, StatusCleared)
}

const (
	StatusCleared  = "CLEARED"
	StatusReported = "REPORTED"
)

// SampleKind is one of the three documents each flow submits.
type SampleKind string

const (
	SampleDebitNote  SampleKind = "debit_note"
	SampleInvoice    SampleKind = "invoice"
	SampleCreditNote SampleKind = "credit_note"
)

// SampleSequence is the fixed submission order within a flow.
var SampleSequence = []SampleKind{SampleDebitNote, SampleInvoice, SampleCreditNote}

// PCSIDPolicy decides which completed flows allow production issuance.
type PCSIDPolicy string

const (
	// PolicyAny requires at least one enabled flow to complete.
	PolicyAny PCSIDPolicy = "any"
	// PolicyAll requires every enabled flow to complete.
	PolicyAll PCSIDPolicy = "all"
)

// ParsePCSIDPolicy defaults to PolicyAny; only an explicit "all" tightens it.
func ParsePCSIDPolicy(raw string) PCSIDPolicy {
	if strings.EqualFold(strings.TrimSpace(raw), string(PolicyAll)) {
		return PolicyAll
	}
	return PolicyAny
}

// Endpoints are the authority URLs of one environment.
type Endpoints struct {
	ComplianceCSID  string `mapstructure:"compliance_csid" json:"compliance_csid"`
	ComplianceCheck string `mapstructure:"compliance_check" json:"compliance_check"`
	ProductionCSID  string `mapstructure:"production_csid" json:"production_csid"`
}

// Override replaces endpoints with the per-unit URLs a certificate carries.
func (e Endpoints) Override(cert certificate.Info) Endpoints {
	if cert.ComplianceCSIDURL != "" {
		e.ComplianceCSID = cert.ComplianceCSIDURL
	}
	if cert.ComplianceCheckURL != "" {
		e.ComplianceCheck = cert.ComplianceCheckURL
	}
	if cert.ProductionCSIDURL != "" {
		e.ProductionCSID = cert.ProductionCSIDURL
	}
	return e
}

// Credentials authenticate calls made with an issued CSID.
type Credentials struct {
	BinarySecurityToken string
	Secret              string
}

// RequestID is the CCSID request identifier. The authority sends it as a
// JSON number; it is kept as text.
type RequestID string

func (r *RequestID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = RequestID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*r = RequestID(n.String())
	return nil
}

func (r RequestID) MarshalJSON() ([]byte, error) {
	if r == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(r), 10, 64); err == nil {
		return []byte(r), nil
	}
	return json.Marshal(string(r))
}

// IssuanceResponse is the body of both CSID issuance endpoints.
type IssuanceResponse struct {
	RequestID           RequestID `json:"requestID"`
	DispositionMessage  string    `json:"dispositionMessage"`
	BinarySecurityToken string    `json:"binarySecurityToken"`
	Secret              string    `json:"secret"`
	TokenType           string    `json:"tokenType,omitempty"`
}

// ComplianceRequest is one compliance sample submission.
type ComplianceRequest struct {
	InvoiceHash string `json:"invoiceHash"`
	UUID        string `json:"uuid"`
	Invoice     string `json:"invoice"`
}

type ValidationMessage struct {
	Type     string `json:"type"`
	Code     string `json:"code"`
	Category string `json:"category"`
	Message  string `json:"message"`
	Status   string `json:"status"`
}

type ValidationResults struct {
	InfoMessages    []ValidationMessage `json:"infoMessages"`
	WarningMessages []ValidationMessage `json:"warningMessages"`
	ErrorMessages   []ValidationMessage `json:"errorMessages"`
	Status          string              `json:"status"`
}

// ComplianceResponse is the authority's verdict on a sample.
type ComplianceResponse struct {
	ValidationResults ValidationResults `json:"validationResults"`
	ReportingStatus   string            `json:"reportingStatus"`
	ClearanceStatus   string            `json:"clearanceStatus"`
	QRSellerStatus    string            `json:"qrSellerStatus"`
	QRBuyerStatus     string            `json:"qrBuyerStatus"`
}

// CheckResult is the outcome of a compliance submission after retries. A
// nil Response means the call produced no result.
type CheckResult struct {
	Response *ComplianceResponse
	Attempts int
	Err      error
}

// SampleSpec describes one compliance sample to build.
type SampleSpec struct {
	Flow        Flow
	Kind        SampleKind
	Chain       chain.State
	Certificate certificate.Info
}

// Sample is a built, hashed compliance document.
type Sample struct {
	Flow        Flow
	Kind        SampleKind
	Reference   string
	Counter     int64
	UUID        string
	InvoiceHash string
	// Invoice is the base64 encoded signed document.
	Invoice string
}

// Request returns the wire body for the sample.
func (s Sample) Request() ComplianceRequest {
	return ComplianceRequest{InvoiceHash: s.InvoiceHash, UUID: s.UUID, Invoice: s.Invoice}
}

// FlowOutcome records how far a flow got.
type FlowOutcome struct {
	Flow      Flow        `json:"flow"`
	Completed bool        `json:"completed"`
	Accepted  int         `json:"accepted"`
	FailedAt  SampleKind  `json:"failed_at,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	Chain     chain.State `json:"chain"`
}

// Credential is an issued CSID.
type Credential struct {
	BinarySecurityToken string    `json:"binary_security_token"`
	Secret              string    `json:"secret"`
	RequestID           string    `json:"request_id"`
	IssuedAt            time.Time `json:"issued_at"`
}

// RunResult is the outcome of a compliance and production onboarding run.
type RunResult struct {
	Tier       Tier          `json:"tier"`
	Flows      []FlowOutcome `json:"flows"`
	Chain      chain.State   `json:"chain"`
	Production *Credential   `json:"production,omitempty"`
	// Certificate carries the unit with any newly issued credential applied.
	Certificate certificate.Info `json:"-"`
}

// CredentialState is the persisted onboarding progress of a unit. Secrets
// are never stored here.
type CredentialState struct {
	ID                  snowflake.ID      `gorm:"primaryKey;autoIncrement:false"`
	CertificateKey      string            `gorm:"type:text;not null;uniqueIndex:ux_onboarding_credentials_key_env"`
	Environment         string            `gorm:"type:text;not null;uniqueIndex:ux_onboarding_credentials_key_env"`
	Tier                Tier              `gorm:"type:text;not null;default:'none'"`
	ComplianceRequestID string            `gorm:"type:text"`
	FlowOutcomes        datatypes.JSONMap `gorm:"type:jsonb"`
	ChainCounter        int64             `gorm:"not null;default:0"`
	ChainHash           string            `gorm:"type:text"`
	CCSIDIssuedAt       *time.Time        `gorm:"column:ccsid_issued_at"`
	PCSIDIssuedAt       *time.Time        `gorm:"column:pcsid_issued_at"`
	CreatedAt           time.Time         `gorm:"not null"`
	UpdatedAt           time.Time         `gorm:"not null"`
}

// TableName sets the database table name.
func (CredentialState) TableName() string {
	return "onboarding_credentials"
}

// SetOutcomes stores flow outcomes keyed by flow name.
func (s *CredentialState) SetOutcomes(outcomes []FlowOutcome) {
	m := datatypes.JSONMap{}
	for _, o := range outcomes {
		m[string(o.Flow)] = map[string]any{
			"completed": o.Completed,
			"accepted":  o.Accepted,
			"failed_at": string(o.FailedAt),
			"reason":    o.Reason,
		}
	}
	s.FlowOutcomes = m
}
