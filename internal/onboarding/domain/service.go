package domain

import (
	"context"
	"time"

	"github.com/smallbiznis/egsbridge/internal/certificate"
	"github.com/smallbiznis/egsbridge/internal/chain"
)

// AuthorityClient talks to the tax authority gateway.
type AuthorityClient interface {
	IssueComplianceCSID(ctx context.Context, endpoint, otp, csr string) (*IssuanceResponse, error)
	CheckCompliance(ctx context.Context, endpoint string, cred Credentials, req ComplianceRequest) CheckResult
	IssueProductionCSID(ctx context.Context, endpoint string, cred Credentials, requestID string) (*IssuanceResponse, error)
}

// SampleBuilder produces the signed compliance documents of a flow.
type SampleBuilder interface {
	Build(ctx context.Context, spec SampleSpec) (Sample, error)
}

// EndpointSource resolves authority URLs per environment.
type EndpointSource interface {
	Endpoints(env certificate.EnvironmentType) Endpoints
}

type Repository interface {
	Get(ctx context.Context, key, environment string) (*CredentialState, error)
	Save(ctx context.Context, state *CredentialState) error
}

// Locker serializes onboarding runs of the same unit.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

type GenerateCSRRequest struct {
	Environment certificate.EnvironmentType `json:"environment"`
	CSR         CSRInput                    `json:"csr"`
}

// CSRInput is the subject of a certificate signing request.
type CSRInput struct {
	CommonName               string `json:"common_name" validate:"required,min=15"`
	SerialNumber             string `json:"serial_number" validate:"required"`
	OrganizationIdentifier   string `json:"organization_identifier" validate:"required,len=15,numeric,startswith=3,endswith=3"`
	OrganizationUnitName     string `json:"organization_unit_name" validate:"required"`
	OrganizationName         string `json:"organization_name" validate:"required"`
	CountryName              string `json:"country_name" validate:"required,len=2,alpha"`
	InvoiceType              string `json:"invoice_type" validate:"required,len=4,numeric"`
	LocationAddress          string `json:"location_address" validate:"required"`
	IndustryBusinessCategory string `json:"industry_business_category" validate:"required"`
}

type GenerateCSRResponse struct {
	CSR           string   `json:"csr"`
	PrivateKeyPEM string   `json:"private_key_pem"`
	Input         CSRInput `json:"input"`
	Messages      []string `json:"messages,omitempty"`
}

type IssueComplianceRequest struct {
	Certificate certificate.Info `json:"certificate"`
	OTP         string           `json:"otp"`
}

type IssueComplianceResponse struct {
	Credential  Credential       `json:"credential"`
	Certificate certificate.Info `json:"certificate"`
}

type OnboardRequest struct {
	Certificate certificate.Info `json:"certificate"`
}

type FinishRequest struct {
	Certificate certificate.Info `json:"certificate"`
}

// ArtifactFile is one file of the onboarding bundle.
type ArtifactFile struct {
	Name    string `json:"name"`
	Content []byte `json:"content"`
}

type FinishResult struct {
	// EncodedCertificate is the unit as stored upstream, secrets removed.
	EncodedCertificate string         `json:"encoded_certificate"`
	Chain              chain.State    `json:"chain"`
	Files              []ArtifactFile `json:"files"`
	BundleName         string         `json:"bundle_name"`
}

type Service interface {
	GenerateCSR(ctx context.Context, req GenerateCSRRequest) (*GenerateCSRResponse, error)
	IssueCompliance(ctx context.Context, req IssueComplianceRequest) (*IssueComplianceResponse, error)
	Onboard(ctx context.Context, req OnboardRequest) (*RunResult, error)
	Finish(ctx context.Context, req FinishRequest) (*FinishResult, error)
	GetState(ctx context.Context, key, environment string) (*CredentialState, error)
}
