package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/smallbiznis/egsbridge/internal/certificate"
	"github.com/smallbiznis/egsbridge/internal/onboarding/artifact"
	onboardingdomain "github.com/smallbiznis/egsbridge/internal/onboarding/domain"
)

// certificateRequest carries a unit either as the encoded upstream blob or
// as plain fields.
type certificateRequest struct {
	EncodedCertificate string            `json:"encoded_certificate"`
	Certificate        *certificate.Info `json:"certificate"`
}

func (r certificateRequest) resolve() (certificate.Info, error) {
	if encoded := strings.TrimSpace(r.EncodedCertificate); encoded != "" {
		return certificate.Decode(encoded)
	}
	if r.Certificate != nil {
		return *r.Certificate, nil
	}
	return certificate.Info{}, newValidationError("certificate", "required", "certificate is required")
}

type issueComplianceRequest struct {
	certificateRequest
	OTP string `json:"otp"`
}

// unitResponse is an onboarding step result together with the updated
// unit ready to be stored upstream.
type unitResponse struct {
	EncodedCertificate string `json:"encoded_certificate"`
	Result             any    `json:"result"`
}

func (s *Server) GenerateCSR(c *gin.Context) {
	var req onboardingdomain.GenerateCSRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.Environment = certificate.ParseEnvironment(string(req.Environment))

	resp, err := s.onboardingSvc.GenerateCSR(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) IssueCompliance(c *gin.Context) {
	var req issueComplianceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	cert, err := req.resolve()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	bindUnit(c, cert.Key())

	resp, err := s.onboardingSvc.IssueCompliance(c.Request.Context(), onboardingdomain.IssueComplianceRequest{
		Certificate: cert,
		OTP:         strings.TrimSpace(req.OTP),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	encoded, err := certificate.Encode(resp.Certificate)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": unitResponse{EncodedCertificate: encoded, Result: resp.Credential}})
}

// Onboard runs the compliance flows. A failed production issuance still
// reports the flow outcomes alongside the error.
func (s *Server) Onboard(c *gin.Context) {
	var req certificateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	cert, err := req.resolve()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	bindUnit(c, cert.Key())

	result, err := s.onboardingSvc.Onboard(c.Request.Context(), onboardingdomain.OnboardRequest{Certificate: cert})
	if err != nil && result == nil {
		AbortWithError(c, err)
		return
	}

	encoded, encErr := certificate.Encode(result.Certificate)
	if encErr != nil {
		AbortWithError(c, encErr)
		return
	}
	data := unitResponse{EncodedCertificate: encoded, Result: result}

	if err != nil {
		_ = c.Error(err)
		status, payload := mapError(err)
		c.AbortWithStatusJSON(status, gin.H{"error": payload, "data": data})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}

// FinishOnboarding returns the stored-certificate blob and the operator
// bundle, or the bundle alone as a zip with ?format=zip.
func (s *Server) FinishOnboarding(c *gin.Context) {
	var req certificateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	cert, err := req.resolve()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	bindUnit(c, cert.Key())

	result, err := s.onboardingSvc.Finish(c.Request.Context(), onboardingdomain.FinishRequest{Certificate: cert})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if strings.EqualFold(c.Query("format"), "zip") {
		bundle, err := artifact.Bundle(result.Files)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.BundleName))
		c.Data(http.StatusOK, "application/zip", bundle)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) GetOnboardingState(c *gin.Context) {
	env := certificate.ParseEnvironment(c.Param("environment"))
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		AbortWithError(c, newValidationError("key", "required", "key is required"))
		return
	}
	bindUnit(c, key)

	state, err := s.onboardingSvc.GetState(c.Request.Context(), key, string(env))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stateView(state)})
}

type onboardingStateView struct {
	CertificateKey      string         `json:"certificate_key"`
	Environment         string         `json:"environment"`
	Tier                string         `json:"tier"`
	ComplianceRequestID string         `json:"compliance_request_id,omitempty"`
	FlowOutcomes        map[string]any `json:"flow_outcomes,omitempty"`
	ChainCounter        int64          `json:"chain_counter"`
	ChainHash           string         `json:"chain_hash"`
	CCSIDIssuedAt       *string        `json:"ccsid_issued_at,omitempty"`
	PCSIDIssuedAt       *string        `json:"pcsid_issued_at,omitempty"`
	UpdatedAt           string         `json:"updated_at"`
}

func stateView(s *onboardingdomain.CredentialState) onboardingStateView {
	view := onboardingStateView{
		CertificateKey:      s.CertificateKey,
		Environment:         s.Environment,
		Tier:                string(s.Tier),
		ComplianceRequestID: s.ComplianceRequestID,
		FlowOutcomes:        s.FlowOutcomes,
		ChainCounter:        s.ChainCounter,
		ChainHash:           s.ChainHash,
		UpdatedAt:           s.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if s.CCSIDIssuedAt != nil {
		v := s.CCSIDIssuedAt.UTC().Format(time.RFC3339)
		view.CCSIDIssuedAt = &v
	}
	if s.PCSIDIssuedAt != nil {
		v := s.PCSIDIssuedAt.UTC().Format(time.RFC3339)
		view.PCSIDIssuedAt = &v
	}
	return view
}
