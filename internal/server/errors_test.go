package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	invoicedomain "github.com/smallbiznis/egsbridge/internal/invoice/domain"
	"github.com/smallbiznis/egsbridge/internal/onboarding/csr"
	onboardingdomain "github.com/smallbiznis/egsbridge/internal/onboarding/domain"
	vatdomain "github.com/smallbiznis/egsbridge/internal/vat/domain"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		errType string
		code    string
		field   string
		message string
	}{
		{
			name:    "wrapped sentinel",
			err:     fmt.Errorf("assemble: %w", invoicedomain.ErrMissingSupplier),
			status:  http.StatusBadRequest,
			errType: "validation_error",
			code:    "missing_supplier",
			field:   "supplier",
			message: "invalid value",
		},
		{
			name:    "lookup error keeps its message",
			err:     &vatdomain.LookupError{Identifier: "Z9"},
			status:  http.StatusBadRequest,
			errType: "validation_error",
			code:    vatdomain.ErrUnknownTaxCategory.Error(),
			message: `vat category "Z9" not recognised`,
		},
		{
			name:    "authority rejection",
			err:     &onboardingdomain.AuthorityError{Kind: onboardingdomain.FailureRejected, Reason: "bad csr"},
			status:  http.StatusBadGateway,
			errType: "authority_error",
			message: "bad csr",
		},
		{
			name:    "authority transport without reason",
			err:     &onboardingdomain.AuthorityError{Kind: onboardingdomain.FailureTransport},
			status:  http.StatusBadGateway,
			errType: "authority_error",
			message: "transport failure",
		},
		{
			name:    "in progress",
			err:     onboardingdomain.ErrOnboardingInProgress,
			status:  http.StatusConflict,
			errType: "conflict",
		},
		{
			name:    "state not found",
			err:     fmt.Errorf("load: %w", onboardingdomain.ErrStateNotFound),
			status:  http.StatusNotFound,
			errType: "not_found",
		},
		{
			name:    "csr generator unavailable",
			err:     onboardingdomain.ErrCSRGeneratorUnavailable,
			status:  http.StatusNotImplemented,
			errType: "not_implemented",
		},
		{
			name:    "unknown",
			err:     errors.New("boom"),
			status:  http.StatusInternalServerError,
			errType: "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, payload := mapError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.errType, payload.Type)
			if tt.code != "" {
				require.Len(t, payload.Errors, 1)
				assert.Equal(t, tt.code, payload.Errors[0].Code)
				assert.Equal(t, tt.message, payload.Errors[0].Message)
				if tt.field != "" {
					assert.Equal(t, tt.field, payload.Errors[0].Field)
				}
				return
			}
			if tt.message != "" {
				assert.Equal(t, tt.message, payload.Message)
			}
		})
	}
}

func TestMapErrorCSRValidation(t *testing.T) {
	err := &csr.ValidationError{Errors: []csr.FieldError{
		{Field: "organization_identifier", Code: "len", Message: "must be 15 digits"},
		{Field: "invoice_type", Code: "required", Message: "is required"},
	}}

	status, payload := mapError(fmt.Errorf("generate csr: %w", err))

	assert.Equal(t, http.StatusBadRequest, status)
	require.Len(t, payload.Errors, 2)
	assert.Equal(t, "organization_identifier", payload.Errors[0].Field)
	assert.Equal(t, "required", payload.Errors[1].Code)
}

func TestClassifyErrorForLog(t *testing.T) {
	errType, code := classifyErrorForLog(&onboardingdomain.AuthorityError{Kind: onboardingdomain.FailureAuthentication})
	assert.Equal(t, "authority_error", errType)
	assert.Equal(t, "authentication", code)

	errType, code = classifyErrorForLog(onboardingdomain.ErrMissingOTP)
	assert.Equal(t, "validation_error", errType)
	assert.Equal(t, "missing_otp", code)

	errType, code = classifyErrorForLog(errors.New("boom"))
	assert.Equal(t, "internal_error", errType)
	assert.Equal(t, "internal_error", code)
}
