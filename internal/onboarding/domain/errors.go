package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest              = errors.New("invalid_request")
	ErrMissingOTP                  = errors.New("missing_otp")
	ErrMissingCSR                  = errors.New("missing_csr")
	ErrMissingComplianceCredential = errors.New("missing_compliance_credential")
	ErrMissingProductionCredential = errors.New("missing_production_credential")
	ErrNoEnabledFlow               = errors.New("no_enabled_flow")
	ErrOnboardingInProgress        = errors.New("onboarding_in_progress")
	ErrCSRGeneratorUnavailable     = errors.New("csr_generator_unavailable")
	ErrStateNotFound               = errors.New("onboarding_state_not_found")
	ErrAuthority                   = errors.New("authority_error")
)

// FailureKind classifies a failed authority call.
type FailureKind string

const (
	FailureTransport      FailureKind = "transport"
	FailureAuthentication FailureKind = "authentication"
	FailureSerialization  FailureKind = "serialization"
	FailureRejected       FailureKind = "rejected"
	FailureCancelled      FailureKind = "cancelled"
)

// Retryable reports whether another attempt may succeed.
func (k FailureKind) Retryable() bool {
	return k == FailureTransport
}

// AuthorityError describes a failed authority call.
type AuthorityError struct {
	Operation string
	Kind      FailureKind
	Status    int
	Reason    string
	Attempts  int
	Err       error
}

func (e *AuthorityError) Error() string {
	msg := fmt.Sprintf("%s: %s failure", e.Operation, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthorityError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrAuthority}
	}
	return []error{ErrAuthority, e.Err}
}
