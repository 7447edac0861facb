package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/smallbiznis/egsbridge/internal/certificate"
	invoicedomain "github.com/smallbiznis/egsbridge/internal/invoice/domain"
	"github.com/smallbiznis/egsbridge/internal/onboarding/csr"
	onboardingdomain "github.com/smallbiznis/egsbridge/internal/onboarding/domain"
	"github.com/smallbiznis/egsbridge/internal/relay"
	vatdomain "github.com/smallbiznis/egsbridge/internal/vat/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

// validationSentinels are domain errors the caller can fix by changing the
// request. Order matters: the first match names the error code.
var validationSentinels = []error{
	ErrInvalidRequest,
	onboardingdomain.ErrInvalidRequest,
	onboardingdomain.ErrMissingOTP,
	onboardingdomain.ErrMissingCSR,
	onboardingdomain.ErrMissingComplianceCredential,
	onboardingdomain.ErrMissingProductionCredential,
	onboardingdomain.ErrNoEnabledFlow,
	invoicedomain.ErrInvalidSubType,
	invoicedomain.ErrInvalidDate,
	invoicedomain.ErrMissingInvoice,
	invoicedomain.ErrMissingSupplier,
	invoicedomain.ErrMissingReference,
	invoicedomain.ErrInvalidLine,
	invoicedomain.ErrMissingTaxCategory,
	vatdomain.ErrUnknownTaxCategory,
	vatdomain.ErrInvalidTaxRate,
	relay.ErrMissingCertificate,
	certificate.ErrInvalidEncoding,
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// bindError turns a request binding failure into field errors.
func bindError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return invalidRequestError()
	}
	out := &ValidationErrors{}
	for _, fe := range fieldErrs {
		out.Errors = append(out.Errors, ValidationError{
			Field:   strings.ToLower(fe.Field()),
			Code:    fe.Tag(),
			Message: "invalid value",
		})
	}
	return out
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var csrErr *csr.ValidationError
	if errors.As(err, &csrErr) {
		fields := make([]ValidationError, 0, len(csrErr.Errors))
		for _, fe := range csrErr.Errors {
			fields = append(fields, ValidationError{Field: fe.Field, Code: fe.Code, Message: fe.Message})
		}
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  fields,
		}
	}

	if code, ok := validationErrorCode(err); ok {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code, err),
				},
			},
		}
	}

	var authErr *onboardingdomain.AuthorityError
	if errors.As(err, &authErr) {
		message := authErr.Reason
		if message == "" {
			message = string(authErr.Kind) + " failure"
		}
		return http.StatusBadGateway, errorPayload{
			Type:    "authority_error",
			Message: message,
		}
	}

	switch {
	case errors.Is(err, onboardingdomain.ErrOnboardingInProgress):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "onboarding already in progress",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, onboardingdomain.ErrCSRGeneratorUnavailable):
		return http.StatusNotImplemented, errorPayload{
			Type:    "not_implemented",
			Message: "csr generation is not available",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, onboardingdomain.ErrStateNotFound)
}

func validationErrorCode(err error) (string, bool) {
	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel) {
			return sentinel.Error(), true
		}
	}
	return "", false
}

func validationErrorField(code string) string {
	switch {
	case code == "invalid_request":
		return "request"
	case strings.HasPrefix(code, "invalid_"):
		return strings.TrimPrefix(code, "invalid_")
	case strings.HasPrefix(code, "missing_"):
		return strings.TrimPrefix(code, "missing_")
	case strings.HasPrefix(code, "unknown_"):
		return strings.TrimPrefix(code, "unknown_")
	}
	return ""
}

func validationErrorMessage(code string, err error) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case vatdomain.ErrUnknownTaxCategory.Error():
		var lookup *vatdomain.LookupError
		if errors.As(err, &lookup) {
			return lookup.Error()
		}
	}
	return "invalid value"
}

// classifyErrorForLog reports the error type and code logged with a failed
// request.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	var authErr *onboardingdomain.AuthorityError
	if errors.As(err, &authErr) {
		code = string(authErr.Kind)
	}
	return payload.Type, code
}
