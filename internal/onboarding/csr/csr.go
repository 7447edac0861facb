// Package csr validates certificate signing request subjects and applies the
// sandbox overrides the authority expects before generation.
package csr

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/smallbiznis/egsbridge/internal/certificate"
	"github.com/smallbiznis/egsbridge/internal/onboarding/domain"
)

// Generated is the output of a CSR generator.
type Generated struct {
	CSR           string
	PrivateKeyPEM string
	Messages      []string
}

// Generator produces a CSR and its private key from a validated subject.
type Generator interface {
	Generate(ctx context.Context, input domain.CSRInput, env certificate.EnvironmentType) (Generated, error)
}

// Unavailable is the generator used when no key material backend is
// configured.
type Unavailable struct{}

func (Unavailable) Generate(context.Context, domain.CSRInput, certificate.EnvironmentType) (Generated, error) {
	return Generated{}, domain.ErrCSRGeneratorUnavailable
}

func NewGenerator() Generator {
	return Unavailable{}
}

type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError lists every rejected CSR field.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		fields = append(fields, fe.Field)
	}
	return "invalid csr input: " + strings.Join(fields, ", ")
}

func (e *ValidationError) Unwrap() error {
	return domain.ErrInvalidRequest
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the subject against the authority's field rules.
func Validate(input domain.CSRInput) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := &ValidationError{Errors: make([]FieldError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Errors = append(out.Errors, FieldError{
			Field:   fe.Field(),
			Code:    fe.Tag(),
			Message: message(fe),
		})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "numeric":
		return fmt.Sprintf("%s must contain digits only", fe.Field())
	case "alpha":
		return fmt.Sprintf("%s must contain letters only", fe.Field())
	case "startswith", "endswith":
		return fmt.Sprintf("%s must %s with %s", fe.Field(), strings.TrimSuffix(fe.Tag(), "with"), fe.Param())
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}

// Prepare validates the subject and, outside production, substitutes the
// authority's test organization identifier. The last 15 characters of the
// common name are replaced with the same identifier.
func Prepare(input domain.CSRInput, env certificate.EnvironmentType) (domain.CSRInput, error) {
	if err := Validate(input); err != nil {
		return domain.CSRInput{}, err
	}
	if !env.IsNonProduction() {
		return input, nil
	}
	id := certificate.TestOrganizationIdentifier
	input.OrganizationIdentifier = id
	if len(input.CommonName) >= len(id) {
		input.CommonName = input.CommonName[:len(input.CommonName)-len(id)] + id
	}
	return input, nil
}
