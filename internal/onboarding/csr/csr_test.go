package csr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/egsbridge/internal/certificate"
	"github.com/smallbiznis/egsbridge/internal/onboarding/domain"
)

func validInput() domain.CSRInput {
	return domain.CSRInput{
		CommonName:               "TST-886431145-310175397400003",
		SerialNumber:             "1-TST|2-TST|3-ed22f1d8-e6a2-1118-9b58-d9a8f11e445f",
		OrganizationIdentifier:   "310175397400003",
		OrganizationUnitName:     "Riyadh Branch",
		OrganizationName:         "Maximum Speed Tech Supply LTD",
		CountryName:              "SA",
		InvoiceType:              "1100",
		LocationAddress:          "RRRD2929",
		IndustryBusinessCategory: "Supply activities",
	}
}

func TestPrepareNonProductionOverridesIdentifier(t *testing.T) {
	out, err := Prepare(validInput(), certificate.EnvironmentNonProduction)
	require.NoError(t, err)

	assert.Equal(t, "399999999800003", out.OrganizationIdentifier)
	assert.Equal(t, "TST-886431145-399999999800003", out.CommonName)
	assert.Equal(t, "Riyadh Branch", out.OrganizationUnitName)
}

func TestPrepareProductionKeepsSubject(t *testing.T) {
	for _, env := range []certificate.EnvironmentType{certificate.EnvironmentSimulation, certificate.EnvironmentProduction} {
		out, err := Prepare(validInput(), env)
		require.NoError(t, err)
		assert.Equal(t, validInput(), out, env)
	}
}

func TestPrepareCommonNameOfExactlyFifteen(t *testing.T) {
	in := validInput()
	in.CommonName = "310175397400003"

	out, err := Prepare(in, certificate.EnvironmentNonProduction)
	require.NoError(t, err)
	assert.Equal(t, "399999999800003", out.CommonName)
}

func TestValidateReportsEveryField(t *testing.T) {
	in := validInput()
	in.OrganizationIdentifier = "210175397400003"
	in.CountryName = "SAU"
	in.InvoiceType = "11A0"
	in.LocationAddress = ""

	err := Validate(in)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	fields := map[string]string{}
	for _, fe := range vErr.Errors {
		fields[fe.Field] = fe.Code
	}
	assert.Equal(t, map[string]string{
		"organization_identifier": "startswith",
		"country_name":            "len",
		"invoice_type":            "numeric",
		"location_address":        "required",
	}, fields)
}

func TestPrepareRejectsBeforeOverride(t *testing.T) {
	in := validInput()
	in.OrganizationIdentifier = "123"

	_, err := Prepare(in, certificate.EnvironmentNonProduction)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestUnavailableGenerator(t *testing.T) {
	_, err := NewGenerator().Generate(context.Background(), validInput(), certificate.EnvironmentNonProduction)
	assert.ErrorIs(t, err, domain.ErrCSRGeneratorUnavailable)
}
