package certificate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFunctions(t *testing.T) {
	tests := []struct {
		raw       string
		clearance bool
		reporting bool
	}{
		{raw: "1100", clearance: true, reporting: true},
		{raw: "1000", clearance: true},
		{raw: "0100", reporting: true},
		{raw: "0000"},
		{raw: ""},
		{raw: "1"},
		{raw: "11"},
		{raw: "11000"},
		{raw: " 1000 ", clearance: true},
	}
	for _, tt := range tests {
		f := ParseFunctions(tt.raw)
		assert.Equal(t, tt.clearance, f.Clearance(), tt.raw)
		assert.Equal(t, tt.reporting, f.Reporting(), tt.raw)
	}
}

func TestSupplierVATNumberOutsideProduction(t *testing.T) {
	info := Info{CompanyID: "300000000000003"}

	info.EnvironmentType = EnvironmentNonProduction
	assert.Equal(t, TestVATNumber, info.SupplierVATNumber())

	info.EnvironmentType = EnvironmentSimulation
	assert.Equal(t, "300000000000003", info.SupplierVATNumber())
}

func TestRedactedAndFieldsOmitSecrets(t *testing.T) {
	info := Info{APISecret: "s3cret", APIEndpoint: "https://manager.example/api", CompanyID: "300000000000003"}

	redacted := info.Redacted()
	assert.Empty(t, redacted.APISecret)
	assert.Empty(t, redacted.APIEndpoint)
	assert.Equal(t, "s3cret", info.APISecret)

	for _, field := range info.Fields() {
		assert.NotEqual(t, "ApiSecret", field.Name)
		assert.NotEqual(t, "ApiEndpoint", field.Name)
	}
}

func TestEncodeDecode(t *testing.T) {
	registered := time.Date(2024, 8, 1, 10, 0, 0, 0, time.UTC)
	info := Info{
		CompanyID:        "300000000000003",
		CsrCommonName:    "TST-886431145-399999999900003",
		EnvironmentType:  EnvironmentSimulation,
		PCSIDBinaryToken: "dG9rZW4=",
		RegisteredDate:   &registered,
	}

	encoded, err := Encode(info)
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, info.CsrCommonName, decoded.CsrCommonName)
	assert.Equal(t, info.EnvironmentType, decoded.EnvironmentType)
	assert.True(t, registered.Equal(*decoded.RegisteredDate))

	_, err = Decode("not base64!")
	assert.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestParseEnvironment(t *testing.T) {
	assert.Equal(t, EnvironmentSimulation, ParseEnvironment("simulation"))
	assert.Equal(t, EnvironmentProduction, ParseEnvironment("Production"))
	assert.Equal(t, EnvironmentNonProduction, ParseEnvironment(""))
}
