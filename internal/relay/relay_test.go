package relay

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/egsbridge/internal/certificate"
	"github.com/smallbiznis/egsbridge/internal/chain"
	invoicedomain "github.com/smallbiznis/egsbridge/internal/invoice/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodedCertificate(t *testing.T) string {
	t.Helper()
	encoded, err := certificate.Encode(certificate.Info{
		CompanyID:        "300000000000003",
		RegistrationName: "Maximum Speed Tech Supply LTD",
		EnvironmentType:  certificate.EnvironmentSimulation,
	})
	require.NoError(t, err)
	return encoded
}

func TestBindResolvesCustomFields(t *testing.T) {
	schema := DefaultSchema()
	env := Envelope{
		Referrer:    "https://manager.example/credit-note-view?Key=1",
		UUID:        "uuid-1",
		DateCreated: "2024-08-01 09:00:00",
		APIEndpoint: "https://manager.example/api2",
		APISecret:   "token",
		Total:       "SAR 1,150.004",
		Business: map[string]string{
			schema.Key(FieldCertificate): encodedCertificate(t),
			schema.Key(FieldLastCounter): "41",
			schema.Key(FieldLastHash):    "cHJldmlvdXM=",
		},
		Invoice: invoicedomain.ManagerInvoice{
			Reference: "CN-7",
			CustomFields2: invoicedomain.CustomFields{Strings: map[string]string{
				schema.Key(FieldInvoiceSubType):  "0200000",
				schema.Key(FieldPaymentMeans):    "10|In cash",
				schema.Key(FieldInstructionNote): "Damaged goods",
			}},
			Lines: []invoicedomain.Line{
				{
					Item: &invoicedomain.Item{Name: "Tuition", CustomFields2: invoicedomain.CustomFields{Strings: map[string]string{
						schema.Key(FieldItemTaxCategory): "VATEX-SA-EDU",
					}}},
					Qty: decimal.NewFromInt(1),
				},
				{Qty: decimal.NewFromInt(1)},
			},
		},
	}

	req, err := Bind(schema, env)
	require.NoError(t, err)

	assert.Equal(t, invoicedomain.SubTypeSimplified, req.SubType)
	assert.Equal(t, "10|In cash", req.PaymentMeans)
	assert.Equal(t, "Damaged goods", req.InstructionNote)
	assert.Equal(t, chain.State{Counter: 41, Hash: "cHJldmlvdXM="}, req.Chain)
	assert.Equal(t, "300000000000003", req.Certificate.CompanyID)
	assert.Equal(t, "token", req.Certificate.APISecret)
	assert.Equal(t, "VATEX-SA-EDU", req.Invoice.Lines[0].VATCategory)
	assert.Empty(t, req.Invoice.Lines[1].VATCategory)
	assert.True(t, decimal.RequireFromString("1150").Equal(req.Invoice.InvoiceTotal))
}

func TestBindDefaultsToGenesis(t *testing.T) {
	schema := DefaultSchema()
	env := Envelope{
		Business: map[string]string{schema.Key(FieldCertificate): encodedCertificate(t)},
		Invoice:  invoicedomain.ManagerInvoice{Reference: "INV-1"},
	}

	req, err := Bind(schema, env)
	require.NoError(t, err)
	assert.Equal(t, chain.Genesis(), req.Chain)
	assert.Empty(t, string(req.SubType))
}

func TestBindKeepsCounterWhenHashBlank(t *testing.T) {
	schema := DefaultSchema()
	env := Envelope{
		Business: map[string]string{
			schema.Key(FieldCertificate): encodedCertificate(t),
			schema.Key(FieldLastCounter): "41",
			schema.Key(FieldLastHash):    "  ",
		},
		Invoice: invoicedomain.ManagerInvoice{Reference: "INV-42"},
	}

	req, err := Bind(schema, env)
	require.NoError(t, err)
	assert.Equal(t, chain.State{Counter: 41, Hash: chain.GenesisHash}, req.Chain)
	assert.Equal(t, int64(42), req.Chain.NextCounter())
}

func TestBindFailures(t *testing.T) {
	schema := DefaultSchema()

	_, err := Bind(schema, Envelope{})
	assert.ErrorIs(t, err, ErrMissingCertificate)

	_, err = Bind(schema, Envelope{
		Business: map[string]string{schema.Key(FieldCertificate): encodedCertificate(t)},
		Invoice: invoicedomain.ManagerInvoice{CustomFields2: invoicedomain.CustomFields{Strings: map[string]string{
			schema.Key(FieldInvoiceSubType): "01x0000",
		}}},
	})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidSubType)
}

func TestSchemaValidate(t *testing.T) {
	s := DefaultSchema()
	s.Fields = append(s.Fields, Field{Name: FieldLastHash, Scope: ScopeBusiness, Key: "dup"})
	assert.ErrorIs(t, s.Validate(), ErrInvalidSchema)

	s = DefaultSchema()
	s.Fields[0].Scope = ScopeItem
	assert.ErrorIs(t, s.Validate(), ErrInvalidSchema)

	s = DefaultSchema()
	s.Fields = s.Fields[1:]
	assert.ErrorIs(t, s.Validate(), ErrInvalidSchema)
}

func TestLoadSchemaFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	content := `version: 2
fields:
  - {name: certificate_info, scope: business, key: 41c5c8a7}
  - {name: last_icv, scope: business, key: 8d6d6b4c}
  - {name: last_pih, scope: business, key: 3c2a0f1e}
  - {name: invoice_subtype, scope: invoice, key: 9a8b7c6d}
  - {name: payment_means, scope: invoice, key: 1f2e3d4c}
  - {name: instruction_note, scope: invoice, key: 5b6a7988}
  - {name: item_tax_category, scope: item, key: 0e0f1a2b}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	s, err := LoadSchema(path)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Version)
	assert.Equal(t, "9a8b7c6d", s.Key(FieldInvoiceSubType))

	def, err := LoadSchema("")
	require.NoError(t, err)
	assert.Equal(t, 1, def.Version)
}

func TestParseTotal(t *testing.T) {
	total, err := ParseTotal("SAR 2,345.675")
	require.NoError(t, err)
	assert.Equal(t, "2345.68", total.StringFixed(2))

	_, err = ParseTotal("n/a")
	assert.Error(t, err)
}
