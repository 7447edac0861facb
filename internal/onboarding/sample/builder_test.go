package sample

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smallbiznis/egsbridge/internal/certificate"
	"github.com/smallbiznis/egsbridge/internal/chain"
	"github.com/smallbiznis/egsbridge/internal/clock"
	invoicedomain "github.com/smallbiznis/egsbridge/internal/invoice/domain"
	invoiceservice "github.com/smallbiznis/egsbridge/internal/invoice/service"
	"github.com/smallbiznis/egsbridge/internal/onboarding/domain"
	vatservice "github.com/smallbiznis/egsbridge/internal/vat/service"
)

func newTestBuilder(signer Signer) *builder {
	assembler := invoiceservice.NewAssembler(invoiceservice.AssemblerParams{
		Log:      zap.NewNop(),
		Resolver: vatservice.NewResolver(vatservice.ResolverParams{Log: zap.NewNop()}),
	})
	b := NewBuilder(Params{
		Log:       zap.NewNop(),
		Assembler: assembler,
		Clock:     clock.NewFakeClock(time.Date(2024, time.August, 15, 9, 30, 0, 0, time.UTC)),
		Signer:    signer,
	}).(*builder)
	b.newID = func() string { return "3cf5ee18-ee25-44ea-a444-2c37ba7f28be" }
	return b
}

func sampleCertificate() certificate.Info {
	return certificate.Info{
		IdentificationID:     "1010010000",
		IdentificationScheme: "CRN",
		CityName:             "Riyadh",
		CompanyID:            "310175397400003",
		TaxSchemeID:          "VAT",
		RegistrationName:     "Seller Co.",
		EnvironmentType:      certificate.EnvironmentProduction,
	}
}

func decodeDocument(t *testing.T, s domain.Sample) string {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(s.Invoice)
	require.NoError(t, err)
	return string(raw)
}

func TestBuildDebitNote(t *testing.T) {
	b := newTestBuilder(nil)

	s, err := b.Build(context.Background(), domain.SampleSpec{
		Flow:        domain.FlowClearance,
		Kind:        domain.SampleDebitNote,
		Chain:       chain.Genesis(),
		Certificate: sampleCertificate(),
	})
	require.NoError(t, err)

	assert.Equal(t, "DN-202408-0001", s.Reference)
	assert.Equal(t, int64(1), s.Counter)
	assert.Equal(t, "3cf5ee18-ee25-44ea-a444-2c37ba7f28be", s.UUID)

	xml := decodeDocument(t, s)
	assert.Contains(t, xml, `<cbc:ID>DN-202408-0001</cbc:ID>`)
	assert.Contains(t, xml, `<cbc:ID>PCH-202408-0001</cbc:ID>`)
	assert.Contains(t, xml, `<cbc:InvoiceTypeCode name="0100000">383</cbc:InvoiceTypeCode>`)
	assert.Contains(t, xml, `<cbc:IssueDate>2024-08-15</cbc:IssueDate>`)
	assert.Contains(t, xml, `<cbc:IssueTime>09:30:00</cbc:IssueTime>`)
	assert.Contains(t, xml, chain.GenesisHash)

	sum := sha256.Sum256([]byte(xml))
	assert.Equal(t, base64.StdEncoding.EncodeToString(sum[:]), s.InvoiceHash)
}

func TestBuildUsesFlowSubtypeAndReferences(t *testing.T) {
	b := newTestBuilder(nil)
	state := chain.State{Counter: 4, Hash: "cHJldmlvdXM="}

	inv, err := b.Build(context.Background(), domain.SampleSpec{
		Flow:        domain.FlowReporting,
		Kind:        domain.SampleInvoice,
		Chain:       state,
		Certificate: sampleCertificate(),
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-202408-0001", inv.Reference)
	assert.Equal(t, int64(5), inv.Counter)
	xml := decodeDocument(t, inv)
	assert.Contains(t, xml, `<cbc:InvoiceTypeCode name="0200000">388</cbc:InvoiceTypeCode>`)
	assert.NotContains(t, xml, `<cac:BillingReference>`)
	assert.Contains(t, xml, "cHJldmlvdXM=")

	cn, err := b.Build(context.Background(), domain.SampleSpec{
		Flow:        domain.FlowReporting,
		Kind:        domain.SampleCreditNote,
		Chain:       state.Advance(inv.InvoiceHash),
		Certificate: sampleCertificate(),
	})
	require.NoError(t, err)
	assert.Equal(t, "CN-202408-0001", cn.Reference)
	assert.Equal(t, int64(6), cn.Counter)
	xml = decodeDocument(t, cn)
	assert.Contains(t, xml, `<cbc:InvoiceTypeCode name="0200000">381</cbc:InvoiceTypeCode>`)
	assert.Contains(t, xml, `<cbc:ID>INV-202408-0001</cbc:ID>`)
	assert.Contains(t, xml, inv.InvoiceHash)
}

func TestBuildTotals(t *testing.T) {
	s, err := newTestBuilder(nil).Build(context.Background(), domain.SampleSpec{
		Flow:        domain.FlowClearance,
		Kind:        domain.SampleInvoice,
		Certificate: sampleCertificate(),
	})
	require.NoError(t, err)

	xml := decodeDocument(t, s)
	assert.Contains(t, xml, `<cbc:TaxInclusiveAmount currencyID="SAR">115.00</cbc:TaxInclusiveAmount>`)
	assert.Contains(t, xml, `<cbc:PayableAmount currencyID="SAR">115.00</cbc:PayableAmount>`)
	assert.NotContains(t, xml, `PayableRoundingAmount`)
}

func TestBuildRejectsUnknownKind(t *testing.T) {
	_, err := newTestBuilder(nil).Build(context.Background(), domain.SampleSpec{
		Flow: domain.FlowClearance,
		Kind: domain.SampleKind("proforma"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestBuildPropagatesAssemblyErrors(t *testing.T) {
	cert := sampleCertificate()
	cert.RegistrationName = ""

	_, err := newTestBuilder(nil).Build(context.Background(), domain.SampleSpec{
		Flow:        domain.FlowClearance,
		Kind:        domain.SampleInvoice,
		Certificate: cert,
	})
	assert.ErrorIs(t, err, invoicedomain.ErrMissingSupplier)
}

type failingSigner struct{}

func (failingSigner) Sign(context.Context, []byte) (Signed, error) {
	return Signed{}, errors.New("hsm offline")
}

func TestBuildPropagatesSignerErrors(t *testing.T) {
	_, err := newTestBuilder(failingSigner{}).Build(context.Background(), domain.SampleSpec{
		Flow:        domain.FlowClearance,
		Kind:        domain.SampleInvoice,
		Certificate: sampleCertificate(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hsm offline")
}

func TestDigestSigner(t *testing.T) {
	signed, err := DigestSigner{}.Sign(context.Background(), []byte("0"))
	require.NoError(t, err)
	assert.Equal(t, []byte("0"), signed.Document)
	assert.Equal(t, "X+zrZv/IbzjZUnhsbWlsecLbwjndTpG0ZynXOif7V+k=", signed.Hash)
}
