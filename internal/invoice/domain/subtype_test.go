package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSubType(t *testing.T) {
	tests := []struct {
		raw     string
		want    SubType
		wantErr bool
	}{
		{raw: "", want: SubTypeStandard},
		{raw: " 0200000 ", want: SubTypeSimplified},
		{raw: "0100100", want: SubType("0100100")},
		{raw: "010000", wantErr: true},
		{raw: "01000X0", wantErr: true},
		{raw: "0300000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseSubType(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSubType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSubTypeFlags(t *testing.T) {
	export := SubType("0100100")
	assert.True(t, export.IsStandard())
	assert.True(t, export.IsExport())
	assert.False(t, export.IsNominal())
	assert.True(t, export.RequiresBuyerIdentification())

	simplifiedExport := SubType("0200100")
	assert.True(t, simplifiedExport.IsSimplified())
	assert.False(t, simplifiedExport.RequiresBuyerIdentification())

	all := SubType("0111111")
	assert.True(t, all.IsThirdParty())
	assert.True(t, all.IsNominal())
	assert.True(t, all.IsSummary())
	assert.True(t, all.IsSelfBilled())

	assert.False(t, SubType("short").IsExport())
}

func TestTypeCodeForReferrer(t *testing.T) {
	assert.Equal(t, TypeDebitNote, TypeCodeForReferrer("https://manager.local/debit-note-view"))
	assert.Equal(t, TypeCreditNote, TypeCodeForReferrer("Credit-Note"))
	assert.Equal(t, TypeInvoice, TypeCodeForReferrer("sales-invoice"))
	assert.Equal(t, TypeInvoice, TypeCodeForReferrer(""))
	assert.Equal(t, "credit_note", TypeCreditNote.String())
}

func TestDateJSON(t *testing.T) {
	var payload struct {
		Issue Date `json:"issue"`
		Due   Date `json:"due"`
		Empty Date `json:"empty"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"issue":"2024-08-15","due":"2024-09-14T00:00:00Z","empty":""}`), &payload))

	assert.Equal(t, NewDate(2024, time.August, 15), payload.Issue)
	assert.Equal(t, "2024-09-14", payload.Due.String())
	assert.True(t, payload.Empty.IsZero())

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"issue":"2024-08-15","due":"2024-09-14","empty":null}`, string(raw))
}

func TestParseDateRejectsGarbage(t *testing.T) {
	_, err := ParseDate("15/08/2024")
	assert.ErrorIs(t, err, ErrInvalidDate)
}
