package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatalogueCodesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, e := range Catalogue() {
		assert.False(t, seen[e.Code], "duplicate exemption code %s", e.Code)
		seen[e.Code] = true
		assert.NotEqual(t, CategoryStandard, e.Category)
		assert.NotEmpty(t, e.Reason)
	}
	assert.True(t, seen[ExemptionPrivateEducation])
	assert.True(t, seen[ExemptionPrivateHealthcare])
}

func TestCatalogueReturnsCopy(t *testing.T) {
	c := Catalogue()
	c[0].Code = "changed"
	assert.NotEqual(t, "changed", Catalogue()[0].Code)
}

func TestRequiresBuyerIdentification(t *testing.T) {
	assert.True(t, RequiresBuyerIdentification(" vatex-sa-edu "))
	assert.True(t, RequiresBuyerIdentification(ExemptionPrivateHealthcare))
	assert.False(t, RequiresBuyerIdentification("VATEX-SA-32"))
	assert.False(t, RequiresBuyerIdentification(""))
}

func TestLookupError(t *testing.T) {
	err := &LookupError{Identifier: "Z9"}
	assert.True(t, errors.Is(err, ErrUnknownTaxCategory))
	assert.Equal(t, `vat category "Z9" not recognised`, err.Error())
	assert.Equal(t, "vat category missing for zero-rated line", (&LookupError{}).Error())
}

func TestExemptionInfo(t *testing.T) {
	info := Exemption{Code: "VATEX-SA-35", Category: CategoryZeroRated, Reason: "Medicines and medical equipment"}.Info()
	assert.Equal(t, Info{Category: CategoryZeroRated, ExemptionReasonCode: "VATEX-SA-35", ExemptionReason: "Medicines and medical equipment"}, info)
	assert.Equal(t, Info{Category: CategoryStandard}, Standard())
}
