package certificate

import "time"

// Field is one named value of an Info, in declaration order.
type Field struct {
	Name  string
	Value string
}

// Fields lists every non-secret property of the unit.
func (i Info) Fields() []Field {
	registered := ""
	if i.RegisteredDate != nil {
		registered = i.RegisteredDate.UTC().Format(time.RFC3339)
	}
	return []Field{
		{Name: "IdentificationID", Value: i.IdentificationID},
		{Name: "IdentificationScheme", Value: i.IdentificationScheme},
		{Name: "StreetName", Value: i.StreetName},
		{Name: "BuildingNumber", Value: i.BuildingNumber},
		{Name: "CitySubdivisionName", Value: i.CitySubdivisionName},
		{Name: "CityName", Value: i.CityName},
		{Name: "PostalZone", Value: i.PostalZone},
		{Name: "CountryIdentificationCode", Value: i.CountryIdentificationCode},
		{Name: "CompanyID", Value: i.CompanyID},
		{Name: "TaxSchemeID", Value: i.TaxSchemeID},
		{Name: "RegistrationName", Value: i.RegistrationName},
		{Name: "BusinessCategory", Value: i.BusinessCategory},
		{Name: "EnvironmentType", Value: string(i.EnvironmentType)},
		{Name: "CsrCommonName", Value: i.CsrCommonName},
		{Name: "CsrSerialNumber", Value: i.CsrSerialNumber},
		{Name: "CsrOrganizationIdentifier", Value: i.CsrOrganizationIdentifier},
		{Name: "CsrOrganizationUnitName", Value: i.CsrOrganizationUnitName},
		{Name: "CsrOrganizationName", Value: i.CsrOrganizationName},
		{Name: "CsrCountryName", Value: i.CsrCountryName},
		{Name: "CsrInvoiceType", Value: i.CsrInvoiceType},
		{Name: "CsrLocationAddress", Value: i.CsrLocationAddress},
		{Name: "CsrIndustryBusinessCategory", Value: i.CsrIndustryBusinessCategory},
		{Name: "GeneratedCsr", Value: i.GeneratedCSR},
		{Name: "EcSecp256k1Privkeypem", Value: i.PrivateKeyPEM},
		{Name: "CCSIDBinaryToken", Value: i.CCSIDBinaryToken},
		{Name: "CCSIDComplianceRequestId", Value: i.CCSIDComplianceRequestID},
		{Name: "CCSIDSecret", Value: i.CCSIDSecret},
		{Name: "PCSIDBinaryToken", Value: i.PCSIDBinaryToken},
		{Name: "PCSIDSecret", Value: i.PCSIDSecret},
		{Name: "RegisteredDate", Value: registered},
		{Name: "ComplianceCsidUrl", Value: i.ComplianceCSIDURL},
		{Name: "ComplianceCheckUrl", Value: i.ComplianceCheckURL},
		{Name: "ProductionCsidUrl", Value: i.ProductionCSIDURL},
	}
}
