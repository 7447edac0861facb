package service

import (
	"github.com/smallbiznis/egsbridge/internal/certificate"
	"github.com/smallbiznis/egsbridge/internal/config"
	"github.com/smallbiznis/egsbridge/internal/onboarding/domain"
)

type configEndpoints struct {
	holder *config.AuthorityConfigHolder
}

// NewEndpointSource resolves authority URLs from the watched authority
// config, so reloads apply to the next call.
func NewEndpointSource(holder *config.AuthorityConfigHolder) domain.EndpointSource {
	return configEndpoints{holder: holder}
}

func (c configEndpoints) Endpoints(env certificate.EnvironmentType) domain.Endpoints {
	e := c.holder.Get().Endpoints(string(env))
	return domain.Endpoints{
		ComplianceCSID:  e.ComplianceCSID,
		ComplianceCheck: e.ComplianceCheck,
		ProductionCSID:  e.ProductionCSID,
	}
}
