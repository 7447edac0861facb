package onboarding

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/egsbridge/internal/config"
	"github.com/smallbiznis/egsbridge/internal/onboarding/client"
	"github.com/smallbiznis/egsbridge/internal/onboarding/csr"
	"github.com/smallbiznis/egsbridge/internal/onboarding/lock"
	"github.com/smallbiznis/egsbridge/internal/onboarding/repository"
	"github.com/smallbiznis/egsbridge/internal/onboarding/sample"
	"github.com/smallbiznis/egsbridge/internal/onboarding/service"
)

func clientConfig(app config.Config, holder *config.AuthorityConfigHolder) client.Config {
	authority := holder.Get()
	return client.Config{
		Timeout:     app.Authority.Timeout,
		MaxAttempts: authority.MaxAttempts,
		BaseDelay:   authority.BaseDelay,
	}
}

var Module = fx.Module("onboarding.service",
	fx.Provide(
		config.NewAuthorityConfigHolder,
		clientConfig,
		client.New,
		client.NewAuthorityClient,
		sample.NewBuilder,
		csr.NewGenerator,
		lock.New,
		repository.New,
		service.NewConfig,
		service.NewEndpointSource,
		service.NewService,
	),
)
