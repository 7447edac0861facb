package invoice

import (
	"github.com/smallbiznis/egsbridge/internal/invoice/service"
	"github.com/smallbiznis/egsbridge/internal/vat"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	vat.Module,
	fx.Provide(service.NewAssembler),
)
