package relay

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/egsbridge/internal/config"
)

var Module = fx.Module("relay",
	fx.Provide(NewSchema),
)

// NewSchema loads the upstream field registry configured for the process.
func NewSchema(cfg config.Config) (Schema, error) {
	return LoadSchema(cfg.Onboarding.FieldSchemaPath)
}
