package service

import (
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	vatdomain "github.com/smallbiznis/egsbridge/internal/vat/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ResolverParams struct {
	fx.In

	Log *zap.Logger `optional:"true"`
}

type resolver struct {
	log        *zap.Logger
	exemptions map[string]vatdomain.Exemption
}

// NewResolver builds a Resolver over the exemption reason catalogue.
func NewResolver(p ResolverParams) vatdomain.Resolver {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &resolver{
		log: log.Named("vat.resolver"),
		exemptions: lo.SliceToMap(vatdomain.Catalogue(), func(e vatdomain.Exemption) (string, vatdomain.Exemption) {
			return e.Code, e
		}),
	}
}

func (r *resolver) Resolve(ratePercent decimal.Decimal, identifier string) (vatdomain.Info, error) {
	if ratePercent.IsNegative() {
		return vatdomain.Info{}, vatdomain.ErrInvalidTaxRate
	}
	if ratePercent.IsPositive() {
		return vatdomain.Standard(), nil
	}

	code := normalizeIdentifier(identifier)
	if code == "" {
		return vatdomain.Info{}, &vatdomain.LookupError{}
	}
	if code == string(vatdomain.CategoryOutOfScope) {
		code = "VATEX-SA-OOS"
	}

	exemption, ok := r.exemptions[code]
	if !ok {
		r.log.Debug("unrecognised vat category", zap.String("identifier", identifier))
		return vatdomain.Info{}, &vatdomain.LookupError{Identifier: identifier}
	}
	return exemption.Info(), nil
}

// normalizeIdentifier keeps the leading code of values such as
// "VATEX-SA-EDU | Private education to citizen".
func normalizeIdentifier(identifier string) string {
	value := strings.TrimSpace(identifier)
	if idx := strings.IndexAny(value, " |\t"); idx >= 0 {
		value = value[:idx]
	}
	return strings.ToUpper(value)
}
