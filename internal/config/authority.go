package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const authorityGateway = "https://gw-fatoora.zatca.gov.sa/e-invoicing"

// AuthorityEndpoints are the onboarding URLs of one authority environment.
type AuthorityEndpoints struct {
	ComplianceCSID  string `mapstructure:"compliance_csid"`
	ComplianceCheck string `mapstructure:"compliance_check"`
	ProductionCSID  string `mapstructure:"production_csid"`
}

type AuthorityConfig struct {
	// Environments is keyed by lower-cased environment type.
	Environments map[string]AuthorityEndpoints `mapstructure:"environments"`
	MaxAttempts  int                           `mapstructure:"max_attempts"`
	BaseDelay    time.Duration                 `mapstructure:"base_delay"`
}

func gatewayEndpoints(portal string) AuthorityEndpoints {
	base := authorityGateway + "/" + portal
	return AuthorityEndpoints{
		ComplianceCSID:  base + "/compliance",
		ComplianceCheck: base + "/compliance/invoices",
		ProductionCSID:  base + "/production/csids",
	}
}

func DefaultAuthorityConfig() AuthorityConfig {
	return AuthorityConfig{
		Environments: map[string]AuthorityEndpoints{
			"nonproduction": gatewayEndpoints("developer-portal"),
			"simulation":    gatewayEndpoints("simulation"),
			"production":    gatewayEndpoints("core"),
		},
		MaxAttempts: 3,
		BaseDelay:   time.Second,
	}
}

// Endpoints returns the URLs of an environment. Unknown environments fall
// back to the developer portal.
func (c AuthorityConfig) Endpoints(env string) AuthorityEndpoints {
	key := strings.ToLower(strings.TrimSpace(env))
	if key == "" {
		key = "nonproduction"
	}
	if e, ok := c.Environments[key]; ok {
		return e
	}
	return c.Environments["nonproduction"]
}

type AuthorityConfigHolder struct {
	current atomic.Value // holds AuthorityConfig
}

// NewAuthorityConfigHolder reads authority.yml and keeps watching it. A
// missing file yields the defaults.
func NewAuthorityConfigHolder(app Config, log *zap.Logger) (*AuthorityConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.authority")

	v := viper.New()
	if app.Authority.ConfigPath != "" {
		v.SetConfigFile(app.Authority.ConfigPath)
	} else {
		v.SetConfigName("authority")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/egsbridge")
		v.AddConfigPath(".")
	}

	defaults := DefaultAuthorityConfig()
	for name, e := range defaults.Environments {
		v.SetDefault("authority.environments."+name+".compliance_csid", e.ComplianceCSID)
		v.SetDefault("authority.environments."+name+".compliance_check", e.ComplianceCheck)
		v.SetDefault("authority.environments."+name+".production_csid", e.ProductionCSID)
	}
	v.SetDefault("authority.max_attempts", defaults.MaxAttempts)
	v.SetDefault("authority.base_delay", defaults.BaseDelay)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileFound = false
	}

	cfg, err := decodeAuthorityConfig(v)
	if err != nil {
		return nil, err
	}

	holder := &AuthorityConfigHolder{}
	holder.current.Store(cfg)

	if fileFound {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := decodeAuthorityConfig(v)
			if err != nil {
				log.Warn("authority config reload rejected", zap.String("file", e.Name), zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("authority config reloaded", zap.String("file", e.Name))
		})
	}

	return holder, nil
}

func (h *AuthorityConfigHolder) Get() AuthorityConfig {
	return h.current.Load().(AuthorityConfig)
}

func decodeAuthorityConfig(v *viper.Viper) (AuthorityConfig, error) {
	// Unmarshal merges file values over defaults key by key; UnmarshalKey
	// would drop default environments missing from the file.
	var wrapper struct {
		Authority AuthorityConfig `mapstructure:"authority"`
	}
	if err := v.Unmarshal(&wrapper); err != nil {
		return AuthorityConfig{}, err
	}
	if err := validateAuthorityConfig(wrapper.Authority); err != nil {
		return AuthorityConfig{}, err
	}
	return wrapper.Authority, nil
}

func validateAuthorityConfig(cfg AuthorityConfig) error {
	if cfg.MaxAttempts <= 0 {
		return errors.New("authority.max_attempts must be positive")
	}
	if cfg.BaseDelay <= 0 {
		return errors.New("authority.base_delay must be positive")
	}
	for name, e := range cfg.Environments {
		if e.ComplianceCSID == "" || e.ComplianceCheck == "" || e.ProductionCSID == "" {
			return fmt.Errorf("authority.environments.%s: every endpoint is required", name)
		}
	}
	if _, ok := cfg.Environments["nonproduction"]; !ok {
		return errors.New("authority.environments.nonproduction is required")
	}
	return nil
}
