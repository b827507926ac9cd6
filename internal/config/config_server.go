package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/fragpit/envoy-auth/pkg/utils"
)

const (
	StrategyBearer = "bearer"
	StrategyHeader = "header"
)

type ServerConfig struct {
	ListenAddress string     `mapstructure:"listen_address"`
	AdminAPIKey   string     `mapstructure:"admin_api_key"`
	Auth          Auth       `mapstructure:"auth"`
	Cache         Cache      `mapstructure:"cache"`
	SQLite        SQLite     `mapstructure:"sqlite"`
	Postgresql    Postgresql `mapstructure:"postgresql"`
	Vault         Vault      `mapstructure:"vault"`
}

type Auth struct {
	Strategy    string   `mapstructure:"strategy"`
	Roles       []string `mapstructure:"roles"`
	TokenSize   int      `mapstructure:"token_size"`
	PKIRoleName string   `mapstructure:"pki_role_name"`
}

type Cache struct {
	Certs           SizeAndTTL `mapstructure:"certs"`
	TokenValidation SizeAndTTL `mapstructure:"token_validation"`
}

type SizeAndTTL struct {
	MaxSize int64  `mapstructure:"max_size"`
	TTL     string `mapstructure:"ttl"`
}

type SQLite struct {
	DatabaseFolder string `mapstructure:"database_folder"`
}

type Postgresql struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
}

type Vault struct {
	Address    string `mapstructure:"address"`
	Token      string `mapstructure:"token"`
	PKIMount   string `mapstructure:"pki_mount"`
	Timeout    string `mapstructure:"timeout"`
	CACert     string `mapstructure:"ca_cert"`
	SkipVerify bool   `mapstructure:"skip_verify"`
}

// SetServerDefaults registers defaults for every server key that has one.
func SetServerDefaults(v *viper.Viper) {
	v.SetDefault("listen_address", ":8080")
	v.SetDefault("auth.strategy", StrategyBearer)
	v.SetDefault("auth.roles", []string{"COMPUTE_DEFAULT"})
	v.SetDefault("auth.token_size", 18)
	v.SetDefault("auth.pki_role_name", "telemetry-infra")
	v.SetDefault("cache.certs.max_size", 500)
	v.SetDefault("cache.certs.ttl", "600s")
	v.SetDefault("cache.token_validation.max_size", 500)
	v.SetDefault("cache.token_validation.ttl", "60s")
	v.SetDefault("postgresql.port", 5432)
	v.SetDefault("vault.pki_mount", "pki")
	v.SetDefault("vault.timeout", "30s")
}

func NewServerConfig() (*ServerConfig, error) {
	return newServerConfig(viper.GetViper())
}

func newServerConfig(v *viper.Viper) (*ServerConfig, error) {
	SetServerDefaults(v)

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *ServerConfig) Validate() error {
	switch c.Auth.Strategy {
	case StrategyBearer, StrategyHeader:
	default:
		return fmt.Errorf("unknown auth strategy: %q", c.Auth.Strategy)
	}

	if c.Auth.TokenSize <= 0 {
		return fmt.Errorf("auth.token_size must be positive, got %d", c.Auth.TokenSize)
	}

	if c.Auth.PKIRoleName == "" {
		return fmt.Errorf("auth.pki_role_name is empty")
	}

	if c.Auth.Strategy == StrategyHeader && len(c.Auth.Roles) == 0 {
		return fmt.Errorf("auth.roles is empty for header strategy")
	}

	for name, sz := range map[string]SizeAndTTL{
		"certs":            c.Cache.Certs,
		"token_validation": c.Cache.TokenValidation,
	} {
		if sz.MaxSize <= 0 {
			return fmt.Errorf("cache.%s.max_size must be positive", name)
		}
		if _, err := utils.ParsePositiveDuration(sz.TTL); err != nil {
			return fmt.Errorf("cache.%s.ttl: %w", name, err)
		}
	}

	if _, err := utils.ParsePositiveDuration(c.Vault.Timeout); err != nil {
		return fmt.Errorf("vault.timeout: %w", err)
	}

	return nil
}

// TTLDuration returns the parsed ttl of a validated SizeAndTTL.
func (s SizeAndTTL) TTLDuration() time.Duration {
	d, _ := utils.ParsePositiveDuration(s.TTL)
	return d
}

func (v Vault) TimeoutDuration() time.Duration {
	d, _ := utils.ParsePositiveDuration(v.Timeout)
	return d
}
