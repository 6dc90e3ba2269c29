package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/iudanet/shelfsync/internal/logging"
)

// minSecretLength is the shortest accepted HS256 secret
const minSecretLength = 32

// ServerConfig is the configuration of shelfsync-server
type ServerConfig struct {
	Log             logging.Config `mapstructure:"log"`
	Address         string         `mapstructure:"address"`
	DBPath          string         `mapstructure:"db_path"`
	JWTSecret       string         `mapstructure:"jwt_secret"`
	AccessTokenTTL  time.Duration  `mapstructure:"access_token_ttl"`
	ShutdownTimeout time.Duration  `mapstructure:"shutdown_timeout"`
	AuthRateWindow  time.Duration  `mapstructure:"auth_rate_window"`
	AuthRateLimit   int            `mapstructure:"auth_rate_limit"`
	MaxPushBatch    int            `mapstructure:"max_push_batch"`
}

// SetServerDefaults registers server defaults in v
func SetServerDefaults(v *viper.Viper) {
	v.SetDefault("address", ":8080")
	v.SetDefault("db_path", "shelfsync.db")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("access_token_ttl", 24*time.Hour)
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("auth_rate_limit", 10)
	v.SetDefault("auth_rate_window", time.Minute)
	v.SetDefault("max_push_batch", 500)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 28)
}

// NewServerViper returns a viper instance with server defaults
func NewServerViper(configFile string) (*viper.Viper, error) {
	v, err := newViper(configFile)
	if err != nil {
		return nil, err
	}
	SetServerDefaults(v)
	return v, nil
}

// LoadServer decodes and validates the server configuration
func LoadServer(v *viper.Viper) (*ServerConfig, error) {
	var cfg ServerConfig
	if err := load(v, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the server configuration
func (c *ServerConfig) Validate() error {
	if c.Address == "" {
		return invalid("address is required")
	}
	if c.DBPath == "" {
		return invalid("db_path is required")
	}
	if len(c.JWTSecret) < minSecretLength {
		return invalid("jwt_secret must be at least %d characters (set SHELFSYNC_JWT_SECRET)", minSecretLength)
	}
	if c.AccessTokenTTL <= 0 {
		return invalid("access_token_ttl must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return invalid("shutdown_timeout must be positive")
	}
	if c.AuthRateLimit <= 0 || c.AuthRateWindow <= 0 {
		return invalid("auth rate limit must be positive")
	}
	if c.MaxPushBatch <= 0 {
		return invalid("max_push_batch must be positive")
	}
	if err := c.Log.Validate(); err != nil {
		return invalid("log: %v", err)
	}
	return nil
}
