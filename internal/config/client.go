package config

import (
	"net/url"
	"time"

	"github.com/spf13/viper"

	"github.com/iudanet/shelfsync/internal/logging"
	"github.com/iudanet/shelfsync/internal/models"
)

// SyncConfig holds sync engine and monitor settings
type SyncConfig struct {
	EntityTypes   []string      `mapstructure:"entity_types"`
	Interval      time.Duration `mapstructure:"interval"`
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
	ProbeTimeout  time.Duration `mapstructure:"probe_timeout"`
	Retention     time.Duration `mapstructure:"retention"`
	BatchSize     int           `mapstructure:"batch_size"`
}

// ClientConfig is the configuration of the shelfsync CLI
type ClientConfig struct {
	Log            logging.Config `mapstructure:"log"`
	ServerURL      string         `mapstructure:"server_url"`
	DBPath         string         `mapstructure:"db_path"`
	Sync           SyncConfig     `mapstructure:"sync"`
	RequestTimeout time.Duration  `mapstructure:"request_timeout"`
}

// SetClientDefaults registers client defaults in v
func SetClientDefaults(v *viper.Viper) {
	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("db_path", "~/.shelfsync/client.db")
	v.SetDefault("request_timeout", 30*time.Second)

	v.SetDefault("sync.interval", 30*time.Second)
	v.SetDefault("sync.probe_interval", 10*time.Second)
	v.SetDefault("sync.probe_timeout", 5*time.Second)
	v.SetDefault("sync.retention", 7*24*time.Hour)
	v.SetDefault("sync.batch_size", 10)
	v.SetDefault("sync.entity_types", []string{})

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
}

// NewClientViper returns a viper instance with client defaults, env bindings
// and the optional config file loaded. Callers may bind flags before LoadClient.
func NewClientViper(configFile string) (*viper.Viper, error) {
	v, err := newViper(configFile)
	if err != nil {
		return nil, err
	}
	SetClientDefaults(v)
	return v, nil
}

// LoadClient decodes and validates the client configuration
func LoadClient(v *viper.Viper) (*ClientConfig, error) {
	var cfg ClientConfig
	if err := load(v, &cfg); err != nil {
		return nil, err
	}

	dbPath, err := expandHome(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	cfg.DBPath = dbPath

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// EntityTypes returns the parsed sync scope; empty means all types
func (c *ClientConfig) EntityTypes() ([]models.EntityType, error) {
	types := make([]models.EntityType, 0, len(c.Sync.EntityTypes))
	for _, s := range c.Sync.EntityTypes {
		t, err := models.ParseEntityType(s)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

// Validate checks the client configuration
func (c *ClientConfig) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return invalid("server_url %q must be an absolute URL", c.ServerURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return invalid("server_url scheme must be http or https, got %q", u.Scheme)
	}
	if c.DBPath == "" {
		return invalid("db_path is required")
	}
	if c.RequestTimeout <= 0 {
		return invalid("request_timeout must be positive")
	}
	if c.Sync.Interval <= 0 || c.Sync.ProbeInterval <= 0 || c.Sync.ProbeTimeout <= 0 {
		return invalid("sync intervals must be positive")
	}
	if c.Sync.Retention <= 0 {
		return invalid("sync.retention must be positive")
	}
	if c.Sync.BatchSize <= 0 {
		return invalid("sync.batch_size must be positive")
	}
	if _, err := c.EntityTypes(); err != nil {
		return invalid("sync.entity_types: %v", err)
	}
	if err := c.Log.Validate(); err != nil {
		return invalid("log: %v", err)
	}
	return nil
}
