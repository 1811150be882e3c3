// Package config loads snapdiff runtime configuration. Settings come from
// an optional config file plus SNAPDIFF_* environment overrides, with
// defaults matching the upstream tool's fixed constants.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the tunable parameters of a snapshot diff run.
type Config struct {
	// MaxRetries bounds both retry loops: reopening a not-yet-published
	// page and re-reading a page after a mid-stream failure.
	MaxRetries int `json:"maxRetries" mapstructure:"maxRetries"`

	// RetryInterval is the pause between retry attempts.
	RetryInterval time.Duration `json:"retryInterval" mapstructure:"retryInterval"`

	// ReadBufferSize is the block size used when copying a stream page
	// to local storage.
	ReadBufferSize int `json:"readBufferSize" mapstructure:"readBufferSize"`

	// BatchSize is the maximum number of change events per JSON document.
	BatchSize int `json:"batchSize" mapstructure:"batchSize"`

	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:     10,
		RetryInterval:  100 * time.Millisecond,
		ReadBufferSize: 16 << 10,
		BatchSize:      1000,
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the given file (optional; empty means
// defaults only), applying SNAPDIFF_* environment variable overrides.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	def := DefaultConfig()
	v.SetDefault("maxRetries", def.MaxRetries)
	v.SetDefault("retryInterval", def.RetryInterval)
	v.SetDefault("readBufferSize", def.ReadBufferSize)
	v.SetDefault("batchSize", def.BatchSize)
	v.SetDefault("logging.level", def.Logging.Level)

	v.SetEnvPrefix("SNAPDIFF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.MaxRetries < 0 {
		return &ConfigError{Field: "maxRetries", Message: "must be non-negative"}
	}
	if c.ReadBufferSize <= 0 {
		return &ConfigError{Field: "readBufferSize", Message: "must be positive"}
	}
	if c.BatchSize <= 0 {
		return &ConfigError{Field: "batchSize", Message: "must be positive"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
