package bootstrap

import (
	"fmt"
	"time"

	"github.com/kbukum/bryce/config"
	"github.com/kbukum/bryce/encryption"
	"github.com/kbukum/bryce/observability"
	"github.com/kbukum/bryce/secretstore/redis"
	"github.com/kbukum/bryce/security"
	"github.com/kbukum/bryce/validation"
)

// Secret store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Config is the file layout of an application built on the client.
//
//	name: my-app
//	client:
//	  base_url: https://api.example.com
//	  authorization_keychain_service: com.example.app
//	secret_store:
//	  type: file
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Client        ClientConfig        `yaml:"client" mapstructure:"client"`
	SecretStore   SecretStoreConfig   `yaml:"secret_store" mapstructure:"secret_store"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
}

// ClientConfig configures the HTTP client.
type ClientConfig struct {
	BaseURL        string                `yaml:"base_url" mapstructure:"base_url" validate:"required,url"`
	Timeout        time.Duration         `yaml:"timeout" mapstructure:"timeout"`
	RefreshTimeout time.Duration         `yaml:"refresh_timeout" mapstructure:"refresh_timeout"`
	Headers        map[string]string     `yaml:"headers" mapstructure:"headers"`
	TLS            security.TLSConfig    `yaml:"tls" mapstructure:"tls"`
	Security       security.PolicyConfig `yaml:"security" mapstructure:"security"`

	// AuthorizationKeychainService is the namespace the credential is
	// persisted under. Empty keeps the credential in memory only.
	AuthorizationKeychainService string `yaml:"authorization_keychain_service" mapstructure:"authorization_keychain_service"`
}

// SecretStoreConfig selects and configures the persistence backend.
type SecretStoreConfig struct {
	// Type is memory (default), file or redis.
	Type string `yaml:"type" mapstructure:"type" validate:"omitempty,oneof=memory file redis"`

	// Path is the directory of the file backend. Defaults to
	// <user config dir>/<name>/secrets.
	Path string `yaml:"path" mapstructure:"path"`

	// EncryptionKey seals stored records when set.
	EncryptionKey string `yaml:"encryption_key" mapstructure:"encryption_key"`

	// Algorithm is aes-256-gcm (default) or chacha20-poly1305.
	Algorithm string `yaml:"algorithm" mapstructure:"algorithm" validate:"omitempty,oneof=aes-256-gcm chacha20-poly1305"`

	Redis redis.Config `yaml:"redis" mapstructure:"redis" validate:"-"`
}

// ObservabilityConfig enables OTLP trace and metric export.
type ObservabilityConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	Endpoint       string        `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure       bool          `yaml:"insecure" mapstructure:"insecure"`
	SampleRate     float64       `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"`
	MetricInterval time.Duration `yaml:"metric_interval" mapstructure:"metric_interval"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.Client.Security.ApplyDefaults()
	if c.SecretStore.Type == "" {
		c.SecretStore.Type = StoreMemory
	}
	if c.SecretStore.Algorithm == "" {
		c.SecretStore.Algorithm = string(encryption.AlgorithmAESGCM)
	}
	if c.SecretStore.Type == StoreRedis {
		c.SecretStore.Redis.ApplyDefaults()
	}
	if c.Observability.Enabled {
		tracer := observability.DefaultTracerConfig(c.Name)
		if c.Observability.Endpoint == "" {
			c.Observability.Endpoint = tracer.Endpoint
		}
		if c.Observability.SampleRate == 0 {
			c.Observability.SampleRate = tracer.SampleRate
		}
		if c.Observability.MetricInterval <= 0 {
			c.Observability.MetricInterval = 15 * time.Second
		}
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := validation.Validate(c); err != nil {
		return err
	}
	if err := c.Client.TLS.Validate(); err != nil {
		return fmt.Errorf("client.tls: %w", err)
	}
	if err := c.Client.Security.Validate(); err != nil {
		return fmt.Errorf("client.security: %w", err)
	}
	if c.SecretStore.Type == StoreRedis {
		if err := c.SecretStore.Redis.Validate(); err != nil {
			return fmt.Errorf("secret_store.redis: %w", err)
		}
	}
	return nil
}

// Load reads the configuration for name from the standard config and .env
// locations, applies defaults and validates it.
func Load(name string, opts ...config.LoaderOption) (*Config, error) {
	cfg := &Config{}
	if err := config.Load(name, cfg, opts...); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = name
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}
