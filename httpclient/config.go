package httpclient

import (
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/bryce/credential"
	"github.com/kbukum/bryce/logger"
	"github.com/kbukum/bryce/observability"
	"github.com/kbukum/bryce/refresh"
	"github.com/kbukum/bryce/security"
	"github.com/kbukum/bryce/validation"
	"github.com/kbukum/bryce/version"
)

const (
	defaultTimeout = 30 * time.Second
	defaultName    = "httpclient"

	// HeaderRequestID carries the per-request id, kept across replays.
	HeaderRequestID = "X-Request-Id"
)

// Config configures the HTTP client.
type Config struct {
	// Name identifies the client in logs and health reports. Defaults to "httpclient".
	Name string `yaml:"name" mapstructure:"name"`

	// BaseURL is the URL routes are resolved against.
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"required,url"`

	// Timeout bounds a single dispatch, not the wait for a refresh. Defaults to 30s.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// Headers are sent with every request; request headers win.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`

	// UserAgent is sent unless Headers sets one. Defaults to "bryce/<version>".
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`

	// TLS configures the transport's TLS settings.
	TLS *security.TLSConfig `yaml:"tls" mapstructure:"tls" validate:"-"`

	// SecurityPolicy evaluates server certificates. Nil means security.None().
	SecurityPolicy security.Policy `yaml:"-" mapstructure:"-" validate:"-"`

	// Credentials holds the current authorization. Nil creates an in-memory store.
	Credentials *credential.Store `yaml:"-" mapstructure:"-" validate:"-"`

	// RefreshHandler renews the credential after a 401 or on local expiry.
	// Nil disables refresh; every 401 fails with ErrCodeUnauthorized.
	RefreshHandler refresh.Handler `yaml:"-" mapstructure:"-" validate:"-"`

	// RefreshTimeout, when positive, forces a stuck refresh to complete.
	RefreshTimeout time.Duration `yaml:"refresh_timeout" mapstructure:"refresh_timeout"`

	// Executor delivers Send callbacks. Defaults to GoroutineExecutor.
	Executor Executor `yaml:"-" mapstructure:"-" validate:"-"`

	// Decoder decodes response bodies. Defaults to JSONDecoder{}.
	Decoder Decoder `yaml:"-" mapstructure:"-" validate:"-"`

	// ErrorShape returns a fresh value to decode error bodies into.
	// Defaults to DefaultErrorShape.
	ErrorShape func() ErrorPayload `yaml:"-" mapstructure:"-" validate:"-"`

	// Transport overrides the round tripper. Security policies and TLS
	// settings require an *http.Transport, which is cloned.
	Transport http.RoundTripper `yaml:"-" mapstructure:"-" validate:"-"`

	Logger         *logger.Logger               `yaml:"-" mapstructure:"-" validate:"-"`
	TracerProvider trace.TracerProvider         `yaml:"-" mapstructure:"-" validate:"-"`
	MeterProvider  metric.MeterProvider         `yaml:"-" mapstructure:"-" validate:"-"`
	Metrics        *observability.ClientMetrics `yaml:"-" mapstructure:"-" validate:"-"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = defaultName
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = version.UserAgent("bryce")
	}
	if c.SecurityPolicy == nil {
		c.SecurityPolicy = security.None()
	}
	if c.Executor == nil {
		c.Executor = GoroutineExecutor{}
	}
	if c.Decoder == nil {
		c.Decoder = JSONDecoder{}
	}
	if c.ErrorShape == nil {
		c.ErrorShape = DefaultErrorShape
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return fmt.Errorf("httpclient: %w", err)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("httpclient: timeout must be positive")
	}
	if c.TLS != nil {
		if err := c.TLS.Validate(); err != nil {
			return fmt.Errorf("httpclient: %w", err)
		}
	}
	if c.Transport != nil {
		if _, ok := c.Transport.(*http.Transport); !ok && c.needsTransportControl() {
			return fmt.Errorf("httpclient: transport %T cannot carry a security policy or TLS settings", c.Transport)
		}
	}
	return nil
}

func (c *Config) needsTransportControl() bool {
	if c.TLS != nil && c.TLS.IsEnabled() {
		return true
	}
	if c.SecurityPolicy == nil {
		return false
	}
	_, none := c.SecurityPolicy.(security.AcceptAll)
	return !none
}
