package bootstrap

import (
	"time"

	"github.com/kbukum/bryce/httpclient"
	"github.com/kbukum/bryce/logger"
	"github.com/kbukum/bryce/refresh"
	"github.com/kbukum/bryce/secretstore"
)

// Option configures the App during creation.
type Option func(*appOptions)

// appOptions collects all option values before applying to App.
type appOptions struct {
	logger          *logger.Logger
	gracefulTimeout *time.Duration
	refreshHandler  refresh.Handler
	executor        httpclient.Executor
	decoder         httpclient.Decoder
	errorShape      func() httpclient.ErrorPayload
	secretStore     secretstore.Store
}

// resolveOptions applies all options and returns the collected values.
func resolveOptions(opts []Option) *appOptions {
	o := &appOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets a custom logger for the application.
// If not set, the logger is auto-initialized from the config's Logging field.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) {
		o.logger = l
	}
}

// WithGracefulTimeout sets the maximum duration for graceful shutdown.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *appOptions) {
		o.gracefulTimeout = &d
	}
}

// WithRefreshHandler enables 401 recovery through h.
func WithRefreshHandler(h refresh.Handler) Option {
	return func(o *appOptions) {
		o.refreshHandler = h
	}
}

// WithExecutor sets where Send callbacks are delivered.
func WithExecutor(e httpclient.Executor) Option {
	return func(o *appOptions) {
		o.executor = e
	}
}

// WithDecoder sets the client's body decoder.
func WithDecoder(d httpclient.Decoder) Option {
	return func(o *appOptions) {
		o.decoder = d
	}
}

// WithErrorShape sets the shape error bodies are decoded into.
func WithErrorShape(fn func() httpclient.ErrorPayload) Option {
	return func(o *appOptions) {
		o.errorShape = fn
	}
}

// WithSecretStore injects the persistence backend, bypassing secret_store
// configuration; encryption_key still seals it. The App does not close it.
func WithSecretStore(s secretstore.Store) Option {
	return func(o *appOptions) {
		o.secretStore = s
	}
}
