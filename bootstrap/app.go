package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/bryce/component"
	"github.com/kbukum/bryce/credential"
	"github.com/kbukum/bryce/httpclient"
	"github.com/kbukum/bryce/logger"
	"github.com/kbukum/bryce/observability"
)

// App wires a configured client: secret store backend, credential store
// with persistence, security policy, telemetry and the HTTP client itself,
// all managed as components.
//
// Example:
//
//	cfg, err := bootstrap.Load("my-app")
//	app, err := bootstrap.New(ctx, cfg, bootstrap.WithRefreshHandler(h))
//	app.RunTask(ctx, func(ctx context.Context) error {
//	    _, err := httpclient.Get[User](app.Client(), ctx, httpclient.NewRoute("me"))
//	    return err
//	})
type App struct {
	Cfg         *Config
	Components  *component.Registry
	Logger      *logger.Logger
	Summary     *Summary
	Credentials *credential.Store

	client          *httpclient.Component
	gracefulTimeout time.Duration
	onConfigure     []func(ctx context.Context, app *App) error

	onStart []Hook
	onReady []Hook
	onStop  []Hook
}

var _ component.Component = (*App)(nil)

// New creates the application from cfg. It applies defaults, validates the
// config, opens the secret store and restores the persisted credential.
// Components are started by Start, Run or RunTask.
func New(ctx context.Context, cfg *Config, opts ...Option) (*App, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	o := resolveOptions(opts)
	app := &App{
		Cfg:             cfg,
		gracefulTimeout: 15 * time.Second,
	}
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}

	// Logger: use custom if provided, otherwise init from config.
	if o.logger != nil {
		app.Logger = o.logger
	} else {
		logger.Init(cfg.Logging)
		app.Logger = logger.GetGlobalLogger()
	}
	app.Components = component.NewRegistry(app.Logger, component.WithStopTimeout(app.gracefulTimeout))
	app.Summary = NewSummary(cfg.Name, cfg.Version)

	policy, err := cfg.Client.Security.Build()
	if err != nil {
		return nil, fmt.Errorf("client.security: %w", err)
	}

	var cleanup []func()
	fail := func(err error) (*App, error) {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
		return nil, err
	}

	tp, mp, err := app.initTelemetry(ctx)
	if err != nil {
		return fail(err)
	}
	if tp != nil {
		cleanup = append(cleanup, func() { _ = app.Components.Get("telemetry").Stop(context.Background()) })
	}

	metrics := observability.NopClientMetrics()
	if mp != nil {
		if metrics, err = observability.NewClientMetrics(observability.Meter(mp)); err != nil {
			return fail(fmt.Errorf("metrics: %w", err))
		}
	}

	backend, closer, err := openSecretStore(cfg.SecretStore, cfg.Name, o.secretStore, app.Logger.WithComponent("secretstore"))
	if err != nil {
		return fail(err)
	}
	if closer != nil {
		cleanup = append(cleanup, func() { _ = closer.Close() })
	}
	kind := cfg.SecretStore.Type
	if o.secretStore != nil {
		kind = fmt.Sprintf("%T", o.secretStore)
	}
	if err := app.Components.Register(storeComponent(kind, backend, closer)); err != nil {
		return fail(err)
	}

	app.Credentials = credential.NewStore(
		credential.WithLogger(app.Logger.WithComponent("credential")),
		credential.WithPersistErrorHandler(func(op string, _ error) {
			metrics.RecordPersistFailure(context.Background(), op)
		}),
	)
	if ns := cfg.Client.AuthorizationKeychainService; ns != "" {
		// an unreadable record leaves the session unauthenticated
		if err := app.Credentials.ConfigurePersistence(ctx, backend, ns); err != nil {
			app.Logger.Warn("Persisted credential not restored", logger.Fields(
				logger.FieldNamespace, ns,
				logger.FieldError, err.Error(),
			))
		}
	}

	clientCfg := httpclient.Config{
		Name:           "httpclient",
		BaseURL:        cfg.Client.BaseURL,
		Timeout:        cfg.Client.Timeout,
		Headers:        cfg.Client.Headers,
		SecurityPolicy: policy,
		Credentials:    app.Credentials,
		RefreshHandler: o.refreshHandler,
		RefreshTimeout: cfg.Client.RefreshTimeout,
		Executor:       o.executor,
		Decoder:        o.decoder,
		ErrorShape:     o.errorShape,
		Logger:         app.Logger.WithComponent("httpclient"),
		TracerProvider: tp,
		Metrics:        metrics,
	}
	if cfg.Client.TLS.IsEnabled() {
		tlsCfg := cfg.Client.TLS
		clientCfg.TLS = &tlsCfg
	}
	app.client = httpclient.NewComponent(clientCfg)
	if err := app.Components.Register(app.client); err != nil {
		return fail(err)
	}
	return app, nil
}

// initTelemetry starts the OTLP exporters when enabled and registers a
// component that flushes them on shutdown. Both providers are nil when
// telemetry is disabled.
func (a *App) initTelemetry(ctx context.Context) (trace.TracerProvider, metric.MeterProvider, error) {
	oc := a.Cfg.Observability
	if !oc.Enabled {
		return nil, nil, nil
	}
	tc := observability.DefaultTracerConfig(a.Cfg.Name)
	tc.ServiceVersion = a.Cfg.Version
	tc.Environment = a.Cfg.Environment
	tc.Endpoint = oc.Endpoint
	tc.Insecure = oc.Insecure
	tc.SampleRate = oc.SampleRate
	tp, err := observability.InitTracer(ctx, tc)
	if err != nil {
		return nil, nil, fmt.Errorf("tracer: %w", err)
	}

	mc := observability.DefaultMeterConfig(a.Cfg.Name)
	mc.ServiceVersion = a.Cfg.Version
	mc.Environment = a.Cfg.Environment
	mc.Endpoint = oc.Endpoint
	mc.Insecure = oc.Insecure
	mc.Interval = oc.MetricInterval
	mp, err := observability.InitMeter(ctx, mc)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, nil, fmt.Errorf("meter: %w", err)
	}

	err = a.Components.Register(&component.Funcs{
		ComponentName: "telemetry",
		StopFunc: func(ctx context.Context) error {
			return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
		},
		Description: component.Description{Type: "telemetry", Details: "otlp " + oc.Endpoint},
	})
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		return nil, nil, err
	}
	return tp, mp, nil
}

// Client returns the HTTP client, nil before Start.
func (a *App) Client() *httpclient.Client {
	return a.client.Client()
}

// RegisterComponent adds a component to the application's registry.
func (a *App) RegisterComponent(c component.Component) error {
	return a.Components.Register(c)
}

// OnConfigure registers a callback to run after components are started.
func (a *App) OnConfigure(fn func(ctx context.Context, app *App) error) {
	a.onConfigure = append(a.onConfigure, fn)
}

// Name implements component.Component.
func (a *App) Name() string { return a.Cfg.Name }

// Start runs the startup sequence without blocking.
func (a *App) Start(ctx context.Context) error {
	return a.startup(ctx)
}

// Stop shuts the application down.
func (a *App) Stop(_ context.Context) error {
	return a.stop()
}

// Health aggregates the components' health: the worst status wins.
func (a *App) Health(ctx context.Context) component.Health {
	h := component.Health{Name: a.Name(), Status: component.StatusHealthy}
	var issues []string
	for _, ch := range a.Components.HealthAll(ctx) {
		if ch.Status == component.StatusHealthy {
			continue
		}
		issues = append(issues, describeHealth(ch))
		if h.Status != component.StatusUnhealthy {
			h.Status = ch.Status
		}
	}
	h.Message = strings.Join(issues, ", ")
	return h
}

func describeHealth(h component.Health) string {
	detail := h.Name + "=" + string(h.Status)
	if h.Message != "" {
		detail += "(" + h.Message + ")"
	}
	return detail
}

// ReadyCheck verifies that all registered components are healthy.
func (a *App) ReadyCheck(ctx context.Context) error {
	var unhealthy []string
	for _, h := range a.Components.HealthAll(ctx) {
		if h.Status != component.StatusHealthy {
			unhealthy = append(unhealthy, describeHealth(h))
		}
	}
	if len(unhealthy) > 0 {
		return fmt.Errorf("unhealthy components: %v", unhealthy)
	}
	return nil
}

// Run starts the application and blocks until a shutdown signal or ctx
// ends, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	if err := a.startup(ctx); err != nil {
		return err
	}

	a.Logger.Info("Application ready, waiting for shutdown signal")
	a.WaitForSignal(ctx)

	return a.stop()
}

// RunTask executes a finite task with the full lifecycle. The task's
// context is canceled on SIGINT/SIGTERM; components are stopped when the
// task returns.
func (a *App) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	if err := a.startup(ctx); err != nil {
		return err
	}

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			a.Logger.Info("Received signal, canceling task", logger.Fields("signal", sig.String()))
			cancel()
		case <-taskCtx.Done():
		}
	}()

	taskErr := task(taskCtx)

	if stopErr := a.stop(); stopErr != nil {
		if taskErr != nil {
			return taskErr
		}
		return stopErr
	}
	return taskErr
}

// startup performs the common initialization sequence shared by Run and RunTask.
func (a *App) startup(ctx context.Context) error {
	start := time.Now()

	a.Logger.Info("Starting application", logger.Fields(
		"name", a.Cfg.Name,
		"version", a.Cfg.Version,
	))

	if err := a.Components.StartAll(ctx); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	if err := runHooks(ctx, phaseStart, a.onStart); err != nil {
		return err
	}

	for _, fn := range a.onConfigure {
		if err := fn(ctx, a); err != nil {
			return fmt.Errorf("configuration failed: %w", err)
		}
	}

	if err := a.ReadyCheck(ctx); err != nil {
		a.Logger.Warn("Ready check reported issues", logger.Fields(logger.FieldError, err.Error()))
	}

	if err := runHooks(ctx, phaseReady, a.onReady); err != nil {
		return err
	}

	a.Summary.SetStartupDuration(time.Since(start))
	a.DisplaySummary()
	return nil
}

// DisplaySummary prints the startup summary with live health from the
// component registry.
func (a *App) DisplaySummary() {
	a.Summary.Display(a.Components, a.Credentials)
}

// SetSummaryOutput redirects the startup summary; io.Discard silences it.
func (a *App) SetSummaryOutput(w io.Writer) {
	a.Summary.out = w
}

// WaitForSignal blocks until an OS interrupt/term signal or context cancellation.
func (a *App) WaitForSignal(ctx context.Context) os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.Logger.Info("Received shutdown signal, graceful shutdown starting", logger.Fields("signal", sig.String()))
		return sig
	case <-ctx.Done():
		a.Logger.Info("Context canceled, shutting down")
		return nil
	}
}

// stop gracefully shuts down all components within the graceful timeout.
func (a *App) stop() error {
	a.Logger.Info("Shutting down application", logger.Fields("timeout", a.gracefulTimeout.String()))

	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	var shutdownErr error
	if err := runHooks(ctx, phaseStop, a.onStop); err != nil {
		a.Logger.Error("OnStop hook error", logger.Fields(logger.FieldError, err.Error()))
		shutdownErr = err
	}

	if err := a.Components.StopAll(ctx); err != nil {
		a.Logger.Error("Shutdown completed with errors", logger.Fields(logger.FieldError, err.Error()))
		shutdownErr = errors.Join(shutdownErr, err)
	}

	a.Logger.Info("Application shutdown complete")
	return shutdownErr
}
