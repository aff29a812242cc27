package httpclient

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"net/textproto"
	"net/url"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/bryce/auth"
	"github.com/kbukum/bryce/credential"
	"github.com/kbukum/bryce/logger"
	"github.com/kbukum/bryce/observability"
	"github.com/kbukum/bryce/refresh"
	"github.com/kbukum/bryce/security"
)

// session is the state shared by a client and every view derived from it
// with With: one transport carrying one security policy, one credential
// store, one refresh coordinator.
type session struct {
	name      string
	http      *http.Client
	creds     *credential.Store
	coord     *refresh.Coordinator
	tracer    trace.Tracer
	metrics   *observability.ClientMetrics
	log       *logger.Logger
	closeOnce sync.Once
}

// Client sends requests against a base URL with the session's credential,
// recovering from 401 responses through the refresh coordinator.
type Client struct {
	s          *session
	baseURL    *url.URL
	baseErr    error
	headers    map[string]string
	decoder    Decoder
	errorShape func() ErrorPayload
	executor   Executor
}

// New creates a client and its session.
func New(cfg Config) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("httpclient: base_url: %w", err)
	}

	log := logger.OrDefault(cfg.Logger, cfg.Name)

	transport, err := buildTransport(cfg)
	if err != nil {
		return nil, err
	}

	metrics := cfg.Metrics
	if metrics == nil {
		if cfg.MeterProvider != nil {
			if metrics, err = observability.NewClientMetrics(observability.Meter(cfg.MeterProvider)); err != nil {
				return nil, fmt.Errorf("httpclient: metrics: %w", err)
			}
		} else {
			metrics = observability.NopClientMetrics()
		}
	}

	creds := cfg.Credentials
	if creds == nil {
		creds = credential.NewStore(
			credential.WithLogger(log),
			credential.WithPersistErrorHandler(func(op string, _ error) {
				metrics.RecordPersistFailure(context.Background(), op)
			}),
		)
	}

	s := &session{
		name:    cfg.Name,
		http:    &http.Client{Transport: transport, Timeout: cfg.Timeout},
		creds:   creds,
		tracer:  observability.Tracer(cfg.TracerProvider),
		metrics: metrics,
		log:     log,
	}

	if cfg.RefreshHandler != nil {
		h := cfg.RefreshHandler
		if cfg.RefreshTimeout > 0 {
			h = refresh.Timeout(h, cfg.RefreshTimeout)
		}
		s.coord = refresh.NewCoordinator(h,
			refresh.WithLogger(log),
			refresh.WithGeneration(creds.Generation),
			refresh.WithHooks(refresh.Hooks{
				OnStart: func(d refresh.Descriptor) {
					metrics.RecordRefresh(context.Background(), d.Reason.String())
				},
				OnComplete: func(n int) {
					metrics.RecordReplays(context.Background(), n)
				},
			}),
		)
	}

	log.Debug("HTTP client created", logger.Fields(
		logger.FieldURL, base.String(),
		"timeout", cfg.Timeout.String(),
		"refresh", s.coord != nil,
	))

	headers := canonicalHeaders(cfg.Headers)
	if _, ok := headers["User-Agent"]; !ok {
		headers["User-Agent"] = cfg.UserAgent
	}

	return &Client{
		s:          s,
		baseURL:    base,
		headers:    headers,
		decoder:    cfg.Decoder,
		errorShape: cfg.ErrorShape,
		executor:   cfg.Executor,
	}, nil
}

// buildTransport clones the configured (or default) transport and applies
// TLS settings and the security policy to the clone.
func buildTransport(cfg Config) (http.RoundTripper, error) {
	var t *http.Transport
	switch rt := cfg.Transport.(type) {
	case nil:
		t = http.DefaultTransport.(*http.Transport).Clone()
	case *http.Transport:
		t = rt.Clone()
	default:
		return rt, nil
	}

	if cfg.TLS != nil {
		tlsCfg, err := cfg.TLS.Build()
		if err != nil {
			return nil, fmt.Errorf("httpclient: %w", err)
		}
		if tlsCfg != nil {
			t.TLSClientConfig = tlsCfg
		}
	}
	if err := security.ApplyPolicy(t, cfg.SecurityPolicy); err != nil {
		return nil, fmt.Errorf("httpclient: %w", err)
	}
	return t, nil
}

func canonicalHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[textproto.CanonicalMIMEHeaderKey(k)] = v
	}
	return out
}

// Option overrides a per-view setting in With.
type Option func(*Client)

// WithBaseURL resolves the view's routes against raw. A malformed URL makes
// every request of the view fail with a validation error.
func WithBaseURL(raw string) Option {
	return func(c *Client) {
		u, err := url.Parse(raw)
		if err == nil && (u.Scheme == "" || u.Host == "") {
			err = fmt.Errorf("%q is not an absolute URL", raw)
		}
		if err != nil {
			c.baseErr = fmt.Errorf("base url: %w", err)
			return
		}
		c.baseURL, c.baseErr = u, nil
	}
}

// WithDecoder sets the view's body decoder.
func WithDecoder(d Decoder) Option {
	return func(c *Client) { c.decoder = d }
}

// WithErrorShape sets the view's error body shape.
func WithErrorShape(fn func() ErrorPayload) Option {
	return func(c *Client) { c.errorShape = fn }
}

// WithExecutor sets where the view delivers Send callbacks.
func WithExecutor(e Executor) Option {
	return func(c *Client) { c.executor = e }
}

// WithHeaders merges headers into the view's global headers.
func WithHeaders(h map[string]string) Option {
	return func(c *Client) {
		maps.Copy(c.headers, canonicalHeaders(h))
	}
}

// With returns a view of c with some settings overridden. The view shares
// the session: transport, security policy, credential store and refresh
// coordinator, so a refresh triggered through one view replays requests of all.
func (c *Client) With(opts ...Option) *Client {
	view := *c
	view.headers = maps.Clone(c.headers)
	for _, opt := range opts {
		opt(&view)
	}
	return &view
}

// BaseURL returns the view's base URL.
func (c *Client) BaseURL() string {
	if c.baseURL == nil {
		return ""
	}
	return c.baseURL.String()
}

// Credentials returns the session's credential store.
func (c *Client) Credentials() *credential.Store { return c.s.creds }

// Coordinator returns the session's refresh coordinator, nil without a refresh handler.
func (c *Client) Coordinator() *refresh.Coordinator { return c.s.coord }

// SetAuthorization installs a, or logs out when a is nil.
func (c *Client) SetAuthorization(ctx context.Context, a *auth.Authorization) {
	if a == nil {
		c.s.creds.Clear(ctx)
		return
	}
	c.s.creds.Set(ctx, *a)
}

// Authorization returns the current credential, nil when unauthenticated.
func (c *Client) Authorization() *auth.Authorization {
	a, ok := c.s.creds.Get()
	if !ok {
		return nil
	}
	return &a
}

// Logout clears the credential from memory and persistence.
func (c *Client) Logout(ctx context.Context) {
	c.s.creds.Clear(ctx)
}

// Name returns the session name.
func (c *Client) Name() string { return c.s.name }

// Close releases idle connections. Requests in flight are not interrupted.
func (c *Client) Close(_ context.Context) error {
	c.s.closeOnce.Do(func() {
		c.s.http.CloseIdleConnections()
	})
	return nil
}

// Do sends req and waits for its completion, including any refresh and
// replay. Only the calling goroutine blocks.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	type outcome struct {
		resp *Response
		err  error
	}
	ch := make(chan outcome, 1)
	c.start(ctx, req, func(resp *Response, err error) {
		ch <- outcome{resp, err}
	})
	o := <-ch
	return o.resp, o.err
}

// Send dispatches req and returns immediately; cb runs exactly once on the
// client's executor.
func (c *Client) Send(ctx context.Context, req Request, cb func(*Response, error)) {
	deliver := func(resp *Response, err error) {
		c.executor.Execute(func() { cb(resp, err) })
	}
	go c.start(ctx, req, deliver)
}
