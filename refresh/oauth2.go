package refresh

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/kbukum/bryce/auth"
	"github.com/kbukum/bryce/credential"
	"github.com/kbukum/bryce/logger"
)

// ErrNoRefreshToken is reported when the stored credential cannot be refreshed.
var ErrNoRefreshToken = errors.New("refresh: current credential has no refresh token")

// OAuth2Option configures the OAuth2 handler.
type OAuth2Option func(*oauth2Handler)

// WithHTTPClient sets the client used to reach the token endpoint, so the
// exchange goes through the same transport and trust policy as the API.
func WithHTTPClient(c *http.Client) OAuth2Option {
	return func(h *oauth2Handler) { h.client = c }
}

// WithRequestTimeout bounds the token exchange (default 30s).
func WithRequestTimeout(d time.Duration) OAuth2Option {
	return func(h *oauth2Handler) { h.timeout = d }
}

// WithLogoutOnFailure clears the credential store when the exchange fails,
// so replayed requests surface as unauthorized instead of retrying a
// credential the server has already rejected.
func WithLogoutOnFailure() OAuth2Option {
	return func(h *oauth2Handler) { h.logout = true }
}

// WithOAuth2Logger sets the logger.
func WithOAuth2Logger(l *logger.Logger) OAuth2Option {
	return func(h *oauth2Handler) { h.log = l }
}

// WithFailureHandler observes failed exchanges.
func WithFailureHandler(fn func(Descriptor, error)) OAuth2Option {
	return func(h *oauth2Handler) { h.onFailure = fn }
}

type oauth2Handler struct {
	cfg       *oauth2.Config
	store     *credential.Store
	client    *http.Client
	timeout   time.Duration
	logout    bool
	onFailure func(Descriptor, error)
	log       *logger.Logger
}

// OAuth2 returns a Handler that exchanges the stored refresh token at
// cfg's token endpoint and installs the resulting bearer credential in store.
func OAuth2(cfg *oauth2.Config, store *credential.Store, opts ...OAuth2Option) Handler {
	h := &oauth2Handler{cfg: cfg, store: store, timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(h)
	}
	h.log = logger.OrDefault(h.log, "refresh.oauth2")
	return h
}

func (h *oauth2Handler) Refresh(failed Descriptor, done func()) {
	defer done()

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	if h.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, h.client)
	}

	if err := h.exchange(ctx); err != nil {
		h.log.Warn("token refresh failed", logger.Fields(
			logger.FieldRequestID, failed.ID,
			logger.FieldError, err.Error(),
		))
		if h.onFailure != nil {
			h.onFailure(failed, err)
		}
		if h.logout {
			// ctx may be the one that just expired; logout must still
			// reach the backend.
			clearCtx, cancelClear := h.persistContext(ctx)
			h.store.Clear(clearCtx)
			cancelClear()
		}
	}
}

// persistContext detaches ctx from the exchange deadline for store writes.
func (h *oauth2Handler) persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), h.timeout)
}

func (h *oauth2Handler) exchange(ctx context.Context) error {
	current, ok := h.store.Get()
	if !ok || current.Kind() != auth.KindBearer || current.RefreshToken() == "" {
		return ErrNoRefreshToken
	}

	// An already-expired token forces the source to hit the token endpoint.
	stale := &oauth2.Token{
		AccessToken:  current.Token(),
		RefreshToken: current.RefreshToken(),
		Expiry:       time.Unix(1, 0),
	}
	tok, err := h.cfg.TokenSource(ctx, stale).Token()
	if err != nil {
		return err
	}

	refreshToken := tok.RefreshToken
	if refreshToken == "" {
		refreshToken = current.RefreshToken()
	}
	setCtx, cancel := h.persistContext(ctx)
	defer cancel()
	h.store.Set(setCtx, auth.Bearer(tok.AccessToken, refreshToken, tok.Expiry))
	h.log.Info("token refreshed", logger.Fields("expires", tok.Expiry))
	return nil
}
