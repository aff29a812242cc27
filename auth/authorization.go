package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Kind identifies how a credential is presented in the Authorization header.
type Kind int

const (
	KindBasic Kind = iota + 1
	KindBearer
)

// String returns the lower-case scheme name.
func (k Kind) String() string {
	switch k {
	case KindBasic:
		return "basic"
	case KindBearer:
		return "bearer"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Scheme returns the HTTP authentication scheme for the kind.
func (k Kind) Scheme() string {
	switch k {
	case KindBasic:
		return "Basic"
	case KindBearer:
		return "Bearer"
	default:
		return ""
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	switch k {
	case KindBasic, KindBearer:
		return []byte(k.String()), nil
	default:
		return nil, fmt.Errorf("auth: unknown kind %d", int(k))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "basic":
		*k = KindBasic
	case "bearer":
		*k = KindBearer
	default:
		return fmt.Errorf("auth: unknown kind %q", string(text))
	}
	return nil
}

// ErrInvalidAuthorization is returned when a decoded authorization is unusable.
var ErrInvalidAuthorization = errors.New("auth: invalid authorization")

// Authorization is an immutable credential attached to outgoing requests.
// The zero value is not a valid credential; use Basic, Bearer or New.
type Authorization struct {
	kind         Kind
	token        string
	refreshToken string
	expiration   time.Time
}

// New builds an Authorization from its parts. A zero expiration means the
// credential never expires. The refresh token is dropped for basic credentials.
func New(kind Kind, token, refreshToken string, expiration time.Time) Authorization {
	if kind != KindBearer {
		refreshToken = ""
	}
	return Authorization{
		kind:         kind,
		token:        token,
		refreshToken: refreshToken,
		expiration:   expiration,
	}
}

// Basic builds a basic credential; the token is base64("username:password").
func Basic(username, password string, expiration time.Time) Authorization {
	token := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return New(KindBasic, token, "", expiration)
}

// Bearer builds a bearer credential.
func Bearer(token, refreshToken string, expiration time.Time) Authorization {
	return New(KindBearer, token, refreshToken, expiration)
}

func (a Authorization) Kind() Kind           { return a.kind }
func (a Authorization) Token() string        { return a.token }
func (a Authorization) RefreshToken() string { return a.refreshToken }

// Expiration returns the expiry instant and whether one is set.
func (a Authorization) Expiration() (time.Time, bool) {
	return a.expiration, !a.expiration.IsZero()
}

// HeaderValue renders the value of the Authorization request header.
func (a Authorization) HeaderValue() string {
	return a.kind.Scheme() + " " + a.token
}

// IsExpired reports whether the credential has an expiration at or before now.
func (a Authorization) IsExpired(now time.Time) bool {
	if a.expiration.IsZero() {
		return false
	}
	return !now.Before(a.expiration)
}

// ExpiresWithin reports whether the credential is expired at now+d.
func (a Authorization) ExpiresWithin(now time.Time, d time.Duration) bool {
	return a.IsExpired(now.Add(d))
}

// Equal reports structural equality.
func (a Authorization) Equal(b Authorization) bool {
	return a.kind == b.kind &&
		a.token == b.token &&
		a.refreshToken == b.refreshToken &&
		a.expiration.Equal(b.expiration)
}

// String hides the secret material.
func (a Authorization) String() string {
	if exp, ok := a.Expiration(); ok {
		return fmt.Sprintf("%s credential (expires %s)", a.kind, exp.Format(time.RFC3339))
	}
	return a.kind.String() + " credential"
}

type wireAuthorization struct {
	Kind         Kind       `json:"kind"`
	Token        string     `json:"token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	Expiration   *time.Time `json:"expiration,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (a Authorization) MarshalJSON() ([]byte, error) {
	w := wireAuthorization{
		Kind:         a.kind,
		Token:        a.token,
		RefreshToken: a.refreshToken,
	}
	if exp, ok := a.Expiration(); ok {
		utc := exp.UTC()
		w.Expiration = &utc
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Authorization) UnmarshalJSON(data []byte) error {
	var w wireAuthorization
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Token == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidAuthorization)
	}
	var exp time.Time
	if w.Expiration != nil {
		exp = *w.Expiration
	}
	*a = New(w.Kind, w.Token, w.RefreshToken, exp)
	return nil
}
