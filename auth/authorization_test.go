package auth

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

func TestHeaderValue(t *testing.T) {
	tests := []struct {
		name string
		auth Authorization
		want string
	}{
		{"basic", Basic("user", "password", time.Time{}), "Basic dXNlcjpwYXNzd29yZA=="},
		{"bearer", Bearer("token", "", time.Time{}), "Bearer token"},
		{"bearer with refresh", Bearer("token", "refresh", time.Time{}), "Bearer token"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.auth.HeaderValue(); got != tc.want {
				t.Errorf("HeaderValue() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBasicDropsRefreshToken(t *testing.T) {
	a := New(KindBasic, "dG9rZW4=", "refresh", time.Time{})
	if a.RefreshToken() != "" {
		t.Errorf("expected no refresh token on basic credential, got %q", a.RefreshToken())
	}
}

func TestIsExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		exp  time.Time
		want bool
	}{
		{"no expiration", time.Time{}, false},
		{"future", now.Add(time.Minute), false},
		{"exactly now", now, true},
		{"past", now.Add(-time.Second), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := Bearer("t", "", tc.exp)
			if got := a.IsExpired(now); got != tc.want {
				t.Errorf("IsExpired() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestExpiresWithin(t *testing.T) {
	now := time.Now()
	a := Bearer("t", "", now.Add(30*time.Second))
	if !a.ExpiresWithin(now, time.Minute) {
		t.Error("expected credential to expire within a minute")
	}
	if a.ExpiresWithin(now, time.Second) {
		t.Error("did not expect credential to expire within a second")
	}
}

func TestEqual(t *testing.T) {
	exp := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	a := Bearer("t", "r", exp)

	if !a.Equal(Bearer("t", "r", exp.In(time.FixedZone("x", 3600)))) {
		t.Error("expected equal across time zones")
	}
	if a.Equal(Bearer("t", "other", exp)) {
		t.Error("expected refresh token to matter")
	}
	if a.Equal(Bearer("t", "r", time.Time{})) {
		t.Error("expected expiration to matter")
	}
	if Basic("u", "p", time.Time{}).Equal(Bearer(Basic("u", "p", time.Time{}).Token(), "", time.Time{})) {
		t.Error("expected kind to matter")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	exp := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	for _, a := range []Authorization{
		Basic("user", "password", time.Time{}),
		Bearer("access", "refresh", exp),
	} {
		data, err := json.Marshal(a)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var got Authorization
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !got.Equal(a) {
			t.Errorf("round trip mismatch: %s vs %s", got, a)
		}
	}
}

func TestUnmarshalRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown kind", `{"kind":"digest","token":"x"}`},
		{"empty token", `{"kind":"bearer","token":""}`},
		{"not json", `nope`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var a Authorization
			if err := json.Unmarshal([]byte(tc.data), &a); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	var a Authorization
	err := json.Unmarshal([]byte(`{"kind":"bearer","token":""}`), &a)
	if !errors.Is(err, ErrInvalidAuthorization) {
		t.Errorf("expected ErrInvalidAuthorization, got %v", err)
	}
}

func TestBearerJWT(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.RegisteredClaims{
		ExpiresAt: gojwt.NewNumericDate(exp),
	}).SignedString([]byte("unused-secret"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a, err := BearerJWT(signed, "refresh")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok := a.Expiration()
	if !ok || !got.Equal(exp) {
		t.Errorf("expiration = %v (%v), want %v", got, ok, exp)
	}
	if a.Kind() != KindBearer || a.RefreshToken() != "refresh" {
		t.Errorf("unexpected credential: %s", a)
	}

	noExp, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.RegisteredClaims{Subject: "s"}).
		SignedString([]byte("unused-secret"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, err = BearerJWT(noExp, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := a.Expiration(); ok {
		t.Error("expected no expiration")
	}

	if _, err := BearerJWT("not-a-jwt", ""); err == nil {
		t.Error("expected parse error")
	}
}
