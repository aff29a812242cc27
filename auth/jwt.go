package auth

import (
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// BearerJWT builds a bearer credential whose expiration is taken from the
// token's "exp" claim. The signature is not verified; only the server
// decides whether the token is acceptable.
func BearerJWT(token, refreshToken string) (Authorization, error) {
	claims := gojwt.RegisteredClaims{}
	if _, _, err := gojwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return Authorization{}, fmt.Errorf("auth: parse jwt: %w", err)
	}
	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	return Bearer(token, refreshToken, exp), nil
}
