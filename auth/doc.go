// Package auth models the credential a client attaches to outgoing requests.
//
// An Authorization is either basic (base64 of "username:password") or bearer
// (an opaque access token with an optional refresh token). Both may carry an
// expiration instant used for proactive refresh.
//
//	a := auth.Bearer(accessToken, refreshToken, time.Now().Add(time.Hour))
//	req.Header.Set("Authorization", a.HeaderValue())
package auth
