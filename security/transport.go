package security

import (
	"crypto/tls"
	"errors"
	"net/http"
)

// ErrCustomTLSDialer is returned when a policy is applied to a transport
// that dials TLS itself; such a dialer never sees the transport's TLS config.
var ErrCustomTLSDialer = errors.New("security: transport has a custom TLS dialer")

// ApplyPolicy binds p to t. AcceptAll (or nil) leaves t untouched. Any other
// policy replaces certificate verification in t.TLSClientConfig, so it is
// evaluated on every TLS connection t makes, direct or tunneled through a
// proxy: the handshake fails unless p accepts the presented chain for the
// server name. The TLS settings already on t (client certificates, minimum
// version, server name) are kept.
func ApplyPolicy(t *http.Transport, p Policy) error {
	if t == nil {
		return errors.New("security: nil transport")
	}
	if p == nil {
		return nil
	}
	if _, ok := p.(AcceptAll); ok {
		return nil
	}
	if t.DialTLSContext != nil {
		return ErrCustomTLSDialer
	}

	var cfg *tls.Config
	if t.TLSClientConfig != nil {
		cfg = t.TLSClientConfig.Clone()
	} else {
		cfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	// Verification happens in VerifyConnection through the policy.
	cfg.InsecureSkipVerify = true //nolint:gosec
	cfg.VerifyConnection = func(cs tls.ConnectionState) error {
		return p.Evaluate(cs.PeerCertificates, cs.ServerName)
	}
	t.TLSClientConfig = cfg
	return nil
}
