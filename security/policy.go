package security

import (
	"bytes"
	"crypto/x509"
	"errors"
	"fmt"
	"time"
)

// Policy evaluates the certificate chain a server presented for host.
// A nil error means the server is trusted.
type Policy interface {
	Evaluate(chain []*x509.Certificate, host string) error
}

var (
	ErrNoPeerCertificates   = errors.New("server presented no certificates")
	ErrCertificateNotPinned = errors.New("no presented certificate matches the pinned set")
)

// PolicyError reports a rejected server.
type PolicyError struct {
	Host   string
	Reason string
	Err    error
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("security: %s rejected: %s: %v", e.Host, e.Reason, e.Err)
}

func (e *PolicyError) Unwrap() error { return e.Err }

// AcceptAll performs no evaluation beyond the transport's default verification.
type AcceptAll struct{}

// Evaluate implements Policy.
func (AcceptAll) Evaluate([]*x509.Certificate, string) error { return nil }

// None returns the AcceptAll policy.
func None() Policy { return AcceptAll{} }

// PinnedCertificates accepts a server only when a certificate of its chain
// is byte-identical to a pinned one.
type PinnedCertificates struct {
	pinned        []*x509.Certificate
	validateChain bool
	roots         *x509.CertPool
	now           func() time.Time
}

// PinOption configures PinnedCertificates.
type PinOption func(*PinnedCertificates)

// WithoutChainValidation skips path validation and host name checks; only
// the exact-match rule applies.
func WithoutChainValidation() PinOption {
	return func(p *PinnedCertificates) { p.validateChain = false }
}

// WithRoots replaces the system roots used for chain validation. Pinned
// certificates are always added as roots.
func WithRoots(pool *x509.CertPool) PinOption {
	return func(p *PinnedCertificates) { p.roots = pool }
}

// WithClock overrides the validation time.
func WithClock(now func() time.Time) PinOption {
	return func(p *PinnedCertificates) { p.now = now }
}

// PinCertificates builds a pinning policy. At least one certificate is required.
func PinCertificates(certs []*x509.Certificate, opts ...PinOption) (*PinnedCertificates, error) {
	if len(certs) == 0 {
		return nil, errors.New("security: pinning requires at least one certificate")
	}
	p := &PinnedCertificates{
		pinned:        append([]*x509.Certificate(nil), certs...),
		validateChain: true,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.validateChain {
		if p.roots == nil {
			if sys, err := x509.SystemCertPool(); err == nil {
				p.roots = sys
			} else {
				p.roots = x509.NewCertPool()
			}
		} else {
			p.roots = p.roots.Clone()
		}
		for _, c := range p.pinned {
			p.roots.AddCert(c)
		}
	}
	return p, nil
}

// Certificates returns the pinned set.
func (p *PinnedCertificates) Certificates() []*x509.Certificate {
	return append([]*x509.Certificate(nil), p.pinned...)
}

// Evaluate implements Policy.
func (p *PinnedCertificates) Evaluate(chain []*x509.Certificate, host string) error {
	if len(chain) == 0 {
		return &PolicyError{Host: host, Reason: "empty chain", Err: ErrNoPeerCertificates}
	}

	candidates := [][]*x509.Certificate{chain}
	if p.validateChain {
		intermediates := x509.NewCertPool()
		for _, c := range chain[1:] {
			intermediates.AddCert(c)
		}
		verified, err := chain[0].Verify(x509.VerifyOptions{
			DNSName:       host,
			Roots:         p.roots,
			Intermediates: intermediates,
			CurrentTime:   p.now(),
		})
		if err != nil {
			return &PolicyError{Host: host, Reason: "chain validation failed", Err: err}
		}
		candidates = append(candidates, verified...)
	}

	for _, certs := range candidates {
		for _, c := range certs {
			if p.isPinned(c) {
				return nil
			}
		}
	}
	return &PolicyError{Host: host, Reason: "certificate pinning", Err: ErrCertificateNotPinned}
}

func (p *PinnedCertificates) isPinned(c *x509.Certificate) bool {
	for _, pin := range p.pinned {
		if bytes.Equal(pin.Raw, c.Raw) {
			return true
		}
	}
	return false
}
