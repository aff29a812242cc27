package security

import (
	"crypto/x509"
	"errors"
	"testing"
	"time"

	"github.com/kbukum/bryce/security/tlstest"
)

func TestAcceptAll(t *testing.T) {
	if err := None().Evaluate(nil, "example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPinCertificatesRequiresCertificates(t *testing.T) {
	if _, err := PinCertificates(nil); err == nil {
		t.Fatal("expected error for empty pin set")
	}
}

func TestPinnedEvaluate(t *testing.T) {
	certs := tlstest.GenerateTLSCerts(t)
	other := tlstest.SelfSigned(t, "other.test")
	chain := []*x509.Certificate{certs.Leaf}

	tests := []struct {
		name     string
		pins     []*x509.Certificate
		opts     []PinOption
		chain    []*x509.Certificate
		host     string
		wantErr  error
		wantPass bool
	}{
		{"leaf pinned", []*x509.Certificate{certs.Leaf}, nil, chain, "localhost", nil, true},
		{"leaf pinned by ip", []*x509.Certificate{certs.Leaf}, nil, chain, "127.0.0.1", nil, true},
		{"ca pinned", []*x509.Certificate{certs.CACert}, nil, chain, "localhost", nil, true},
		{"unrelated pin", []*x509.Certificate{other}, nil, chain, "localhost", nil, false},
		{"unrelated pin without validation", []*x509.Certificate{other}, []PinOption{WithoutChainValidation()}, chain, "localhost", ErrCertificateNotPinned, false},
		{"ca pinned without validation", []*x509.Certificate{certs.CACert}, []PinOption{WithoutChainValidation()}, chain, "localhost", ErrCertificateNotPinned, false},
		{"leaf pinned wrong host without validation", []*x509.Certificate{certs.Leaf}, []PinOption{WithoutChainValidation()}, chain, "wrong.test", nil, true},
		{"empty chain", []*x509.Certificate{certs.Leaf}, nil, nil, "localhost", ErrNoPeerCertificates, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := PinCertificates(tc.pins, tc.opts...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			err = p.Evaluate(tc.chain, tc.host)
			if tc.wantPass {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var policyErr *PolicyError
			if !errors.As(err, &policyErr) {
				t.Fatalf("expected *PolicyError, got %v", err)
			}
			if policyErr.Host != tc.host {
				t.Errorf("host = %q, want %q", policyErr.Host, tc.host)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestPinnedChainValidation(t *testing.T) {
	certs := tlstest.GenerateTLSCerts(t)

	p, err := PinCertificates([]*x509.Certificate{certs.Leaf})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var policyErr *PolicyError
	if err := p.Evaluate([]*x509.Certificate{certs.Leaf}, "wrong.test"); !errors.As(err, &policyErr) || policyErr.Reason != "chain validation failed" {
		t.Fatalf("expected host mismatch to fail validation, got %v", err)
	}

	expired, err := PinCertificates([]*x509.Certificate{certs.Leaf},
		WithClock(func() time.Time { return time.Now().Add(48 * time.Hour) }))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := expired.Evaluate([]*x509.Certificate{certs.Leaf}, "localhost"); err == nil {
		t.Fatal("expected expired certificate to fail validation")
	}

	if got := p.Certificates(); len(got) != 1 || !got[0].Equal(certs.Leaf) {
		t.Errorf("Certificates() = %v", got)
	}
}

func TestPolicyConfigBuild(t *testing.T) {
	certs := tlstest.GenerateTLSCerts(t)
	off := false

	tests := []struct {
		name       string
		cfg        PolicyConfig
		wantErr    bool
		wantPinned bool
	}{
		{"default none", PolicyConfig{}, false, false},
		{"pinned", PolicyConfig{Mode: ModePinned, Certificates: []string{certs.CertFile}}, false, true},
		{"pinned without validation", PolicyConfig{Mode: ModePinned, Certificates: []string{certs.CertFile}, ValidateChain: &off}, false, true},
		{"pinned without certificates", PolicyConfig{Mode: ModePinned}, true, false},
		{"pinned missing file", PolicyConfig{Mode: ModePinned, Certificates: []string{"/nope.pem"}}, true, false},
		{"unknown mode", PolicyConfig{Mode: "trust-me"}, true, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := tc.cfg.Build()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Build() error = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil {
				return
			}
			_, pinned := p.(*PinnedCertificates)
			if pinned != tc.wantPinned {
				t.Errorf("pinned = %v, want %v", pinned, tc.wantPinned)
			}
		})
	}
}
