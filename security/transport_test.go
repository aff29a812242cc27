package security

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/kbukum/bryce/security/tlstest"
)

func newTLSServer(t *testing.T, certs *tlstest.TLSCerts) *httptest.Server {
	t.Helper()
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	srv.TLS = certs.ServerConfig()
	srv.StartTLS()
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, tr *http.Transport, url string) error {
	t.Helper()
	resp, err := (&http.Client{Transport: tr}).Get(url)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}

func TestApplyPolicy(t *testing.T) {
	certs := tlstest.GenerateTLSCerts(t)
	srv := newTLSServer(t, certs)

	t.Run("pinned leaf accepted", func(t *testing.T) {
		p, err := PinCertificates([]*x509.Certificate{certs.Leaf})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tr := &http.Transport{}
		if err := ApplyPolicy(tr, p); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := get(t, tr, srv.URL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("unpinned server rejected", func(t *testing.T) {
		p, err := PinCertificates([]*x509.Certificate{tlstest.SelfSigned(t, "other.test")}, WithoutChainValidation())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tr := &http.Transport{}
		if err := ApplyPolicy(tr, p); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		err = get(t, tr, srv.URL)
		var policyErr *PolicyError
		if !errors.As(err, &policyErr) {
			t.Fatalf("expected *PolicyError, got %v", err)
		}
		if !errors.Is(err, ErrCertificateNotPinned) {
			t.Errorf("expected ErrCertificateNotPinned, got %v", err)
		}
	})

	t.Run("none keeps default verification", func(t *testing.T) {
		tr := &http.Transport{TLSClientConfig: &tls.Config{RootCAs: certs.CertPool, MinVersion: tls.VersionTLS12}}
		if err := ApplyPolicy(tr, None()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tr.TLSClientConfig.VerifyConnection != nil || tr.TLSClientConfig.InsecureSkipVerify {
			t.Fatal("AcceptAll must not change TLS verification")
		}
		if err := get(t, tr, srv.URL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("nil transport", func(t *testing.T) {
		if err := ApplyPolicy(nil, None()); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("custom TLS dialer rejected", func(t *testing.T) {
		p, err := PinCertificates([]*x509.Certificate{certs.Leaf})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tr := &http.Transport{DialTLSContext: func(context.Context, string, string) (net.Conn, error) {
			return nil, errors.New("unused")
		}}
		if err := ApplyPolicy(tr, p); !errors.Is(err, ErrCustomTLSDialer) {
			t.Fatalf("expected ErrCustomTLSDialer, got %v", err)
		}
	})
}

// newConnectProxy starts an HTTP proxy that tunnels CONNECT requests and
// counts them.
func newConnectProxy(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var tunnels atomic.Int32
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodConnect {
			http.Error(w, "connect only", http.StatusMethodNotAllowed)
			return
		}
		upstream, err := net.Dial("tcp", r.Host)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		hj, ok := w.(http.Hijacker)
		if !ok {
			_ = upstream.Close()
			http.Error(w, "hijack unsupported", http.StatusInternalServerError)
			return
		}
		client, buf, err := hj.Hijack()
		if err != nil {
			_ = upstream.Close()
			return
		}
		tunnels.Add(1)
		_, _ = client.Write([]byte("HTTP/1.1 200 Connection established\r\n\r\n"))
		go func() {
			_, _ = io.Copy(upstream, buf.Reader)
			_ = upstream.Close()
		}()
		go func() {
			_, _ = io.Copy(client, upstream)
			_ = client.Close()
		}()
	}))
	t.Cleanup(proxy.Close)
	return proxy, &tunnels
}

func TestApplyPolicyThroughProxy(t *testing.T) {
	certs := tlstest.GenerateTLSCerts(t)
	srv := newTLSServer(t, certs)
	proxy, tunnels := newConnectProxy(t)
	proxyURL, err := url.Parse(proxy.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name    string
		pins    []*x509.Certificate
		opts    []PinOption
		wantErr bool
	}{
		{"pinned leaf accepted", []*x509.Certificate{certs.Leaf}, nil, false},
		{"unpinned server rejected", []*x509.Certificate{tlstest.SelfSigned(t, "other.test")}, []PinOption{WithoutChainValidation()}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := PinCertificates(tc.pins, tc.opts...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tr := &http.Transport{
				Proxy:           http.ProxyURL(proxyURL),
				TLSClientConfig: &tls.Config{RootCAs: certs.CertPool, MinVersion: tls.VersionTLS12},
			}
			t.Cleanup(tr.CloseIdleConnections)
			if err := ApplyPolicy(tr, p); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			before := tunnels.Load()
			err = get(t, tr, srv.URL)
			if tunnels.Load() == before {
				t.Fatal("request did not go through the proxy")
			}
			if !tc.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var policyErr *PolicyError
			if !errors.As(err, &policyErr) {
				t.Fatalf("expected *PolicyError, got %v", err)
			}
			if !errors.Is(err, ErrCertificateNotPinned) {
				t.Errorf("expected ErrCertificateNotPinned, got %v", err)
			}
		})
	}
}
