package secretstore

import (
	"context"

	"github.com/kbukum/bryce/encryption"
)

// Sealed encrypts secrets before handing them to an inner store. The
// namespace is bound as additional data.
type Sealed struct {
	inner  Store
	sealer encryption.Sealer
}

// Seal wraps inner so that every secret is encrypted with key.
func Seal(inner Store, key string, opts ...encryption.Option) (*Sealed, error) {
	sealer, err := encryption.New(key, opts...)
	if err != nil {
		return nil, err
	}
	return &Sealed{inner: inner, sealer: sealer}, nil
}

func (s *Sealed) Get(ctx context.Context, namespace string) ([]byte, error) {
	blob, err := s.inner.Get(ctx, namespace)
	if err != nil {
		return nil, err
	}
	data, err := s.sealer.Open(blob, []byte(namespace))
	if err != nil {
		return nil, &Error{Op: "open", Namespace: namespace, Err: err}
	}
	return data, nil
}

func (s *Sealed) Set(ctx context.Context, namespace string, data []byte) error {
	blob, err := s.sealer.Seal(data, []byte(namespace))
	if err != nil {
		return &Error{Op: "seal", Namespace: namespace, Err: err}
	}
	return s.inner.Set(ctx, namespace, blob)
}

func (s *Sealed) Delete(ctx context.Context, namespace string) error {
	return s.inner.Delete(ctx, namespace)
}

// Ping delegates to the inner store when it supports it.
func (s *Sealed) Ping(ctx context.Context) error {
	if p, ok := s.inner.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
