package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// Sealer encrypts and authenticates opaque byte payloads.
type Sealer interface {
	Seal(plaintext, additionalData []byte) ([]byte, error)
	Open(ciphertext, additionalData []byte) ([]byte, error)
}

// Algorithm represents supported encryption algorithms.
type Algorithm string

const (
	// AlgorithmAESGCM is AES-256-GCM (default).
	AlgorithmAESGCM Algorithm = "aes-256-gcm"

	// AlgorithmChaCha20 is ChaCha20-Poly1305, fast on CPUs without AES-NI.
	AlgorithmChaCha20 Algorithm = "chacha20-poly1305"
)

// ErrCiphertextTooShort is returned when a blob cannot hold a nonce.
var ErrCiphertextTooShort = errors.New("encryption: ciphertext too short")

// Option configures the sealer.
type Option func(*options)

type options struct {
	algorithm Algorithm
}

// WithAlgorithm selects the encryption algorithm (default: AES-256-GCM).
func WithAlgorithm(alg Algorithm) Option {
	return func(o *options) { o.algorithm = alg }
}

// New creates a Sealer for the given passphrase.
func New(key string, opts ...Option) (Sealer, error) {
	if key == "" {
		return nil, errors.New("encryption: empty key")
	}
	o := &options{algorithm: AlgorithmAESGCM}
	for _, opt := range opts {
		opt(o)
	}

	sum := sha256.Sum256([]byte(key))

	var (
		aead cipher.AEAD
		err  error
	)
	switch o.algorithm {
	case AlgorithmAESGCM, "":
		var block cipher.Block
		block, err = aes.NewCipher(sum[:])
		if err != nil {
			return nil, fmt.Errorf("encryption: create cipher: %w", err)
		}
		aead, err = cipher.NewGCM(block)
	case AlgorithmChaCha20:
		aead, err = chacha20poly1305.New(sum[:])
	default:
		return nil, fmt.Errorf("encryption: unsupported algorithm %q", o.algorithm)
	}
	if err != nil {
		return nil, fmt.Errorf("encryption: create %s: %w", o.algorithm, err)
	}
	return &aeadSealer{aead: aead}, nil
}

type aeadSealer struct {
	aead cipher.AEAD
}

// Seal returns nonce||ciphertext.
func (s *aeadSealer) Seal(plaintext, additionalData []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("encryption: generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, additionalData), nil
}

func (s *aeadSealer) Open(ciphertext, additionalData []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, ErrCiphertextTooShort
	}
	nonce, data := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, data, additionalData)
	if err != nil {
		return nil, fmt.Errorf("encryption: decrypt: %w", err)
	}
	return plaintext, nil
}
