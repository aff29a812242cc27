// Package encryption seals small secrets (persisted credentials) with an
// AEAD cipher: AES-256-GCM by default or ChaCha20-Poly1305.
//
// Keys are derived from a passphrase with SHA-256. Additional data binds a
// ciphertext to its context so a blob copied to another namespace fails to
// open.
//
// # Usage
//
//	s, err := encryption.New("my-secret-passphrase")
//	blob, err := s.Seal(plaintext, []byte("com.example.app"))
//	plaintext, err := s.Open(blob, []byte("com.example.app"))
package encryption
