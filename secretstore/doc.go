// Package secretstore persists small secret blobs under a namespace (the
// "service" a credential belongs to).
//
// Implementations: NewMemory for tests and ephemeral clients, NewFile for a
// per-user directory with owner-only permissions, Seal to encrypt any store
// at rest, and the redis subpackage for shared backends.
package secretstore
