package secretstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the namespace holds no secret.
var ErrNotFound = errors.New("secretstore: not found")

// Store is a namespaced secret backend. Implementations must be safe for
// concurrent use. Delete of an absent namespace returns nil.
type Store interface {
	Get(ctx context.Context, namespace string) ([]byte, error)
	Set(ctx context.Context, namespace string, data []byte) error
	Delete(ctx context.Context, namespace string) error
}

// Pinger is implemented by stores that can report backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Error describes a failed backend operation.
type Error struct {
	Op        string
	Namespace string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("secretstore: %s %q: %v", e.Op, e.Namespace, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsNotFound reports whether err means the namespace holds no secret.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
