package testutil

import (
	"context"

	"github.com/kbukum/bryce/component"
)

// TestComponent is a component.Component that tests can reuse across
// cases: fake servers and backends with state to throw away.
type TestComponent interface {
	component.Component
	Reset(ctx context.Context) error
}
