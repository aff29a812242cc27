package testutil

import (
	"context"
	"testing"
)

// THelper ties TestComponent lifecycles to a test.
//
//	func TestClient(t *testing.T) {
//	    api := apitest.NewServer()
//	    testutil.T(t).Setup(api)
//	    // api stops during t.Cleanup
//	}
type THelper struct {
	t   testing.TB
	ctx context.Context
}

// T returns a helper using context.Background.
func T(t testing.TB) *THelper {
	return &THelper{t: t, ctx: context.Background()}
}

// WithContext makes Start, Stop and Reset use ctx.
func (h *THelper) WithContext(ctx context.Context) *THelper {
	h.ctx = ctx
	return h
}

// Setup starts each component, failing the test on error, and stops them
// in reverse order when the test ends.
func (h *THelper) Setup(comps ...TestComponent) {
	h.t.Helper()
	for _, c := range comps {
		if err := c.Start(h.ctx); err != nil {
			h.t.Fatalf("start %s: %v", c.Name(), err)
		}
		h.t.Cleanup(func() {
			if err := c.Stop(h.ctx); err != nil {
				h.t.Errorf("stop %s: %v", c.Name(), err)
			}
		})
	}
}

// Reset restores each component between subtests.
func (h *THelper) Reset(comps ...TestComponent) {
	h.t.Helper()
	for _, c := range comps {
		if err := c.Reset(h.ctx); err != nil {
			h.t.Fatalf("reset %s: %v", c.Name(), err)
		}
	}
}
