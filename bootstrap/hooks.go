package bootstrap

import (
	"context"
	"fmt"
)

// Hook runs at a lifecycle phase with the App's context.
type Hook func(ctx context.Context) error

type phase string

const (
	phaseStart phase = "start"
	phaseReady phase = "ready"
	phaseStop  phase = "stop"
)

// OnStart hooks run once every component is started, before the ready
// check. A failing hook aborts startup.
func (a *App) OnStart(hooks ...Hook) { a.onStart = append(a.onStart, hooks...) }

// OnReady hooks run after the client passed its ready check, when
// requests may be issued.
func (a *App) OnReady(hooks ...Hook) { a.onReady = append(a.onReady, hooks...) }

// OnStop hooks run before components stop, while the client and the
// credential store are still usable; e.g. to log out.
func (a *App) OnStop(hooks ...Hook) { a.onStop = append(a.onStop, hooks...) }

// runHooks stops at the first failing hook.
func runHooks(ctx context.Context, p phase, hooks []Hook) error {
	for i, h := range hooks {
		if err := h(ctx); err != nil {
			return fmt.Errorf("%s hook #%d: %w", p, i+1, err)
		}
	}
	return nil
}
