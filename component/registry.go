package component

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kbukum/bryce/logger"
)

const defaultStopTimeout = 10 * time.Second

// Registry starts components in registration order and stops them in
// reverse, so a component may rely on everything registered before it.
type Registry struct {
	mu          sync.RWMutex
	order       []Component
	started     map[string]bool
	stopTimeout time.Duration
	log         *logger.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithStopTimeout bounds each component's Stop call.
func WithStopTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.stopTimeout = d
		}
	}
}

// NewRegistry creates an empty registry. A nil logger uses the global one.
func NewRegistry(log *logger.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		started:     make(map[string]bool),
		stopTimeout: defaultStopTimeout,
		log:         logger.OrDefault(log, "component"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register appends c. Names are unique.
func (r *Registry) Register(c Component) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := c.Name()
	if r.indexLocked(name) >= 0 {
		return fmt.Errorf("component %s already registered", name)
	}
	r.order = append(r.order, c)
	r.log.Debug("Component registered", logger.Fields(logger.FieldComponent, name))
	return nil
}

func (r *Registry) indexLocked(name string) int {
	for i, c := range r.order {
		if c.Name() == name {
			return i
		}
	}
	return -1
}

// StartAll starts every component not yet running. On failure the
// components started so far are stopped again.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.order {
		name := c.Name()
		if r.started[name] {
			continue
		}
		if err := c.Start(ctx); err != nil {
			r.log.Error("Component start failed", logger.Fields(logger.FieldComponent, name, logger.FieldError, err.Error()))
			_ = r.stopLocked(ctx)
			return fmt.Errorf("failed to start %s: %w", name, err)
		}
		r.started[name] = true
		r.log.Debug("Component started", logger.Fields(logger.FieldComponent, name))
	}
	return nil
}

// StopAll stops running components in reverse order and joins their errors.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopLocked(ctx)
}

func (r *Registry) stopLocked(ctx context.Context) error {
	var errs []error
	for i := len(r.order) - 1; i >= 0; i-- {
		c := r.order[i]
		name := c.Name()
		if !r.started[name] {
			continue
		}
		delete(r.started, name)
		if err := r.stopOne(ctx, c); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop %s: %w", name, err))
			r.log.Error("Component stop failed", logger.Fields(logger.FieldComponent, name, logger.FieldError, err.Error()))
			continue
		}
		r.log.Debug("Component stopped", logger.Fields(logger.FieldComponent, name))
	}
	return errors.Join(errs...)
}

func (r *Registry) stopOne(ctx context.Context, c Component) error {
	ctx, cancel := context.WithTimeout(ctx, r.stopTimeout)
	defer cancel()
	return c.Stop(ctx)
}

// Started reports whether the named component is running.
func (r *Registry) Started(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.started[name]
}

// HealthAll checks every component in registration order.
func (r *Registry) HealthAll(ctx context.Context) []Health {
	comps := r.All()
	results := make([]Health, 0, len(comps))
	for _, c := range comps {
		results = append(results, c.Health(ctx))
	}
	return results
}

// Get returns the named component or nil.
func (r *Registry) Get(name string) Component {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexLocked(name); i >= 0 {
		return r.order[i]
	}
	return nil
}

// All returns the components in registration order.
func (r *Registry) All() []Component {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Component(nil), r.order...)
}
