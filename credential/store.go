package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/kbukum/bryce/auth"
	"github.com/kbukum/bryce/logger"
	"github.com/kbukum/bryce/resilience"
	"github.com/kbukum/bryce/secretstore"
)

// Operation names reported to the persist-error handler.
const (
	OpLoad   = "load"
	OpSave   = "save"
	OpDelete = "delete"
)

// Store owns the current authorization. It is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	current    *auth.Authorization
	generation uint64

	// writeMu serializes memory+backend pairs so both sides agree on the
	// last completed write.
	writeMu   sync.Mutex
	backend   secretstore.Store
	namespace string
	breaker   *resilience.CircuitBreaker

	breakerCfg resilience.CircuitBreakerConfig
	seedRetry  resilience.RetryConfig
	onError    func(op string, err error)
	log        *logger.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithPersistErrorHandler registers fn to observe backend failures.
func WithPersistErrorHandler(fn func(op string, err error)) Option {
	return func(s *Store) { s.onError = fn }
}

// WithBreaker overrides the circuit breaker guarding the backend.
func WithBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(s *Store) { s.breakerCfg = cfg }
}

// WithSeedRetry overrides the retry policy used when loading the persisted credential.
func WithSeedRetry(cfg resilience.RetryConfig) Option {
	return func(s *Store) { s.seedRetry = cfg }
}

// NewStore returns an empty, memory-only store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		breakerCfg: resilience.DefaultCircuitBreakerConfig("credential-backend"),
		seedRetry:  resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.OrDefault(s.log, "credential")
	return s
}

// Get returns the current authorization.
func (s *Store) Get() (auth.Authorization, bool) {
	a, ok, _ := s.Snapshot()
	return a, ok
}

// Snapshot returns the current authorization together with its generation.
func (s *Store) Snapshot() (auth.Authorization, bool, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return auth.Authorization{}, false, s.generation
	}
	return *s.current, true, s.generation
}

// Generation increases on every Set and Clear.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Set replaces the current authorization and mirrors it to the backend.
func (s *Store) Set(ctx context.Context, a auth.Authorization) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.swap(&a)

	if s.backend == nil {
		return
	}
	data, err := json.Marshal(a)
	if err != nil {
		s.report(OpSave, err)
		return
	}
	s.report(OpSave, s.breaker.Execute(func() error {
		return s.backend.Set(ctx, s.namespace, data)
	}))
}

// Clear removes the authorization from the backend and then from memory.
// Clearing an empty store is harmless.
func (s *Store) Clear(ctx context.Context) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.backend != nil {
		s.report(OpDelete, s.breaker.Execute(func() error {
			return s.backend.Delete(ctx, s.namespace)
		}))
	}
	if _, ok := s.Get(); ok {
		s.swap(nil)
	}
}

// ConfigurePersistence attaches a backend and loads any credential stored
// under namespace. A missing record is not an error; an unreadable one is
// reported and returned, and the store continues with its current value.
// Call it once, before requests start.
func (s *Store) ConfigurePersistence(ctx context.Context, backend secretstore.Store, namespace string) error {
	if backend == nil {
		return errors.New("credential: nil backend")
	}
	if namespace == "" {
		return errors.New("credential: empty namespace")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.backend = backend
	s.namespace = namespace
	s.breaker = resilience.NewCircuitBreaker(s.breakerConfig())

	retry := s.seedRetry
	retry.RetryIf = func(err error) bool {
		return !secretstore.IsNotFound(err) && resilience.DefaultRetryIf(err)
	}
	data, err := resilience.Retry(ctx, retry, func() ([]byte, error) {
		return backend.Get(ctx, namespace)
	})
	switch {
	case secretstore.IsNotFound(err):
		s.log.Debug("no persisted credential", logger.Fields(logger.FieldNamespace, namespace))
		return nil
	case err != nil:
		s.report(OpLoad, err)
		return fmt.Errorf("credential: load %q: %w", namespace, err)
	}

	var a auth.Authorization
	if err := json.Unmarshal(data, &a); err != nil {
		s.report(OpLoad, err)
		return fmt.Errorf("credential: decode %q: %w", namespace, err)
	}
	s.swap(&a)
	s.log.Info("restored persisted credential", logger.Fields(
		logger.FieldNamespace, namespace,
		"kind", a.Kind().String(),
	))
	return nil
}

// Namespace returns the persistence namespace, or "" when memory-only.
func (s *Store) Namespace() string {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.namespace
}

// BackendState reports the backend circuit state; StateClosed when memory-only.
func (s *Store) BackendState() resilience.State {
	s.writeMu.Lock()
	b := s.breaker
	s.writeMu.Unlock()
	if b == nil {
		return resilience.StateClosed
	}
	return b.State()
}

func (s *Store) swap(a *auth.Authorization) {
	s.mu.Lock()
	s.current = a
	s.generation++
	s.mu.Unlock()
}

func (s *Store) breakerConfig() resilience.CircuitBreakerConfig {
	cfg := s.breakerCfg
	next := cfg.OnStateChange
	cfg.OnStateChange = func(name string, from, to resilience.State) {
		s.log.Warn("credential backend circuit changed", logger.Fields(
			"breaker", name, "from", from.String(), "to", to.String(),
		))
		if next != nil {
			next(name, from, to)
		}
	}
	return cfg
}

func (s *Store) report(op string, err error) {
	if err == nil {
		return
	}
	s.log.Warn("credential persistence failed", logger.Fields(
		logger.FieldOperation, op,
		logger.FieldNamespace, s.namespace,
		logger.FieldError, err.Error(),
	))
	if s.onError != nil {
		s.onError(op, err)
	}
}
