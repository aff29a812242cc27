package credential

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/bryce/auth"
	"github.com/kbukum/bryce/logger"
	"github.com/kbukum/bryce/resilience"
	"github.com/kbukum/bryce/secretstore"
	redisstore "github.com/kbukum/bryce/secretstore/redis"
)

const namespace = "com.example.bryce"

func newStore(opts ...Option) *Store {
	return NewStore(append([]Option{WithLogger(logger.Nop())}, opts...)...)
}

// failingBackend fails every call until healed.
type failingBackend struct {
	mu     sync.Mutex
	inner  *secretstore.Memory
	broken bool
	calls  int
}

var errBroken = errors.New("keychain unavailable")

func (f *failingBackend) do() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.broken {
		return errBroken
	}
	return nil
}

func (f *failingBackend) Get(ctx context.Context, ns string) ([]byte, error) {
	if err := f.do(); err != nil {
		return nil, err
	}
	return f.inner.Get(ctx, ns)
}

func (f *failingBackend) Set(ctx context.Context, ns string, data []byte) error {
	if err := f.do(); err != nil {
		return err
	}
	return f.inner.Set(ctx, ns, data)
}

func (f *failingBackend) Delete(ctx context.Context, ns string) error {
	if err := f.do(); err != nil {
		return err
	}
	return f.inner.Delete(ctx, ns)
}

func (f *failingBackend) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestStoreMemoryOnly(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	if _, ok := s.Get(); ok {
		t.Fatal("expected empty store")
	}
	g0 := s.Generation()

	basic := auth.Basic("user", "password", time.Time{})
	s.Set(ctx, basic)
	got, ok := s.Get()
	if !ok || !got.Equal(basic) {
		t.Fatalf("Get() = %v, %v", got, ok)
	}

	bearer := auth.Bearer("token", "refresh", time.Time{})
	s.Set(ctx, bearer)
	if got, _ := s.Get(); !got.Equal(bearer) {
		t.Fatalf("last write should win, got %v", got)
	}

	s.Clear(ctx)
	s.Clear(ctx)
	if _, ok := s.Get(); ok {
		t.Fatal("expected empty store after clear")
	}
	if s.Generation() != g0+3 {
		t.Errorf("generation = %d, want %d", s.Generation(), g0+3)
	}
}

func TestSnapshotCarriesGeneration(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	s.Set(ctx, auth.Bearer("a", "", time.Time{}))
	a, ok, gen := s.Snapshot()
	if !ok || a.Token() != "a" {
		t.Fatalf("unexpected snapshot %v %v", a, ok)
	}
	s.Set(ctx, auth.Bearer("b", "", time.Time{}))
	if s.Generation() <= gen {
		t.Errorf("generation did not advance: %d <= %d", s.Generation(), gen)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	open := func() *Store {
		backend, err := secretstore.NewFile(dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		s := newStore()
		if err := s.ConfigurePersistence(ctx, backend, namespace); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return s
	}

	for i := 0; i < 10; i++ {
		t.Run(fmt.Sprintf("iteration-%d", i), func(t *testing.T) {
			want := auth.Bearer(fmt.Sprintf("token-%d", i), "refresh", time.Now().Add(time.Hour).Truncate(time.Second))
			if i%2 == 1 {
				want = auth.Basic("user", fmt.Sprintf("pw-%d", i), time.Time{})
			}

			first := open()
			first.Set(ctx, want)

			second := open()
			got, ok := second.Get()
			if !ok || !got.Equal(want) {
				t.Fatalf("restored %v (%v), want %v", got, ok, want)
			}

			second.Clear(ctx)
			second.Clear(ctx)

			third := open()
			if _, ok := third.Get(); ok {
				t.Fatal("expected no credential after logout")
			}
		})
	}
}

func TestPersistenceRedis(t *testing.T) {
	ctx := context.Background()
	mini := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	backend := redisstore.NewFromClient(rdb, "test:")
	first := newStore()
	if err := first.ConfigurePersistence(ctx, backend, namespace); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := auth.Bearer("redis-token", "r", time.Time{})
	first.Set(ctx, want)

	second := newStore()
	if err := second.ConfigurePersistence(ctx, backend, namespace); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, ok := second.Get(); !ok || !got.Equal(want) {
		t.Fatalf("restored %v (%v), want %v", got, ok, want)
	}
	second.Clear(ctx)
	if mini.Exists("test:" + namespace) {
		t.Fatal("expected redis key to be deleted")
	}
}

func TestBackendFailureDegradesToMemory(t *testing.T) {
	ctx := context.Background()
	backend := &failingBackend{inner: secretstore.NewMemory()}

	var reported []string
	var mu sync.Mutex
	s := newStore(
		WithPersistErrorHandler(func(op string, err error) {
			mu.Lock()
			defer mu.Unlock()
			if !errors.Is(err, errBroken) && !errors.Is(err, resilience.ErrCircuitOpen) {
				t.Errorf("unexpected reported error: %v", err)
			}
			reported = append(reported, op)
		}),
		WithBreaker(resilience.CircuitBreakerConfig{Name: "test", MaxFailures: 2, Timeout: time.Hour}),
	)
	if err := s.ConfigurePersistence(ctx, backend, namespace); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	backend.mu.Lock()
	backend.broken = true
	backend.mu.Unlock()

	for i := 0; i < 4; i++ {
		s.Set(ctx, auth.Bearer(fmt.Sprintf("t%d", i), "", time.Time{}))
	}
	if got, _ := s.Get(); got.Token() != "t3" {
		t.Fatalf("memory value lost: %v", got)
	}
	if s.BackendState() != resilience.StateOpen {
		t.Errorf("expected open breaker, got %s", s.BackendState())
	}
	// 1 seed read + 2 failing writes; the open breaker skips the rest
	if calls := backend.Calls(); calls != 3 {
		t.Errorf("backend calls = %d, want 3", calls)
	}

	s.Clear(ctx)
	if _, ok := s.Get(); ok {
		t.Fatal("clear must succeed in memory even when the backend fails")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(reported) != 5 {
		t.Fatalf("reported = %v, want 5 failures", reported)
	}
	if reported[4] != OpDelete {
		t.Errorf("last op = %q, want %q", reported[4], OpDelete)
	}
}

func TestConfigurePersistenceErrors(t *testing.T) {
	ctx := context.Background()

	s := newStore()
	if err := s.ConfigurePersistence(ctx, nil, namespace); err == nil {
		t.Error("expected error for nil backend")
	}
	if err := s.ConfigurePersistence(ctx, secretstore.NewMemory(), ""); err == nil {
		t.Error("expected error for empty namespace")
	}

	corrupt := secretstore.NewMemory()
	_ = corrupt.Set(ctx, namespace, []byte("{not json"))
	var loads atomic.Int32
	s = newStore(WithPersistErrorHandler(func(op string, err error) {
		if op == OpLoad {
			loads.Add(1)
		}
	}))
	if err := s.ConfigurePersistence(ctx, corrupt, namespace); err == nil {
		t.Fatal("expected decode error")
	}
	if loads.Load() != 1 {
		t.Errorf("load failures reported = %d, want 1", loads.Load())
	}
	if _, ok := s.Get(); ok {
		t.Error("corrupt record must not be installed")
	}
	if s.Namespace() != namespace {
		t.Errorf("namespace = %q", s.Namespace())
	}

	// logout removes the corrupt record as well
	s.Clear(ctx)
	if _, err := corrupt.Get(ctx, namespace); !secretstore.IsNotFound(err) {
		t.Errorf("expected corrupt record removed, got %v", err)
	}
}

func TestSeedRetriesTransientFailures(t *testing.T) {
	ctx := context.Background()
	inner := secretstore.NewMemory()
	want := auth.Bearer("seeded", "", time.Time{})
	seed := newStore()
	_ = seed.ConfigurePersistence(ctx, inner, namespace)
	seed.Set(ctx, want)

	backend := &flakyGet{Store: inner, failures: 2}
	s := newStore(WithSeedRetry(resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond}))
	if err := s.ConfigurePersistence(ctx, backend, namespace); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, ok := s.Get(); !ok || !got.Equal(want) {
		t.Fatalf("restored %v (%v)", got, ok)
	}
}

type flakyGet struct {
	secretstore.Store
	failures int
}

func (f *flakyGet) Get(ctx context.Context, ns string) ([]byte, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errBroken
	}
	return f.Store.Get(ctx, ns)
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	if err := s.ConfigurePersistence(ctx, secretstore.NewMemory(), namespace); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			if i%5 == 0 {
				s.Clear(ctx)
				return
			}
			s.Set(ctx, auth.Bearer(fmt.Sprintf("t%d", i), "", time.Time{}))
		}(i)
		go func() {
			defer wg.Done()
			if a, ok := s.Get(); ok && a.Token() == "" {
				t.Error("observed torn credential")
			}
		}()
	}
	wg.Wait()
}
