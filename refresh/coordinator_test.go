package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/bryce/logger"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// gatedHandler blocks every refresh until release is called.
type gatedHandler struct {
	calls   atomic.Int32
	gate    chan struct{}
	onEnter func(Descriptor)
}

func newGatedHandler() *gatedHandler {
	return &gatedHandler{gate: make(chan struct{})}
}

func (h *gatedHandler) Refresh(d Descriptor, done func()) {
	h.calls.Add(1)
	if h.onEnter != nil {
		h.onEnter(d)
	}
	<-h.gate
	done()
}

func (h *gatedHandler) release() { close(h.gate) }

type recorder struct {
	mu       sync.Mutex
	replayed []string
	aborted  map[string]error
	wg       sync.WaitGroup
}

func newRecorder() *recorder { return &recorder{aborted: map[string]error{}} }

func (r *recorder) entry(id string, gen uint64) Entry {
	r.wg.Add(1)
	return Entry{
		Descriptor: Descriptor{ID: id, Method: "GET", URL: "/" + id, StatusCode: 401, Reason: ReasonUnauthorized},
		Generation: gen,
		Replay: func() {
			r.mu.Lock()
			r.replayed = append(r.replayed, id)
			r.mu.Unlock()
			r.wg.Done()
		},
		Abort: func(err error) {
			r.mu.Lock()
			r.aborted[id] = err
			r.mu.Unlock()
			r.wg.Done()
		},
	}
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	ch := make(chan struct{})
	go func() { r.wg.Wait(); close(ch) }()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for completions")
	}
}

func newCoordinator(h Handler, opts ...Option) *Coordinator {
	return NewCoordinator(h, append([]Option{WithLogger(logger.Nop())}, opts...)...)
}

func TestSingleFlight(t *testing.T) {
	h := newGatedHandler()
	c := newCoordinator(h)
	rec := newRecorder()

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		e := rec.entry(fmt.Sprintf("r%d", i), 0)
		go func() {
			defer wg.Done()
			c.Enqueue(context.Background(), e)
		}()
	}
	wg.Wait()
	waitFor(t, "all requests queued", func() bool { return c.Pending() == n })

	if c.State() != StateRefreshing {
		t.Errorf("state = %s, want refreshing", c.State())
	}
	h.release()
	rec.wait(t)

	if got := h.calls.Load(); got != 1 {
		t.Errorf("handler calls = %d, want 1", got)
	}
	if len(rec.replayed) != n {
		t.Errorf("replayed = %d, want %d", len(rec.replayed), n)
	}
	waitFor(t, "idle", func() bool { return c.State() == StateIdle })
	if c.Refreshes() != 1 {
		t.Errorf("Refreshes() = %d, want 1", c.Refreshes())
	}
}

func TestReplayIsFIFO(t *testing.T) {
	h := newGatedHandler()
	var first Descriptor
	h.onEnter = func(d Descriptor) { first = d }
	c := newCoordinator(h)
	rec := newRecorder()

	want := []string{"r1", "r2", "r3", "r4", "r5"}
	for _, id := range want {
		c.Enqueue(context.Background(), rec.entry(id, 0))
	}
	h.release()
	rec.wait(t)

	for i := range want {
		if rec.replayed[i] != want[i] {
			t.Fatalf("replay order = %v, want %v", rec.replayed, want)
		}
	}
	if first.ID != "r1" {
		t.Errorf("handler saw %q, want the first failing request", first.ID)
	}
}

func TestCancelledEntryLeavesQueue(t *testing.T) {
	h := newGatedHandler()
	c := newCoordinator(h)
	rec := newRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	c.Enqueue(context.Background(), rec.entry("r1", 0))
	c.Enqueue(ctx, rec.entry("r2", 0))
	c.Enqueue(context.Background(), rec.entry("r3", 0))

	cancel()
	waitFor(t, "cancelled entry removed", func() bool { return c.Pending() == 2 })
	h.release()
	rec.wait(t)

	if fmt.Sprint(rec.replayed) != "[r1 r3]" {
		t.Errorf("replayed = %v, want [r1 r3]", rec.replayed)
	}
	if !errors.Is(rec.aborted["r2"], context.Canceled) {
		t.Errorf("r2 aborted with %v, want context.Canceled", rec.aborted["r2"])
	}
}

func TestStaleGenerationReplaysImmediately(t *testing.T) {
	var gen atomic.Uint64
	gen.Store(5)
	h := newGatedHandler()
	c := newCoordinator(h, WithGeneration(gen.Load))
	rec := newRecorder()

	c.Enqueue(context.Background(), rec.entry("old", 4))
	rec.wait(t)

	if h.calls.Load() != 0 {
		t.Errorf("handler calls = %d, want 0", h.calls.Load())
	}
	if c.State() != StateIdle {
		t.Errorf("state = %s, want idle", c.State())
	}
	h.release()
}

func TestStaleGenerationWaitsForRunningRefresh(t *testing.T) {
	var gen atomic.Uint64
	gen.Store(5)
	h := newGatedHandler()
	c := newCoordinator(h, WithGeneration(gen.Load))
	rec := newRecorder()

	c.Enqueue(context.Background(), rec.entry("current", 5))
	c.Enqueue(context.Background(), rec.entry("old", 4))
	if c.Pending() != 2 {
		t.Fatalf("Pending() = %d, want 2", c.Pending())
	}
	h.release()
	rec.wait(t)
	if h.calls.Load() != 1 {
		t.Errorf("handler calls = %d, want 1", h.calls.Load())
	}
}

func TestArrivalDuringDrainStartsNextBurst(t *testing.T) {
	var calls atomic.Int32
	c := newCoordinator(HandlerFunc(func(_ Descriptor, done func()) {
		calls.Add(1)
		done()
	}))

	second := make(chan struct{})
	c.Enqueue(context.Background(), Entry{
		Descriptor: Descriptor{ID: "first"},
		Replay: func() {
			c.Enqueue(context.Background(), Entry{
				Descriptor: Descriptor{ID: "second"},
				Replay:     func() { close(second) },
			})
		},
	})

	select {
	case <-second:
	case <-time.After(2 * time.Second):
		t.Fatal("second request never replayed")
	}
	waitFor(t, "idle", func() bool { return c.State() == StateIdle })
	if calls.Load() != 2 {
		t.Errorf("handler calls = %d, want 2", calls.Load())
	}
}

func TestDoneIsIdempotent(t *testing.T) {
	var calls atomic.Int32
	c := newCoordinator(HandlerFunc(func(_ Descriptor, done func()) {
		calls.Add(1)
		done()
		done()
	}))
	for round := 0; round < 3; round++ {
		rec := newRecorder()
		c.Enqueue(context.Background(), rec.entry(fmt.Sprintf("r%d", round), 0))
		rec.wait(t)
		if len(rec.replayed) != 1 {
			t.Fatalf("round %d replayed %d times", round, len(rec.replayed))
		}
		waitFor(t, "idle", func() bool { return c.State() == StateIdle })
	}
	if calls.Load() != 3 {
		t.Errorf("handler calls = %d, want 3", calls.Load())
	}
}

func TestTimeoutForcesCompletion(t *testing.T) {
	stuck := HandlerFunc(func(Descriptor, func()) {})
	c := newCoordinator(Timeout(stuck, 20*time.Millisecond))
	rec := newRecorder()
	c.Enqueue(context.Background(), rec.entry("r1", 0))
	rec.wait(t)
	if len(rec.replayed) != 1 {
		t.Fatalf("replayed = %v", rec.replayed)
	}
}

func TestHooks(t *testing.T) {
	var started, completed, aborted atomic.Int32
	h := newGatedHandler()
	c := newCoordinator(h, WithHooks(Hooks{
		OnStart:    func(Descriptor) { started.Add(1) },
		OnComplete: func(n int) { completed.Add(int32(n)) },
		OnAbort:    func(Descriptor, error) { aborted.Add(1) },
	}))
	rec := newRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	c.Enqueue(context.Background(), rec.entry("r1", 0))
	c.Enqueue(ctx, rec.entry("r2", 0))
	cancel()
	waitFor(t, "abort", func() bool { return aborted.Load() == 1 })
	h.release()
	rec.wait(t)
	waitFor(t, "complete hook", func() bool { return completed.Load() == 1 })

	if started.Load() != 1 {
		t.Errorf("started = %d, want 1", started.Load())
	}
}

func TestStateAndReasonStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{StateIdle.String(), "idle"},
		{StateRefreshing.String(), "refreshing"},
		{StateDraining.String(), "draining"},
		{ReasonUnauthorized.String(), "unauthorized"},
		{ReasonExpired.String(), "expired"},
	}
	for _, tc := range tests {
		if tc.got != tc.want {
			t.Errorf("got %q, want %q", tc.got, tc.want)
		}
	}
}
