package component

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kbukum/bryce/logger"
)

// mockComponent implements Component for testing.
type mockComponent struct {
	name     string
	startErr error
	stopErr  error
	health   Health
	order    *[]string
}

func (m *mockComponent) Name() string { return m.name }
func (m *mockComponent) Start(ctx context.Context) error {
	if m.order != nil {
		*m.order = append(*m.order, "start:"+m.name)
	}
	return m.startErr
}
func (m *mockComponent) Stop(ctx context.Context) error {
	if m.order != nil {
		*m.order = append(*m.order, "stop:"+m.name)
	}
	return m.stopErr
}
func (m *mockComponent) Health(ctx context.Context) Health {
	return m.health
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry(logger.Nop())
	if err := r.Register(&mockComponent{name: "store"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(&mockComponent{name: "store"}); err == nil {
		t.Error("expected error for duplicate registration")
	}
	if r.Get("store") == nil || r.Get("missing") != nil {
		t.Error("Get returned the wrong component")
	}
}

func TestStartStopOrder(t *testing.T) {
	var order []string
	r := NewRegistry(logger.Nop())
	for _, name := range []string{"store", "telemetry", "client"} {
		_ = r.Register(&mockComponent{name: name, order: &order})
	}

	ctx := context.Background()
	if err := r.StartAll(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.StopAll(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "[start:store start:telemetry start:client stop:client stop:telemetry stop:store]"
	if fmt.Sprint(order) != want {
		t.Errorf("order = %v, want %s", order, want)
	}
	if len(r.All()) != 3 {
		t.Errorf("All() = %d components", len(r.All()))
	}
}

func TestStartFailureRollsBack(t *testing.T) {
	var order []string
	r := NewRegistry(logger.Nop())
	_ = r.Register(&mockComponent{name: "store", order: &order})
	_ = r.Register(&mockComponent{name: "client", order: &order, startErr: errors.New("bad base url")})

	err := r.StartAll(context.Background())
	if err == nil {
		t.Fatal("expected start error")
	}
	want := "[start:store start:client stop:store]"
	if fmt.Sprint(order) != want {
		t.Errorf("order = %v, want %s", order, want)
	}
}

func TestStopCollectsErrors(t *testing.T) {
	r := NewRegistry(logger.Nop())
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	_ = r.Register(&mockComponent{name: "a", stopErr: errA})
	_ = r.Register(&mockComponent{name: "b", stopErr: errB})
	ctx := context.Background()
	_ = r.StartAll(ctx)

	err := r.StopAll(ctx)
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("expected both stop errors, got %v", err)
	}
	if err := r.StopAll(ctx); err != nil {
		t.Fatalf("second stop should be a no-op, got %v", err)
	}
}

type blockingStop struct{ mockComponent }

func (b *blockingStop) Stop(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestStopTimeout(t *testing.T) {
	r := NewRegistry(logger.Nop(), WithStopTimeout(10*time.Millisecond))
	_ = r.Register(&blockingStop{mockComponent{name: "client"}})
	ctx := context.Background()
	if err := r.StartAll(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Started("client") {
		t.Fatal("expected client to be started")
	}
	if err := r.StopAll(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if r.Started("client") {
		t.Error("client still marked started")
	}
}

func TestHealthAll(t *testing.T) {
	r := NewRegistry(logger.Nop())
	_ = r.Register(&mockComponent{name: "a", health: Health{Name: "a", Status: StatusHealthy}})
	_ = r.Register(&Funcs{ComponentName: "b", HealthFunc: func(context.Context) error { return errors.New("ping timeout") }})

	results := r.HealthAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Status != StatusHealthy {
		t.Errorf("a = %v", results[0])
	}
	if results[1].Status != StatusUnhealthy || results[1].Message != "ping timeout" {
		t.Errorf("b = %v", results[1])
	}
}

func TestFuncs(t *testing.T) {
	var started, stopped bool
	f := &Funcs{
		ComponentName: "telemetry",
		StartFunc:     func(context.Context) error { started = true; return nil },
		StopFunc:      func(context.Context) error { stopped = true; return nil },
		Description:   Description{Type: "telemetry", Details: "localhost:4318"},
	}
	ctx := context.Background()
	if err := f.Start(ctx); err != nil || !started {
		t.Fatalf("start: %v %v", err, started)
	}
	if err := f.Stop(ctx); err != nil || !stopped {
		t.Fatalf("stop: %v %v", err, stopped)
	}
	if d := f.Describe(); d.Name != "telemetry" || d.Details != "localhost:4318" {
		t.Errorf("Describe() = %+v", d)
	}

	empty := &Funcs{ComponentName: "noop"}
	if empty.Start(ctx) != nil || empty.Stop(ctx) != nil || empty.Health(ctx).Status != StatusHealthy {
		t.Error("nil funcs should be no-ops")
	}
}
