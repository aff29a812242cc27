package httpclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kbukum/bryce/auth"
	"github.com/kbukum/bryce/component"
	"github.com/kbukum/bryce/credential"
	"github.com/kbukum/bryce/logger"
	"github.com/kbukum/bryce/resilience"
	"github.com/kbukum/bryce/secretstore"
)

type brokenBackend struct{}

var errDown = errors.New("down")

func (brokenBackend) Get(context.Context, string) ([]byte, error) { return nil, secretstore.ErrNotFound }
func (brokenBackend) Set(context.Context, string, []byte) error   { return errDown }
func (brokenBackend) Delete(context.Context, string) error        { return errDown }

func TestComponentLifecycle(t *testing.T) {
	ctx := context.Background()
	store := credential.NewStore(
		credential.WithLogger(logger.Nop()),
		credential.WithBreaker(resilience.CircuitBreakerConfig{Name: "test", MaxFailures: 1, Timeout: time.Hour}),
	)
	comp := NewComponent(Config{Name: "api", BaseURL: "https://api.example.com", Credentials: store, Logger: logger.Nop()})

	if comp.Name() != "api" {
		t.Errorf("Name() = %q", comp.Name())
	}
	if h := comp.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("health before start = %s", h.Status)
	}
	if err := comp.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if comp.Client() == nil {
		t.Fatal("expected client after start")
	}
	if h := comp.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("health after start = %s", h.Status)
	}

	if err := store.ConfigurePersistence(ctx, brokenBackend{}, "com.example.api"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	store.Set(ctx, auth.Bearer("t", "", time.Time{}))
	if h := comp.Health(ctx); h.Status != component.StatusDegraded {
		t.Errorf("health with open breaker = %s", h.Status)
	}

	if d := comp.Describe(); d.Type != "http-client" || d.Details != "https://api.example.com" {
		t.Errorf("Describe() = %+v", d)
	}
	if err := comp.Stop(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestComponentStartFails(t *testing.T) {
	comp := NewComponent(Config{})
	if err := comp.Start(context.Background()); err == nil {
		t.Fatal("expected error for missing base url")
	}
	if comp.Name() != defaultName {
		t.Errorf("Name() = %q", comp.Name())
	}
}
