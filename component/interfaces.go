package component

import "context"

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDegraded  HealthStatus = "degraded"
)

// Health holds health information for a component.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Component is a part of the client stack with a start/stop lifecycle:
// the secret store backend, telemetry exporters, the HTTP session.
type Component interface {
	// Name returns the unique name of the component for registration.
	Name() string

	// Start initializes the component.
	Start(ctx context.Context) error

	// Stop releases the component's resources.
	Stop(ctx context.Context) error

	// Health returns the current health status of the component.
	Health(ctx context.Context) Health
}

// Description holds summary information logged at startup.
type Description struct {
	// Name is the display name. If empty, the component's Name() is used.
	Name string
	// Type categorizes the component: "secret-store", "http-client", "telemetry".
	Type string
	// Details is a one-liner such as "file /home/u/.config/app/secrets".
	Details string
}

// Describable is optionally implemented by Components to report what they
// are and how they're configured.
type Describable interface {
	Describe() Description
}

// Funcs adapts plain functions to a Component. Nil functions are no-ops and
// a nil HealthFunc reports healthy.
type Funcs struct {
	ComponentName string
	StartFunc     func(ctx context.Context) error
	StopFunc      func(ctx context.Context) error
	HealthFunc    func(ctx context.Context) error
	Description   Description
}

func (f *Funcs) Name() string { return f.ComponentName }

func (f *Funcs) Start(ctx context.Context) error {
	if f.StartFunc == nil {
		return nil
	}
	return f.StartFunc(ctx)
}

func (f *Funcs) Stop(ctx context.Context) error {
	if f.StopFunc == nil {
		return nil
	}
	return f.StopFunc(ctx)
}

func (f *Funcs) Health(ctx context.Context) Health {
	h := Health{Name: f.ComponentName, Status: StatusHealthy}
	if f.HealthFunc != nil {
		if err := f.HealthFunc(ctx); err != nil {
			h.Status = StatusUnhealthy
			h.Message = err.Error()
		}
	}
	return h
}

func (f *Funcs) Describe() Description {
	d := f.Description
	if d.Name == "" {
		d.Name = f.ComponentName
	}
	return d
}
