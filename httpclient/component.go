package httpclient

import (
	"context"
	"fmt"

	"github.com/kbukum/bryce/component"
	"github.com/kbukum/bryce/resilience"
)

// Component wraps a Client with lifecycle management.
// Use this when the client is part of a managed application
// (e.g., with bootstrap.App).
type Component struct {
	client *Client
	config Config
}

// compile-time assertions
var _ component.Component = (*Component)(nil)
var _ component.Describable = (*Component)(nil)

// NewComponent creates a new HTTP client component.
// The client is created lazily in Start().
func NewComponent(cfg Config) *Component {
	return &Component{config: cfg}
}

// Name returns the component name.
func (c *Component) Name() string {
	if c.config.Name == "" {
		return defaultName
	}
	return c.config.Name
}

// Start creates the client.
func (c *Component) Start(_ context.Context) error {
	cl, err := New(c.config)
	if err != nil {
		return err
	}
	c.client = cl
	return nil
}

// Stop closes the client and releases idle connections.
func (c *Component) Stop(ctx context.Context) error {
	if c.client != nil {
		return c.client.Close(ctx)
	}
	return nil
}

// Health reports unhealthy before Start and degraded while credential
// persistence is short-circuited.
func (c *Component) Health(_ context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	switch {
	case c.client == nil:
		h.Status = component.StatusUnhealthy
		h.Message = "not started"
	case c.client.Credentials().BackendState() == resilience.StateOpen:
		h.Status = component.StatusDegraded
		h.Message = "credential persistence unavailable"
	}
	return h
}

// Describe returns component description for the bootstrap summary.
func (c *Component) Describe() component.Description {
	details := c.config.BaseURL
	if c.config.RefreshHandler != nil {
		details = fmt.Sprintf("%s (refresh)", details)
	}
	return component.Description{
		Name:    c.Name(),
		Type:    "http-client",
		Details: details,
	}
}

// Client returns the underlying client. Must be called after Start().
func (c *Component) Client() *Client {
	return c.client
}
