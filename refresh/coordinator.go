package refresh

import (
	"context"
	"sync"

	"github.com/kbukum/bryce/logger"
)

// State of a Coordinator.
type State int

const (
	StateIdle State = iota
	StateRefreshing
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRefreshing:
		return "refreshing"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// Entry is a request waiting for a refresh.
type Entry struct {
	Descriptor Descriptor
	// Generation of the credential the request was sent with.
	Generation uint64
	// Replay re-dispatches the request. It is called from the goroutine that
	// completes the refresh and must not block.
	Replay func()
	// Abort fails the request when its context ends while queued.
	Abort func(err error)
}

// Hooks observe coordinator activity. Hooks run without the coordinator
// lock held.
type Hooks struct {
	OnStart    func(Descriptor)
	OnComplete func(replayed int)
	OnAbort    func(Descriptor, error)
}

type pending struct {
	Entry
	once sync.Once
	stop func() bool
}

func (p *pending) replay() {
	p.once.Do(func() {
		if p.stop != nil {
			p.stop()
		}
		p.Replay()
	})
}

func (p *pending) abort(err error) bool {
	ran := false
	p.once.Do(func() {
		ran = true
		if p.Abort != nil {
			p.Abort(err)
		}
	})
	return ran
}

// Coordinator serializes refreshes: at most one handler call is in flight,
// and requests failing meanwhile wait for it in FIFO order.
type Coordinator struct {
	handler    Handler
	generation func() uint64
	hooks      Hooks
	log        *logger.Logger

	mu        sync.Mutex
	state     State
	queue     []*pending
	refreshes int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// WithGeneration lets the coordinator detect requests that were sent with a
// credential that has since been replaced; those are replayed immediately
// instead of starting another refresh.
func WithGeneration(fn func() uint64) Option {
	return func(c *Coordinator) { c.generation = fn }
}

// WithHooks registers observers.
func WithHooks(h Hooks) Option {
	return func(c *Coordinator) { c.hooks = h }
}

// NewCoordinator creates an idle coordinator around h.
func NewCoordinator(h Handler, opts ...Option) *Coordinator {
	c := &Coordinator{handler: h}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.OrDefault(c.log, "refresh")
	return c
}

// Enqueue hands a failed request to the coordinator. Exactly one of
// e.Replay or e.Abort is eventually called, unless the handler never calls
// done and ctx never ends.
func (c *Coordinator) Enqueue(ctx context.Context, e Entry) {
	c.mu.Lock()
	if c.state != StateRefreshing && c.generation != nil && e.Generation < c.generation() {
		c.mu.Unlock()
		c.log.Debug("credential already replaced, replaying", logger.Fields(logger.FieldRequestID, e.Descriptor.ID))
		e.Replay()
		return
	}

	p := &pending{Entry: e}
	c.queue = append(c.queue, p)
	start := c.state == StateIdle
	if start {
		c.state = StateRefreshing
		c.refreshes++
	}
	// AfterFunc runs f on its own goroutine, so registering under the lock is safe.
	p.stop = context.AfterFunc(ctx, func() {
		if c.remove(p) && p.abort(context.Cause(ctx)) {
			c.log.Debug("queued request cancelled", logger.Fields(logger.FieldRequestID, p.Descriptor.ID))
			if c.hooks.OnAbort != nil {
				c.hooks.OnAbort(p.Descriptor, context.Cause(ctx))
			}
		}
	})
	c.mu.Unlock()

	if start {
		c.begin(e.Descriptor)
	} else {
		c.log.Debug("request queued behind refresh", logger.Fields(logger.FieldRequestID, e.Descriptor.ID))
	}
}

// begin invokes the handler for a new burst. Caller must have moved the
// state to StateRefreshing.
func (c *Coordinator) begin(d Descriptor) {
	c.log.Info("refreshing credential", logger.Fields(
		logger.FieldRequestID, d.ID,
		"reason", d.Reason.String(),
		logger.FieldStatus, d.StatusCode,
	))
	if c.hooks.OnStart != nil {
		c.hooks.OnStart(d)
	}
	var once sync.Once
	done := func() { once.Do(c.complete) }
	go c.handler.Refresh(d, done)
}

// complete drains the queue in FIFO order and then either goes idle or
// starts the next burst for requests that arrived while draining.
func (c *Coordinator) complete() {
	c.mu.Lock()
	batch := c.queue
	c.queue = nil
	c.state = StateDraining
	c.mu.Unlock()

	for _, p := range batch {
		p.replay()
	}

	c.mu.Lock()
	var next *pending
	if len(c.queue) > 0 {
		next = c.queue[0]
		c.state = StateRefreshing
		c.refreshes++
	} else {
		c.state = StateIdle
	}
	c.mu.Unlock()

	c.log.Debug("refresh queue drained", logger.Fields("replayed", len(batch)))
	if c.hooks.OnComplete != nil {
		c.hooks.OnComplete(len(batch))
	}
	if next != nil {
		c.begin(next.Descriptor)
	}
}

func (c *Coordinator) remove(p *pending) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, q := range c.queue {
		if q == p {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			return true
		}
	}
	return false
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pending returns the number of queued requests.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Refreshes returns how many times the handler has been invoked.
func (c *Coordinator) Refreshes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshes
}
