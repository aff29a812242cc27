package httpclient

import (
	"sync"

	"github.com/alitto/pond/v2"
)

// Executor runs completion callbacks for Send and SendAs. Execute must not
// block the caller for long and must eventually run fn exactly once.
type Executor interface {
	Execute(fn func())
}

// ExecutorFunc adapts a function to an Executor.
type ExecutorFunc func(fn func())

func (f ExecutorFunc) Execute(fn func()) { f(fn) }

// GoroutineExecutor runs every callback on a new goroutine.
type GoroutineExecutor struct{}

func (GoroutineExecutor) Execute(fn func()) { go fn() }

// SerialExecutor runs callbacks one at a time, in submission order, on a
// single goroutine. Submissions never block; the queue is unbounded.
type SerialExecutor struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
}

// NewSerialExecutor starts the delivery goroutine.
func NewSerialExecutor() *SerialExecutor {
	e := &SerialExecutor{done: make(chan struct{})}
	e.cond = sync.NewCond(&e.mu)
	go e.loop()
	return e
}

func (e *SerialExecutor) Execute(fn func()) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		go fn()
		return
	}
	e.queue = append(e.queue, fn)
	e.mu.Unlock()
	e.cond.Signal()
}

func (e *SerialExecutor) loop() {
	defer close(e.done)
	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.closed {
			e.cond.Wait()
		}
		if len(e.queue) == 0 {
			e.mu.Unlock()
			return
		}
		fn := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		e.mu.Unlock()
		fn()
	}
}

// Close delivers the queued callbacks and stops the goroutine. Callbacks
// submitted afterwards run on their own goroutines.
func (e *SerialExecutor) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.cond.Broadcast()
	<-e.done
}

// PoolExecutor runs callbacks on a bounded pond worker pool.
type PoolExecutor struct {
	pool pond.Pool
}

// NewPoolExecutor creates a pool running at most maxConcurrency callbacks at once.
func NewPoolExecutor(maxConcurrency int) *PoolExecutor {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &PoolExecutor{pool: pond.NewPool(maxConcurrency)}
}

func (e *PoolExecutor) Execute(fn func()) {
	if e.pool.Stopped() {
		go fn()
		return
	}
	e.pool.Submit(fn)
}

// Close waits for the submitted callbacks to finish.
func (e *PoolExecutor) Close() {
	e.pool.StopAndWait()
}
