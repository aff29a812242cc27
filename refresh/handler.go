package refresh

import (
	"sync"
	"time"
)

// Reason tells a handler why a refresh was requested.
type Reason int

const (
	// ReasonUnauthorized means the server answered 401.
	ReasonUnauthorized Reason = iota + 1
	// ReasonExpired means the stored credential expired before sending.
	ReasonExpired
)

func (r Reason) String() string {
	switch r {
	case ReasonUnauthorized:
		return "unauthorized"
	case ReasonExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Descriptor is a read-only description of the request that triggered a refresh.
type Descriptor struct {
	ID         string
	Method     string
	URL        string
	StatusCode int
	Reason     Reason
	Attempt    int
}

// Handler obtains a new credential. It must eventually call done exactly
// once, whether or not the refresh succeeded; calls after the first are
// ignored. Installing the new credential (credential.Store.Set) before
// calling done is the handler's job.
type Handler interface {
	Refresh(failed Descriptor, done func())
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(failed Descriptor, done func())

// Refresh implements Handler.
func (f HandlerFunc) Refresh(failed Descriptor, done func()) { f(failed, done) }

// Timeout bounds h: if h has not called done within d, done is called for
// it and queued requests are replayed with whatever credential is current.
func Timeout(h Handler, d time.Duration) Handler {
	return HandlerFunc(func(failed Descriptor, done func()) {
		var once sync.Once
		finish := func() { once.Do(done) }
		timer := time.AfterFunc(d, finish)
		h.Refresh(failed, func() {
			timer.Stop()
			finish()
		})
	})
}
