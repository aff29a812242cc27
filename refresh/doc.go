// Package refresh coordinates credential refresh for requests the server
// rejected with 401, or that carry a locally expired credential.
//
// The first failing request starts one refresh through the Handler; every
// request that fails while it runs is queued behind it. When the handler
// calls done, queued requests are replayed in the order they arrived. A
// request whose context is cancelled while queued leaves the queue and is
// aborted instead.
//
//	c := refresh.NewCoordinator(handler, refresh.WithGeneration(store.Generation))
//	c.Enqueue(ctx, refresh.Entry{Descriptor: d, Generation: gen, Replay: retry, Abort: fail})
package refresh
