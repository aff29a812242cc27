// Package resilience keeps unreliable backends from stalling the request
// path.
//
//   - CircuitBreaker: fails fast once a backend keeps failing, probing it
//     again after a cool-down.
//   - Retry: retries an operation with exponential backoff and jitter.
//
// The credential store guards its secret backend with a breaker and seeds
// from it with Retry:
//
//	cb := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("secretstore"))
//	err := cb.Execute(func() error { return backend.Set(ctx, ns, blob) })
package resilience
