// Package httpclient sends requests to a single API on behalf of an
// authenticated session.
//
// A Client merges global and per-request headers, attaches the current
// credential and a request id, classifies failures into an Error with an
// ErrorCode, and decodes bodies through a Decoder. When a RefreshHandler
// is configured, a 401 parks the request in a refresh.Coordinator; one
// refresh runs at a time and parked requests are replayed in arrival
// order, each at most once per refresh burst.
//
// # Basic Usage
//
//	client, err := httpclient.New(httpclient.Config{
//	    BaseURL: "https://api.example.com",
//	    Timeout: 30 * time.Second,
//	})
//	client.SetAuthorization(ctx, &auth.Authorization{...})
//
//	resp, err := httpclient.Get[Post](client, ctx, httpclient.NewRoute("posts", "1"))
//
// # Views
//
// With derives a view with its own base URL, headers, decoder or executor.
// Views share the transport, security policy, credential store and
// refresh coordinator of the client they came from:
//
//	admin := client.With(httpclient.WithBaseURL("https://admin.example.com"))
//
// # Callbacks
//
// Send and SendAs deliver results on the configured Executor; Do and the
// typed helpers block only the calling goroutine.
package httpclient
