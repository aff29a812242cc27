package httpclient

import (
	"context"
	"net/http"
	"sync"
)

// TypedResponse wraps a response with a decoded body of type T.
type TypedResponse[T any] struct {
	// StatusCode is the HTTP status code.
	StatusCode int
	// Headers are the response headers.
	Headers map[string]string
	// Data is the decoded response body; the zero value for an empty body.
	Data T
	// Raw is the undecoded response.
	Raw *Response
}

// Result is the outcome of an asynchronous typed request.
type Result[T any] struct {
	Response *TypedResponse[T]
	Err      error
}

// Fetch sends req and decodes a success body into T with the client's decoder.
func Fetch[T any](c *Client, ctx context.Context, req Request) (*TypedResponse[T], error) {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return decodeTyped[T](c, resp)
}

func decodeTyped[T any](c *Client, resp *Response) (*TypedResponse[T], error) {
	var data T
	if len(resp.Body) > 0 {
		if err := c.decoder.Decode(resp.Body, &data); err != nil {
			derr := NewBodyDecodingError(resp.StatusCode, resp.Body, err)
			derr.RequestID = resp.RequestID
			return nil, derr
		}
	}
	return &TypedResponse[T]{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Data:       data,
		Raw:        resp,
	}, nil
}

// Get performs a GET request and decodes the response into type T.
func Get[T any](c *Client, ctx context.Context, route Route, opts ...RequestOption) (*TypedResponse[T], error) {
	return Fetch[T](c, ctx, NewRequest(http.MethodGet, route, opts...))
}

// Post performs a POST request with a JSON body and decodes the response into type T.
func Post[T any](c *Client, ctx context.Context, route Route, body any, opts ...RequestOption) (*TypedResponse[T], error) {
	return Fetch[T](c, ctx, NewRequest(http.MethodPost, route, append([]RequestOption{WithJSON(body)}, opts...)...))
}

// Put performs a PUT request with a JSON body and decodes the response into type T.
func Put[T any](c *Client, ctx context.Context, route Route, body any, opts ...RequestOption) (*TypedResponse[T], error) {
	return Fetch[T](c, ctx, NewRequest(http.MethodPut, route, append([]RequestOption{WithJSON(body)}, opts...)...))
}

// Patch performs a PATCH request with a JSON body and decodes the response into type T.
func Patch[T any](c *Client, ctx context.Context, route Route, body any, opts ...RequestOption) (*TypedResponse[T], error) {
	return Fetch[T](c, ctx, NewRequest(http.MethodPatch, route, append([]RequestOption{WithJSON(body)}, opts...)...))
}

// Delete performs a DELETE request and decodes the response into type T.
func Delete[T any](c *Client, ctx context.Context, route Route, opts ...RequestOption) (*TypedResponse[T], error) {
	return Fetch[T](c, ctx, NewRequest(http.MethodDelete, route, opts...))
}

// SendAs dispatches req and delivers the decoded result to cb exactly once
// on the client's executor.
func SendAs[T any](c *Client, ctx context.Context, req Request, cb func(Result[T])) {
	c.Send(ctx, req, func(resp *Response, err error) {
		cb(typedResult[T](c, resp, err))
	})
}

func typedResult[T any](c *Client, resp *Response, err error) Result[T] {
	if err != nil {
		return Result[T]{Err: err}
	}
	typed, err := decodeTyped[T](c, resp)
	return Result[T]{Response: typed, Err: err}
}

// Future is the pending result of Async.
type Future[T any] struct {
	done   chan struct{}
	once   sync.Once
	result Result[T]
}

// Async dispatches req and returns a Future for its decoded result.
func Async[T any](c *Client, ctx context.Context, req Request) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go c.start(ctx, req, func(resp *Response, err error) {
		f.resolve(typedResult[T](c, resp, err))
	})
	return f
}

func (f *Future[T]) resolve(r Result[T]) {
	f.once.Do(func() {
		f.result = r
		close(f.done)
	})
}

// Done is closed when the result is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until the result is available or ctx ends. Ending ctx only
// stops the wait; the request keeps its own context. An ended wait is
// classified like a transport error (IsTimeout, IsCanceled).
func (f *Future[T]) Wait(ctx context.Context) (*TypedResponse[T], error) {
	select {
	case <-f.done:
		return f.result.Response, f.result.Err
	case <-ctx.Done():
		return nil, classifyTransportError(ctx.Err())
	}
}

// Result returns the result and true once it is available.
func (f *Future[T]) Result() (Result[T], bool) {
	select {
	case <-f.done:
		return f.result, true
	default:
		return Result[T]{}, false
	}
}
