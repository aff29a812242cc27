package httpclient

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Request describes an outbound HTTP request. The body is held as bytes so
// a request replayed after a credential refresh sends the same payload.
type Request struct {
	// Method is the HTTP method. Empty means GET.
	Method string
	// Route is resolved against the client's base URL.
	Route Route
	// Headers are request-specific headers; they win over client headers.
	// An Authorization header here suppresses the stored credential.
	Headers map[string]string
	// Query values are merged over the route's query.
	Query map[string]string
	// Body is sent as-is.
	Body []byte
	// ContentType is set when Body is non-empty and no Content-Type header was given.
	ContentType string

	err error
}

// RequestOption configures a single request.
type RequestOption func(*Request)

// NewRequest builds a request for method and route.
func NewRequest(method string, route Route, opts ...RequestOption) Request {
	req := Request{Method: method, Route: route}
	for _, opt := range opts {
		opt(&req)
	}
	return req
}

// WithHeader adds a header to the request.
func WithHeader(key, value string) RequestOption {
	return func(r *Request) {
		if r.Headers == nil {
			r.Headers = make(map[string]string)
		}
		r.Headers[key] = value
	}
}

// WithQueryParam adds a query parameter to the request.
func WithQueryParam(key, value string) RequestOption {
	return func(r *Request) {
		if r.Query == nil {
			r.Query = make(map[string]string)
		}
		r.Query[key] = value
	}
}

// WithQueryParams adds several query parameters.
func WithQueryParams(params map[string]string) RequestOption {
	return func(r *Request) {
		for k, v := range params {
			WithQueryParam(k, v)(r)
		}
	}
}

// WithBody sets a raw body.
func WithBody(body []byte, contentType string) RequestOption {
	return func(r *Request) {
		r.Body = body
		r.ContentType = contentType
	}
}

// WithJSON encodes v as the JSON body. An encoding failure surfaces as a
// validation error when the request is sent.
func WithJSON(v any) RequestOption {
	return func(r *Request) {
		if v == nil {
			return
		}
		data, err := json.Marshal(v)
		if err != nil {
			r.err = fmt.Errorf("encode body: %w", err)
			return
		}
		r.Body = data
		r.ContentType = "application/json"
	}
}

func (r Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}

// Response is the result of an HTTP request.
type Response struct {
	// StatusCode is the HTTP status code.
	StatusCode int
	// Headers are the response headers (first value per key).
	Headers map[string]string
	// Body is the raw response body.
	Body []byte
	// RequestID is the X-Request-Id the request was sent with.
	RequestID string
	// Attempts counts the dispatches the request needed (2 after a replay).
	Attempts int
}

// IsSuccess returns true if the status code is in the success range 200-399.
func (r *Response) IsSuccess() bool {
	return isSuccess(r.StatusCode)
}

// IsError returns true if the status code is 4xx or 5xx.
func (r *Response) IsError() bool {
	return r.StatusCode >= 400
}

func isSuccess(status int) bool {
	return status >= 200 && status < 400
}

// flattenHeaders converts multi-value headers to single-value.
func flattenHeaders(h http.Header) map[string]string {
	result := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			result[k] = v[0]
		}
	}
	return result
}
