package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/bryce/auth"
	"github.com/kbukum/bryce/logger"
	"github.com/kbukum/bryce/observability"
	"github.com/kbukum/bryce/refresh"
)

// call is one logical request across its dispatches. Dispatches of a call
// never overlap: a replay starts only after the previous attempt queued it.
type call struct {
	c   *Client
	ctx context.Context
	req Request
	id  string

	attempts    int
	preflighted bool
	replayed    bool

	once     sync.Once
	complete func(*Response, error)
}

func (c *Client) start(ctx context.Context, req Request, complete func(*Response, error)) {
	id := ""
	for k, v := range req.Headers {
		if http.CanonicalHeaderKey(k) == HeaderRequestID {
			id = v
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	k := &call{c: c, ctx: ctx, req: req, id: id, complete: complete}
	k.run()
}

func (k *call) finish(resp *Response, err error) {
	k.once.Do(func() {
		if e, ok := err.(*Error); ok && e.RequestID == "" {
			e.RequestID = k.id
		}
		k.complete(resp, err)
	})
}

// run performs one pass of the lifecycle: refresh expired credentials
// first, otherwise dispatch and classify.
func (k *call) run() {
	s := k.c.s
	a, hasAuth, gen := s.creds.Snapshot()

	if hasAuth && s.coord != nil && !k.preflighted && a.IsExpired(time.Now()) {
		k.preflighted = true
		k.enqueue(refresh.ReasonExpired, 0, gen)
		return
	}

	httpReq, err := k.build(a, hasAuth)
	if err != nil {
		k.finish(nil, err)
		return
	}

	k.attempts++
	ctx, span := observability.StartAttemptSpan(k.ctx, s.tracer, httpReq.Method, httpReq.URL.String(), k.id, k.attempts)
	httpReq = httpReq.WithContext(ctx)
	started := time.Now()

	if s.log.Enabled(zerolog.DebugLevel) {
		s.log.Debug("request", logger.Fields(
			logger.FieldRequestID, k.id,
			logger.FieldMethod, httpReq.Method,
			logger.FieldURL, httpReq.URL.String(),
			logger.FieldAttempt, k.attempts,
		))
	}

	resp, err := s.http.Do(httpReq)
	if err != nil {
		terr := classifyTransportError(err)
		k.record(span, started, 0, observability.OutcomeError, terr)
		k.finish(nil, terr)
		return
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		terr := classifyTransportError(fmt.Errorf("read response body: %w", err))
		k.record(span, started, resp.StatusCode, observability.OutcomeError, terr)
		k.finish(nil, terr)
		return
	}

	result := &Response{
		StatusCode: resp.StatusCode,
		Headers:    flattenHeaders(resp.Header),
		Body:       body,
		RequestID:  k.id,
		Attempts:   k.attempts,
	}

	switch {
	case isSuccess(resp.StatusCode):
		k.record(span, started, resp.StatusCode, observability.OutcomeSuccess, nil)
		k.finish(result, nil)

	case resp.StatusCode == http.StatusUnauthorized && s.coord != nil && !k.replayed:
		k.replayed = true
		k.record(span, started, resp.StatusCode, observability.OutcomeQueued, nil)
		k.enqueue(refresh.ReasonUnauthorized, resp.StatusCode, gen)

	case resp.StatusCode == http.StatusUnauthorized:
		uerr := NewUnauthorizedError(body)
		k.record(span, started, resp.StatusCode, observability.OutcomeUnauthorized, uerr)
		k.finish(result, uerr)

	default:
		serr := k.c.decodeError(resp.StatusCode, body)
		k.record(span, started, resp.StatusCode, observability.OutcomeError, serr)
		k.finish(result, serr)
	}
}

func (k *call) record(span trace.Span, started time.Time, status int, outcome string, err error) {
	s := k.c.s
	elapsed := time.Since(started)
	observability.EndAttemptSpan(span, status, outcome, err)
	s.metrics.RecordRequest(k.ctx, k.req.method(), outcome, elapsed)
	if s.log.Enabled(zerolog.DebugLevel) {
		fields := logger.Fields(
			logger.FieldRequestID, k.id,
			logger.FieldStatus, status,
			"outcome", outcome,
			logger.FieldDuration, elapsed.String(),
		)
		if err != nil {
			fields[logger.FieldError] = err.Error()
		}
		s.log.Debug("response", fields)
	}
}

// enqueue hands the call to the coordinator; the replay runs on its own
// goroutine so a burst's completions are independent.
func (k *call) enqueue(reason refresh.Reason, status int, gen uint64) {
	k.c.s.coord.Enqueue(k.ctx, refresh.Entry{
		Descriptor: refresh.Descriptor{
			ID:         k.id,
			Method:     k.req.method(),
			URL:        k.req.Route.String(),
			StatusCode: status,
			Reason:     reason,
			Attempt:    k.attempts,
		},
		Generation: gen,
		Replay:     func() { go k.run() },
		Abort: func(err error) {
			aerr := classifyTransportError(err)
			if aerr.Code == ErrCodeConnection {
				// custom cancellation cause
				aerr.Code = ErrCodeCanceled
			}
			k.finish(nil, aerr)
		},
	})
}

// build assembles the outgoing request: client headers, then request
// headers, then the credential unless the request carries its own.
func (k *call) build(a auth.Authorization, hasAuth bool) (*http.Request, error) {
	c := k.c
	if k.req.err != nil {
		return nil, NewValidationError(k.req.err.Error())
	}
	if c.baseErr != nil {
		return nil, NewValidationError(c.baseErr.Error())
	}
	u, err := k.req.Route.resolve(c.baseURL, k.req.Query)
	if err != nil {
		return nil, NewValidationError(err.Error())
	}

	var body io.Reader
	if len(k.req.Body) > 0 {
		body = bytes.NewReader(k.req.Body)
	}
	httpReq, err := http.NewRequestWithContext(k.ctx, k.req.method(), u.String(), body)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("create request: %v", err))
	}

	for name, v := range c.headers {
		httpReq.Header.Set(name, v)
	}
	for name, v := range k.req.Headers {
		httpReq.Header.Set(name, v)
	}
	if body != nil && k.req.ContentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", k.req.ContentType)
	}
	if hasAuth && httpReq.Header.Get("Authorization") == "" {
		httpReq.Header.Set("Authorization", a.HeaderValue())
	}
	httpReq.Header.Set(HeaderRequestID, k.id)
	return httpReq, nil
}

// decodeError decodes an error body into the view's error shape. A body
// that does not decode, or decodes to an empty shape, is an unknown error.
func (c *Client) decodeError(status int, body []byte) *Error {
	if len(body) > 0 {
		payload := c.errorShape()
		if payload != nil && c.decoder.Decode(body, payload) == nil &&
			(payload.ErrorCode() != "" || payload.ErrorMessage() != "") {
			return NewServerError(status, body, payload)
		}
	}
	return NewUnknownError(status, body)
}
