package httpclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"

	"github.com/kbukum/bryce/security"
)

// ErrorCode classifies HTTP client errors.
type ErrorCode int

const (
	// ErrCodeConnection indicates a connection failure (refused, DNS, reset).
	ErrCodeConnection ErrorCode = iota
	// ErrCodeTimeout indicates the request or a dial exceeded its deadline.
	ErrCodeTimeout
	// ErrCodeCanceled indicates the caller's context was canceled.
	ErrCodeCanceled
	// ErrCodeSecurity indicates the server failed the security policy or
	// certificate verification.
	ErrCodeSecurity
	// ErrCodeUnauthorized indicates a 401 that was not (or no longer) recoverable.
	ErrCodeUnauthorized
	// ErrCodeBodyDecoding indicates a success body that did not decode into the target type.
	ErrCodeBodyDecoding
	// ErrCodeServer indicates an error status whose body decoded into the error shape.
	ErrCodeServer
	// ErrCodeUnknown indicates an error status whose body did not decode.
	ErrCodeUnknown
	// ErrCodeValidation indicates the request could not be built.
	ErrCodeValidation
)

// String returns the error code name.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeConnection:
		return "connection"
	case ErrCodeTimeout:
		return "timeout"
	case ErrCodeCanceled:
		return "canceled"
	case ErrCodeSecurity:
		return "security"
	case ErrCodeUnauthorized:
		return "unauthorized"
	case ErrCodeBodyDecoding:
		return "body_decoding"
	case ErrCodeServer:
		return "server"
	case ErrCodeUnknown:
		return "unknown"
	case ErrCodeValidation:
		return "validation"
	default:
		return "invalid"
	}
}

// Error is a structured HTTP client error with classification.
type Error struct {
	// StatusCode is the HTTP status code (0 for transport-level errors).
	StatusCode int
	// Code classifies the error.
	Code ErrorCode
	// Message describes the error.
	Message string
	// Body is the raw response body (may be nil).
	Body []byte
	// Payload is the decoded error shape for ErrCodeServer.
	Payload ErrorPayload
	// RequestID is the X-Request-Id the request was sent with.
	RequestID string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("httpclient: %s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("httpclient: %s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransport reports whether the request failed before a response arrived.
func (e *Error) IsTransport() bool {
	switch e.Code {
	case ErrCodeConnection, ErrCodeTimeout, ErrCodeCanceled, ErrCodeSecurity:
		return true
	}
	return false
}

func newTransportError(code ErrorCode, err error) *Error {
	return &Error{Code: code, Message: err.Error(), Err: err}
}

// NewValidationError creates a validation error.
func NewValidationError(msg string) *Error {
	return &Error{Code: ErrCodeValidation, Message: msg}
}

// NewUnauthorizedError creates an unauthorized error.
func NewUnauthorizedError(body []byte) *Error {
	return &Error{
		StatusCode: 401,
		Code:       ErrCodeUnauthorized,
		Message:    "HTTP 401",
		Body:       body,
	}
}

// NewServerError creates an error carrying the decoded error payload.
func NewServerError(statusCode int, body []byte, payload ErrorPayload) *Error {
	msg := payload.ErrorMessage()
	if code := payload.ErrorCode(); code != "" {
		if msg == "" {
			msg = code
		} else {
			msg = code + ": " + msg
		}
	}
	return &Error{
		StatusCode: statusCode,
		Code:       ErrCodeServer,
		Message:    msg,
		Body:       body,
		Payload:    payload,
	}
}

// NewUnknownError creates an error for a status whose body is not the error shape.
func NewUnknownError(statusCode int, body []byte) *Error {
	return &Error{
		StatusCode: statusCode,
		Code:       ErrCodeUnknown,
		Message:    fmt.Sprintf("HTTP %d", statusCode),
		Body:       body,
	}
}

// NewBodyDecodingError creates an error for a success body that did not decode.
func NewBodyDecodingError(statusCode int, body []byte, err error) *Error {
	return &Error{
		StatusCode: statusCode,
		Code:       ErrCodeBodyDecoding,
		Message:    err.Error(),
		Body:       body,
		Err:        err,
	}
}

// classifyTransportError maps a round-trip failure to a transport error code.
func classifyTransportError(err error) *Error {
	var (
		policyErr    *security.PolicyError
		verifyErr    *tls.CertificateVerificationError
		authorityErr x509.UnknownAuthorityError
		hostnameErr  x509.HostnameError
		invalidErr   x509.CertificateInvalidError
		netErr       net.Error
	)
	switch {
	case errors.As(err, &policyErr), errors.As(err, &verifyErr),
		errors.As(err, &authorityErr), errors.As(err, &hostnameErr), errors.As(err, &invalidErr):
		return newTransportError(ErrCodeSecurity, err)
	case errors.Is(err, context.Canceled):
		return newTransportError(ErrCodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return newTransportError(ErrCodeTimeout, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return newTransportError(ErrCodeTimeout, err)
	default:
		return newTransportError(ErrCodeConnection, err)
	}
}

func codeOf(err error) (ErrorCode, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}

func hasCode(err error, code ErrorCode) bool {
	c, ok := codeOf(err)
	return ok && c == code
}

// IsTransport checks if an error is a connection, timeout, canceled or security error.
func IsTransport(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.IsTransport()
}

// IsConnection checks if an error is a connection error.
func IsConnection(err error) bool { return hasCode(err, ErrCodeConnection) }

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool { return hasCode(err, ErrCodeTimeout) }

// IsCanceled checks if an error is a cancellation.
func IsCanceled(err error) bool { return hasCode(err, ErrCodeCanceled) }

// IsSecurity checks if an error is a security policy or verification failure.
func IsSecurity(err error) bool { return hasCode(err, ErrCodeSecurity) }

// IsUnauthorized checks if an error is an unrecovered 401.
func IsUnauthorized(err error) bool { return hasCode(err, ErrCodeUnauthorized) }

// IsBodyDecoding checks if an error is a success-body decoding failure.
func IsBodyDecoding(err error) bool { return hasCode(err, ErrCodeBodyDecoding) }

// IsServerError checks if an error carries a decoded error payload.
func IsServerError(err error) bool { return hasCode(err, ErrCodeServer) }

// IsUnknown checks if an error is an undecodable error status.
func IsUnknown(err error) bool { return hasCode(err, ErrCodeUnknown) }

// IsValidation checks if an error is a request validation error.
func IsValidation(err error) bool { return hasCode(err, ErrCodeValidation) }

// PayloadOf returns the decoded error payload of a server error.
func PayloadOf(err error) (ErrorPayload, bool) {
	var e *Error
	if errors.As(err, &e) && e.Payload != nil {
		return e.Payload, true
	}
	return nil, false
}

// StatusCodeOf returns the HTTP status of err, or 0 for transport and validation errors.
func StatusCodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}
