package httpclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// Decoder turns a response body into a value.
type Decoder interface {
	Decode(data []byte, v any) error
}

// DecoderFunc adapts a function to a Decoder.
type DecoderFunc func(data []byte, v any) error

func (f DecoderFunc) Decode(data []byte, v any) error { return f(data, v) }

// JSONDecoder decodes JSON. Strict rejects unknown fields and trailing data.
type JSONDecoder struct {
	Strict bool
}

func (d JSONDecoder) Decode(data []byte, v any) error {
	if !d.Strict {
		return json.Unmarshal(data, v)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

// ErrorPayload is the shape an API uses for error bodies. Implementations
// are decoded into, so ErrorShape functions return pointers.
type ErrorPayload interface {
	ErrorCode() string
	ErrorMessage() string
}

// ErrorBody is the default error shape: {"error": "...", "message": "..."}.
type ErrorBody struct {
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (b *ErrorBody) ErrorCode() string    { return b.Code }
func (b *ErrorBody) ErrorMessage() string { return b.Message }

// DefaultErrorShape returns a fresh *ErrorBody.
func DefaultErrorShape() ErrorPayload { return &ErrorBody{} }
