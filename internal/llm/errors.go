package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// FailureKind classifies why a completion failed.
type FailureKind string

const (
	// NetworkError covers unreachable endpoints, transport errors and timeouts.
	NetworkError FailureKind = "network_error"
	// ProtocolError covers non-2xx statuses and malformed or incomplete bodies.
	ProtocolError FailureKind = "protocol_error"
)

// Error is returned by every Client implementation.
type Error struct {
	Kind     FailureKind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// StatusError captures a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// HTTPStatusCode returns the upstream status.
func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}

func networkError(provider string, err error) *Error {
	return &Error{Kind: NetworkError, Provider: provider, Err: err}
}

func protocolError(provider string, err error) *Error {
	return &Error{Kind: ProtocolError, Provider: provider, Err: err}
}

// isDecodeError reports whether err came from decoding a response body.
func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) ||
		errors.As(err, &typeErr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

// KindOf returns the failure kind carried by err. Errors that did not come
// from a Client are treated as network failures.
func KindOf(err error) FailureKind {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Kind
	}
	return NetworkError
}
