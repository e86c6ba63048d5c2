package api

import (
	"errors"
	"fmt"
)

// ErrResourceNotFound is the explicit mapping of HTTP 404 for lookup-style
// calls (e.g. resolving the app folder).
var ErrResourceNotFound = errors.New("resource not found")

// TransportError indicates the request never reached a server or the
// connection failed mid-flight.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UnexpectedStatusError indicates the server responded with an HTTP status
// outside the expected success set for the call.
type UnexpectedStatusError struct {
	StatusCode int
	GraphCode  string
	Message    string
}

func (e *UnexpectedStatusError) Error() string {
	if e.GraphCode != "" {
		return fmt.Sprintf("unexpected status %d (%s: %s)", e.StatusCode, e.GraphCode, e.Message)
	}
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// MalformedResponseError indicates a success-class response whose body failed
// to parse as JSON or lacked a required field.
type MalformedResponseError struct {
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed response: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed response: %s", e.Reason)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}
