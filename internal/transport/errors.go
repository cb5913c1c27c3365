package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// User-facing messages for failures that never produced an HTTP response.
// The classification mirrors what a user can act on: the service being
// unreachable, a deployment misconfiguration, or an unknown transient fault.
const (
	msgNoConnection     = "Cannot connect to server. Please check your connection and that the server is running."
	msgServerConfig     = "Server configuration error. Please contact support."
	msgConnectionFailed = "Connection failed. Please try again."
)

// APIError is returned when the service responds with a non-2xx status.
// Message carries the server's structured {error} body when present, or a
// generic "Server error: <status>" fallback.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

// ConnectionError is returned when a request fails before any HTTP response
// is received. Message is safe to show to the user; Cause retains the
// underlying error.
type ConnectionError struct {
	Message string
	Cause   error
}

func (e *ConnectionError) Error() string { return e.Message }

func (e *ConnectionError) Unwrap() error { return e.Cause }

// errorBody is the structured error shape the service uses on failures.
type errorBody struct {
	Error string `json:"error"`
}

// messageFromBody extracts the server's {error} message from a failure body,
// falling back to a generic status line when the body is not parseable JSON
// or carries no message.
func messageFromBody(status int, body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Error != "" {
		return eb.Error
	}
	return fmt.Sprintf("Server error: %d", status)
}

// classifyNetworkError maps a low-level request failure to a user-facing
// ConnectionError. Context cancellation is passed through untouched so
// callers can distinguish a superseded request from a genuine fault.
func classifyNetworkError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	msg := msgConnectionFailed
	switch {
	case strings.Contains(err.Error(), "CORS"):
		msg = msgServerConfig
	case isConnectFailure(err):
		msg = msgNoConnection
	}
	return &ConnectionError{Message: msg, Cause: err}
}

// isConnectFailure reports whether the error indicates the service could not
// be reached at all (refused connection, DNS failure, dead network).
func isConnectFailure(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
