package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// TransportError wraps failures where no usable response reached us at all:
// connection refused, DNS failure, timeout mid-flight.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError is a non-2xx response the server did return.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("remote returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("remote returned %d", e.Status)
}

// Retryable reports whether repeating the same request could succeed.
// Server-side failures are retryable, client-side rejections are not.
func (e *APIError) Retryable() bool {
	return e.Status >= 500
}

// AuthRequired reports whether the server rejected the request for lack of a
// valid session.
func (e *APIError) AuthRequired() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// IsTransport reports whether err is a transport-level failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsRetryable reports whether err is worth retrying: either transport-level
// or a server-side (5xx) rejection.
func IsRetryable(err error) bool {
	if IsTransport(err) {
		return true
	}
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Retryable()
	}
	return false
}
