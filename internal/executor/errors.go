package executor

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	URL        string
	Body       []byte
	Header     http.Header
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("request to %s failed with status %d", e.URL, e.StatusCode)
}

// TransportError is returned when no response was received at all.
type TransportError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying network error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// AsStatusError extracts a StatusError from an error chain.
func AsStatusError(err error) (*StatusError, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr, true
	}
	return nil, false
}

// IsTransportError reports whether err means the server was never reached.
func IsTransportError(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

// IsUnauthorized reports whether err carries a 401 response.
func IsUnauthorized(err error) bool {
	statusErr, ok := AsStatusError(err)
	return ok && statusErr.StatusCode == http.StatusUnauthorized
}
