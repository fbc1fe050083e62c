package gateway

import (
	"errors"
	"fmt"
)

// TransportError wraps a failure to reach the platform at all (DNS, refused
// connection, reset mid-request). Always retryable.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServerError is a non-2xx response from the platform. 5xx responses are
// retryable; 4xx responses are not — resending the same payload cannot
// succeed and risks duplicate side effects on the server.
type ServerError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: server returned %d: %s", e.Op, e.StatusCode, e.Body)
}

// IsRetryable reports whether a gateway failure permits another attempt:
// transport failures and 5xx responses do, 4xx responses do not.
func IsRetryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var se *ServerError
	if errors.As(err, &se) {
		return se.StatusCode >= 500
	}
	return false
}
