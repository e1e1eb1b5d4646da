package api

import (
	"errors"
	"fmt"
)

// ErrTimeout is matched (errors.Is) by every error caused by the per-request
// timeout expiring, whether while waiting for headers or mid-stream.
var ErrTimeout = errors.New("request timed out")

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d, body: %s", e.StatusCode, e.Body)
}

// TransportError covers failures to complete the exchange: DNS, refused or
// reset connections, TLS, and reads that fail mid-stream.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type timeoutError struct {
	op    string
	after string
	err   error
}

func (e *timeoutError) Error() string {
	return fmt.Sprintf("%s: %s after %s", e.op, ErrTimeout, e.after)
}

func (e *timeoutError) Unwrap() []error {
	return []error{ErrTimeout, e.err}
}
