package netclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	ErrInvalidAttempts = errors.New("netclient: max attempts must be at least 1")
	ErrInvalidRequest  = errors.New("netclient: invalid request")
)

// NetworkError is a transport failure before a complete response was read.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Timeout() {
		return fmt.Sprintf("netclient: %s %s timed out: %v", e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("netclient: %s %s unreachable: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Timeout() bool {
	var netErr net.Error
	return errors.Is(e.Err, context.DeadlineExceeded) || (errors.As(e.Err, &netErr) && netErr.Timeout())
}

// HTTPError is a response with a non-2xx status. Body holds a truncated snippet.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("netclient: %s %s returned %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("netclient: %s %s returned %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// ClientError reports a 4xx status other than 408 and 429.
func (e *HTTPError) ClientError() bool {
	if e.StatusCode == http.StatusRequestTimeout || e.StatusCode == http.StatusTooManyRequests {
		return false
	}
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// ParseError is a 2xx response whose body could not be decoded.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("netclient: decode response from %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func IsNetworkUnreachable(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}

func IsHTTPError(err error) bool {
	var target *HTTPError
	return errors.As(err, &target)
}

func IsParseError(err error) bool {
	var target *ParseError
	return errors.As(err, &target)
}

// StatusCode extracts the HTTP status from err, or 0 when err carries none.
func StatusCode(err error) int {
	var target *HTTPError
	if errors.As(err, &target) {
		return target.StatusCode
	}
	return 0
}
