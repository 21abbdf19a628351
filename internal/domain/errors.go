package domain

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// NetworkError is a connection, DNS, or transport timeout failure.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("%s: network: %v", e.Op, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response.
type HTTPError struct {
	Op     string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Body)
}

// Retryable reports whether the status is worth retrying.
func (e *HTTPError) Retryable() bool {
	switch e.Status {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}

// ParseError is a malformed or unexpected response body.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("%s: parse: %v", e.Op, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// ErrorMessage turns a failure into the short, human-readable cause shown in
// the analysis panel. It never includes response bodies or stack traces.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "analysis timed out"
	}
	if errors.Is(err, context.Canceled) {
		return "analysis cancelled"
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return fmt.Sprintf("server returned status %d", httpErr.Status)
	}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return "malformed analysis response"
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		cause := netErr.Err
		var urlErr *url.Error
		if errors.As(cause, &urlErr) {
			cause = urlErr.Err
		}
		return "network error: " + cause.Error()
	}
	return err.Error()
}
