package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// NetworkError means the request never produced an HTTP response:
// connection refused, DNS failure, timeout, reset.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// StatusError is a non-2xx response from the remote API.
type StatusError struct {
	Fields     map[string]string
	Code       string
	Message    string
	StatusCode int
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server error (%d): %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// IsTransient reports whether retrying err later may succeed: network
// failures, timeouts, 5xx, 408 and 429.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode >= 500:
			return true
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests:
			return true
		}
	}
	return false
}

// IsUnauthorized reports a 401: the credentials, not the operation, are at fault.
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

// IsNotFound reports a 404.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsConflict reports a 409.
func IsConflict(err error) bool {
	return hasStatus(err, http.StatusConflict)
}

// IsPermanent reports a failure no retry will fix: any 4xx except 401, 408
// and 429.
func IsPermanent(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	code := statusErr.StatusCode
	return code >= 400 && code < 500 && !IsTransient(err) && code != http.StatusUnauthorized
}

func hasStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}
