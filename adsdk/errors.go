package adsdk

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrConfiguration matches every *ConfigurationError.
	ErrConfiguration = errors.New("adsdk: configuration error")
	// ErrNetwork matches every *NetworkError.
	ErrNetwork = errors.New("adsdk: network error")
)

// ConfigurationError reports a missing or invalid required field, either in
// the client configuration or in a request being built.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "adsdk: invalid configuration: " + e.Message
	}
	return fmt.Sprintf("adsdk: invalid configuration: %s: %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrConfiguration) true.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func configError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NetworkError wraps a failed HTTP exchange. StatusCode is set only when the
// service answered with an unexpected status; it is zero for transport
// failures, timeouts, cancellation and encode or decode errors. Err is always
// set.
type NetworkError struct {
	Op         string // "request_ads", "track", "health"
	URL        string
	StatusCode int
	// Body holds the start of a non-2xx response body, for diagnostics.
	Body string
	Err  error
}

func (e *NetworkError) Error() string {
	msg := "adsdk: " + e.Op
	if e.URL != "" {
		msg += " " + e.URL
	}
	switch {
	case e.Err != nil:
		msg += ": " + e.Err.Error()
	case e.StatusCode != 0:
		msg += fmt.Sprintf(": http %d", e.StatusCode)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// statusError builds the error for a response with an unexpected status. The
// response body is read for diagnostics.
func statusError(op, url string, resp *http.Response) *NetworkError {
	return &NetworkError{
		Op:         op,
		URL:        url,
		StatusCode: resp.StatusCode,
		Body:       readSnippet(resp.Body),
		Err:        fmt.Errorf("unexpected status: http %d", resp.StatusCode),
	}
}

// Unwrap returns the underlying cause.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrNetwork) true.
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// HasStatus reports whether the service answered with an HTTP status.
func (e *NetworkError) HasStatus() bool {
	return e.StatusCode != 0
}

// Temporary reports whether the failure is likely transient: a 429, a 5xx, a
// timeout or a transport-level failure.
func (e *NetworkError) Temporary() bool {
	if e.StatusCode == 0 {
		if errors.Is(e.Err, context.Canceled) {
			return false
		}
		var netErr net.Error
		return errors.Is(e.Err, context.DeadlineExceeded) || errors.As(e.Err, &netErr)
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
