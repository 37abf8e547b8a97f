package middleware

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// maxLoggedBody caps how much of a request or response body is logged.
const maxLoggedBody = 4 << 10

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

// RoundTrip implements http.RoundTripper.
func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// HeaderTransport sets fixed headers on every outgoing request. Headers already
// present on the request are left alone.
type HeaderTransport struct {
	Base    http.RoundTripper
	Headers http.Header
}

// RoundTrip implements http.RoundTripper.
func (t *HeaderTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if len(t.Headers) > 0 {
		r = r.Clone(r.Context())
		for k, vs := range t.Headers {
			if r.Header.Get(k) != "" {
				continue
			}
			for _, v := range vs {
				r.Header.Add(k, v)
			}
		}
	}
	return base(t.Base).RoundTrip(r)
}

// LoggingTransport logs every request and response passing through it. At
// debug level bodies are logged too, truncated to a few kilobytes.
type LoggingTransport struct {
	Base   http.RoundTripper
	Logger *zap.Logger
}

// RoundTrip implements http.RoundTripper.
func (t *LoggingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	logger := LoggerFromContext(r.Context(), t.Logger)
	debug := logger.Core().Enabled(zapcore.DebugLevel)

	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("url", r.URL.Redacted()),
	}
	if debug && r.Body != nil && r.GetBody != nil {
		if body, err := r.GetBody(); err == nil {
			fields = append(fields, zap.ByteString("request_body", readPrefix(body)))
			_ = body.Close()
		}
	}
	logger.Info("http request", fields...)

	start := time.Now()
	resp, err := base(t.Base).RoundTrip(r)
	elapsed := time.Since(start)
	if err != nil {
		logger.Warn("http request failed",
			zap.String("method", r.Method),
			zap.String("url", r.URL.Redacted()),
			zap.Duration("duration", elapsed),
			zap.Error(err))
		return nil, err
	}

	fields = []zap.Field{
		zap.String("method", r.Method),
		zap.String("url", r.URL.Redacted()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", elapsed),
	}
	if debug && resp.Body != nil {
		prefix := readPrefix(resp.Body)
		fields = append(fields, zap.ByteString("response_body", prefix))
		resp.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(prefix), resp.Body), resp.Body}
	}
	logger.Info("http response", fields...)
	return resp, nil
}

func readPrefix(r io.Reader) []byte {
	b, _ := io.ReadAll(io.LimitReader(r, maxLoggedBody))
	return b
}

func base(rt http.RoundTripper) http.RoundTripper {
	if rt == nil {
		return http.DefaultTransport
	}
	return rt
}
