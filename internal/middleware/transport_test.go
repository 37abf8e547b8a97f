package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestHeaderTransportKeepsExistingHeaders(t *testing.T) {
	var got http.Header
	rt := &HeaderTransport{
		Base: RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			got = r.Header.Clone()
			return &http.Response{StatusCode: http.StatusNoContent, Body: http.NoBody, Request: r}, nil
		}),
		Headers: http.Header{
			"User-Agent": {"adsdk/test"},
			"X-Api-Key":  {"secret"},
		},
	}

	req := httptest.NewRequest(http.MethodGet, "http://example.com/health", nil)
	req.Header.Set("User-Agent", "custom")
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	assert.Equal(t, "custom", got.Get("User-Agent"))
	assert.Equal(t, "secret", got.Get("X-Api-Key"))
	assert.Empty(t, req.Header.Get("X-Api-Key"), "caller request must not be mutated")
}

func TestLoggingTransportReplaysBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write([]byte("echo:" + string(body)))
	}))
	defer srv.Close()

	core, logs := observer.New(zapcore.DebugLevel)
	client := &http.Client{Transport: &LoggingTransport{Logger: zap.New(core)}}

	resp, err := client.Post(srv.URL+"/v1/decisions?api_key=x", "application/json", strings.NewReader(`{"a":1}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, `echo:{"a":1}`, string(body))

	reqLogs := logs.FilterMessage("http request").All()
	require.Len(t, reqLogs, 1)
	assert.Equal(t, `{"a":1}`, reqLogs[0].ContextMap()["request_body"])
	assert.Equal(t, "POST", reqLogs[0].ContextMap()["method"])

	respLogs := logs.FilterMessage("http response").All()
	require.Len(t, respLogs, 1)
	assert.EqualValues(t, http.StatusOK, respLogs[0].ContextMap()["status"])
	assert.Equal(t, `echo:{"a":1}`, respLogs[0].ContextMap()["response_body"])
}

func TestLoggingTransportInfoOmitsBodies(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	rt := &LoggingTransport{
		Logger: zap.New(core),
		Base: RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("ok")), Request: r}, nil
		}),
	}

	resp, err := rt.RoundTrip(httptest.NewRequest(http.MethodGet, "http://example.com/health", nil))
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok", string(b))

	for _, entry := range logs.All() {
		assert.NotContains(t, entry.ContextMap(), "response_body")
		assert.NotContains(t, entry.ContextMap(), "request_body")
	}
}

func TestLoggingTransportLogsFailures(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	rt := &LoggingTransport{
		Logger: zap.New(core),
		Base: RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return nil, io.ErrUnexpectedEOF
		}),
	}

	_, err := rt.RoundTrip(httptest.NewRequest(http.MethodGet, "http://example.com/track", nil))
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, 1, logs.FilterMessage("http request failed").Len())
}
