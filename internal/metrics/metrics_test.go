package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.RelayAttempt(AttemptHTTPError)
	m.RelayAttempt(AttemptHTTPError)
	m.RelayAttempt(AttemptOK)
	m.RelayResult(ResultOK, 2*time.Second)
	m.Send(SendOK)
	m.Send(SendRelayError)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.relayAttempts.WithLabelValues(AttemptHTTPError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.relayAttempts.WithLabelValues(AttemptOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.relayResults.WithLabelValues(ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sends.WithLabelValues(SendRelayError)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.relayDuration))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RelayAttempt(AttemptOK)
		m.RelayResult(ResultOK, time.Second)
		m.Send(SendOK)
		m.HTTPResponse(200, time.Millisecond)
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMiddlewareAndHandler(t *testing.T) {
	m := New()
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	for _, path := range []string{"/a", "/b", "/missing"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpResponses.WithLabelValues("200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpResponses.WithLabelValues("404")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `agentchat_http_requests_total{code="404"} 1`), body)
}
