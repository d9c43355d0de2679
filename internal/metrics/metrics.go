// Package metrics exposes Prometheus collectors for webhook relay calls,
// chat sends and HTTP responses. Every method is safe on a nil *Metrics so
// callers can run without instrumentation.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "agentchat"

// Relay attempt outcomes.
const (
	AttemptOK             = "ok"
	AttemptHTTPError      = "http_error"
	AttemptTransportError = "transport_error"
	AttemptInvalidJSON    = "invalid_json"
	AttemptMalformed      = "malformed"
)

// Relay result labels.
const (
	ResultOK          = "ok"
	ResultPartial     = "partial"
	ResultUnreachable = "unreachable"
	ResultMalformed   = "malformed"
)

// Send outcomes.
const (
	SendOK                = "ok"
	SendRelayError        = "relay_error"
	SendConversationError = "conversation_error"
	SendConfigError       = "config_error"
	SendFailure           = "failure"
)

type Metrics struct {
	reg *prometheus.Registry

	relayAttempts *prometheus.CounterVec
	relayResults  *prometheus.CounterVec
	relayDuration prometheus.Histogram
	sends         *prometheus.CounterVec
	httpResponses *prometheus.CounterVec
	httpDuration  prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		relayAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_attempts_total",
			Help:      "Webhook relay HTTP attempts by outcome",
		}, []string{"outcome"}),
		relayResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_results_total",
			Help:      "Webhook relay calls by final result",
		}, []string{"result"}),
		relayDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "relay_duration_seconds",
			Help:      "Duration of a relay call including retries",
			Buckets:   []float64{0.1, 0.3, 0.5, 1.0, 3.0, 5.0, 7.0, 10.0, 20.0, 60.0},
		}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_total",
			Help:      "Chat sends by outcome",
		}, []string{"outcome"}),
		httpResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP responses by status code",
		}, []string{"code"}),
		httpDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.3, 0.5, 0.7, 1.0, 3.0, 5.0, 7.0, 10.0},
		}),
	}
	m.reg.MustRegister(m.relayAttempts, m.relayResults, m.relayDuration, m.sends, m.httpResponses, m.httpDuration)
	return m
}

// Registry is exposed for tests and for registering extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

func (m *Metrics) RelayAttempt(outcome string) {
	if m == nil {
		return
	}
	m.relayAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RelayResult(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.relayResults.WithLabelValues(result).Inc()
	m.relayDuration.Observe(d.Seconds())
}

func (m *Metrics) Send(outcome string) {
	if m == nil {
		return
	}
	m.sends.WithLabelValues(outcome).Inc()
}

func (m *Metrics) HTTPResponse(code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpResponses.WithLabelValues(strconv.Itoa(code)).Inc()
	m.httpDuration.Observe(d.Seconds())
}

// Handler serves the private registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Middleware counts responses by status code.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPResponse(status, time.Since(start))
	})
}
