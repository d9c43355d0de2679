package relay

import (
	"agentchat-backend/internal/metrics"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedSleeps struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordedSleeps) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func newTestClient(sleeps *recordedSleeps, opts ...Option) *Client {
	return New(append([]Option{WithSleeper(sleeps.sleep)}, opts...)...)
}

func TestSendRetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n <= 2 {
			http.Error(w, "warming up", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[{"output":"hello there"}]`))
	}))
	defer srv.Close()

	sleeps := &recordedSleeps{}
	res := newTestClient(sleeps).Send(context.Background(), "hi", "sess", srv.URL)

	assert.True(t, res.OK())
	assert.Equal(t, "hello there", res.Text)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeps.delays)
}

func TestSendExhaustsRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	sleeps := &recordedSleeps{}
	res := newTestClient(sleeps).Send(context.Background(), "hi", "sess", srv.URL)

	assert.False(t, res.OK())
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
	require.NotNil(t, res.Failure)
	assert.Equal(t, FailureUnreachable, res.Failure.Kind)
	assert.Equal(t, 4, res.Failure.Attempts)
	assert.Equal(t, UnreachableMessage(srv.URL), res.ErrorText())
	assert.Contains(t, res.ErrorText(), srv.URL)
	assert.Contains(t, res.Failure.Detail, "down")
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, sleeps.delays)
}

func TestSendPostsJSONBody(t *testing.T) {
	var got request
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		contentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"response":"ok"}`))
	}))
	defer srv.Close()

	res := newTestClient(&recordedSleeps{}).Send(context.Background(), "Hello", "session-123", srv.URL)
	require.True(t, res.OK())
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, request{Message: "Hello", SessionID: "session-123"}, got)
}

func TestSendNormalizesResponses(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		text    string
		partial string
		kind    FailureKind
	}{
		{name: "output list", body: `[{"output":"hi"}]`, text: "hi"},
		{name: "output list extra items", body: `[{"output":"first","x":1},{"output":"second"}]`, text: "first"},
		{name: "response object", body: `{"response":"hi"}`, text: "hi"},
		{name: "response with error", body: `{"response":"hi","error":"oops"}`, text: "hi", partial: "oops"},
		{name: "response with non-string error", body: `{"response":"hi","error":{"code":1}}`, text: "hi"},
		{name: "empty response string", body: `{"response":""}`, text: ""},
		{name: "unknown object", body: `{"foo":1}`, kind: FailureMalformed},
		{name: "non-string output", body: `[{"output":42}]`, kind: FailureMalformed},
		{name: "empty list", body: `[]`, kind: FailureMalformed},
		{name: "null", body: `null`, kind: FailureMalformed},
		{name: "bare string", body: `"hi"`, kind: FailureMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			res := newTestClient(&recordedSleeps{}).Send(context.Background(), "m", "s", srv.URL)
			if tc.kind != "" {
				require.NotNil(t, res.Failure)
				assert.Equal(t, tc.kind, res.Failure.Kind)
				assert.Contains(t, res.ErrorText(), "unexpected response format")
				assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "malformed bodies are not retried")
				return
			}
			require.True(t, res.OK())
			assert.Equal(t, tc.text, res.Text)
			assert.Equal(t, tc.partial, res.PartialError)
			assert.Equal(t, tc.partial, res.ErrorText())
		})
	}
}

func TestSendRetriesInvalidJSON(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			_, _ = w.Write([]byte(`<html>gateway</html>`))
			return
		}
		_, _ = w.Write([]byte(`{"response":"recovered"}`))
	}))
	defer srv.Close()

	res := newTestClient(&recordedSleeps{}).Send(context.Background(), "m", "s", srv.URL)
	require.True(t, res.OK())
	assert.Equal(t, "recovered", res.Text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestSendRejectsOversizedBody(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			_, _ = w.Write([]byte(`{"response":"` + strings.Repeat("a", maxBodyBytes) + `"}`))
			return
		}
		_, _ = w.Write([]byte(`{"response":"short"}`))
	}))
	defer srv.Close()

	res := newTestClient(&recordedSleeps{}).Send(context.Background(), "m", "s", srv.URL)
	require.True(t, res.OK())
	assert.Equal(t, "short", res.Text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestSendTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	res := newTestClient(&recordedSleeps{}, WithMaxRetries(1)).Send(context.Background(), "m", "s", url)
	require.NotNil(t, res.Failure)
	assert.Equal(t, FailureUnreachable, res.Failure.Kind)
	assert.Equal(t, 2, res.Failure.Attempts)
}

func TestSendStopsWhenContextCancelled(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sleeper := func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	res := New(WithSleeper(sleeper)).Send(ctx, "m", "s", srv.URL)
	require.NotNil(t, res.Failure)
	assert.Equal(t, 1, res.Failure.Attempts)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Contains(t, res.Failure.Detail, "retry aborted")
}

func TestContextSleepHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, contextSleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, contextSleep(context.Background(), time.Millisecond))
}

func TestSendRecordsMetrics(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"response":"hi","error":"partial"}`))
	}))
	defer srv.Close()

	m := metrics.New()
	res := newTestClient(&recordedSleeps{}, WithMetrics(m)).Send(context.Background(), "m", "s", srv.URL)
	require.True(t, res.OK())

	expected := `
# HELP agentchat_relay_attempts_total Webhook relay HTTP attempts by outcome
# TYPE agentchat_relay_attempts_total counter
agentchat_relay_attempts_total{outcome="http_error"} 1
agentchat_relay_attempts_total{outcome="ok"} 1
# HELP agentchat_relay_results_total Webhook relay calls by final result
# TYPE agentchat_relay_results_total counter
agentchat_relay_results_total{result="partial"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), stringsReader(expected),
		"agentchat_relay_attempts_total", "agentchat_relay_results_total"))
}
