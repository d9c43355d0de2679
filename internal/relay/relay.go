// Package relay posts chat messages to an agent's webhook with bounded
// retries and folds the reply into a Result. Send never returns an error;
// failures come back as data.
package relay

import (
	"agentchat-backend/internal/metrics"
	"agentchat-backend/pkg/logger"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 1000 * time.Millisecond
	DefaultTimeout    = 15 * time.Second

	// MalformedMessage is returned when a 2xx body has an unknown shape.
	MalformedMessage = "Received an unexpected response format from the assistant."

	maxDiagnosticBytes = 4 << 10
	maxBodyBytes       = 1 << 20
)

type FailureKind string

const (
	// FailureUnreachable means every attempt failed (transport, status or JSON).
	FailureUnreachable FailureKind = "unreachable"
	// FailureMalformed means the backend answered with an unknown shape.
	FailureMalformed FailureKind = "malformed"
)

type Failure struct {
	Kind     FailureKind
	Message  string
	Attempts int
	// Detail carries the last underlying problem for logs. Never shown to users.
	Detail string
}

// Result is the outcome of one Send. Exactly one of Text or Failure is
// meaningful; PartialError may accompany Text.
type Result struct {
	Text         string
	PartialError string
	Failure      *Failure
}

// OK reports whether the backend produced usable text.
func (r Result) OK() bool { return r.Failure == nil }

// ErrorText is the failure message, else the partial error, else "".
func (r Result) ErrorText() string {
	if r.Failure != nil {
		return r.Failure.Message
	}
	return r.PartialError
}

// Sender is what the chat orchestrator needs from a relay.
type Sender interface {
	Send(ctx context.Context, content, sessionID, endpoint string) Result
}

var _ Sender = (*Client)(nil)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func contextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type Client struct {
	http       *http.Client
	maxRetries int
	retryDelay time.Duration
	sleep      Sleeper
	metrics    *metrics.Metrics
	log        logger.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option { return func(cl *Client) { cl.http = c } }

func WithMaxRetries(n int) Option {
	return func(cl *Client) {
		if n >= 0 {
			cl.maxRetries = n
		}
	}
}

func WithRetryDelay(d time.Duration) Option { return func(cl *Client) { cl.retryDelay = d } }

// WithSleeper replaces the backoff wait. Tests pass a no-op.
func WithSleeper(s Sleeper) Option { return func(cl *Client) { cl.sleep = s } }

func WithMetrics(m *metrics.Metrics) Option { return func(cl *Client) { cl.metrics = m } }

func WithLogger(l logger.Logger) Option { return func(cl *Client) { cl.log = l } }

func New(opts ...Option) *Client {
	c := &Client{
		http:       &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		sleep:      contextSleep,
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithFields(logger.ComponentField("relay"))
	return c
}

type request struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

// attemptError is a retryable failure of a single attempt.
type attemptError struct {
	outcome string
	detail  string
}

// UnreachableMessage is the text shown when retries are exhausted.
func UnreachableMessage(endpoint string) string {
	return fmt.Sprintf("Failed to communicate with the server for %s. Please try again later.", endpoint)
}

// Send posts content to endpoint, trying at most 1+maxRetries times with a
// linear backoff of retryDelay*(attempt+1) between tries.
func (c *Client) Send(ctx context.Context, content, sessionID, endpoint string) Result {
	start := time.Now()
	body, err := json.Marshal(request{Message: content, SessionID: sessionID})
	if err != nil {
		return c.finish(start, endpoint, Result{Failure: &Failure{
			Kind:    FailureUnreachable,
			Message: UnreachableMessage(endpoint),
			Detail:  err.Error(),
		}})
	}

	var last *attemptError
	attempt := 0
	for ; ; attempt++ {
		p, aerr := c.attempt(ctx, endpoint, body)
		if aerr == nil {
			switch p.kind {
			case payloadOutputList, payloadResponseObject:
				c.metrics.RelayAttempt(metrics.AttemptOK)
				return c.finish(start, endpoint, Result{Text: p.text, PartialError: p.partialError})
			default:
				// Not retried: the backend answered, just not in a shape we know.
				c.metrics.RelayAttempt(metrics.AttemptMalformed)
				c.log.Warn("unexpected webhook response format",
					logger.StringField("endpoint", endpoint),
					logger.IntField("attempt", attempt+1))
				return c.finish(start, endpoint, Result{Failure: &Failure{
					Kind:     FailureMalformed,
					Message:  MalformedMessage,
					Attempts: attempt + 1,
				}})
			}
		}

		last = aerr
		c.metrics.RelayAttempt(aerr.outcome)
		c.log.Warn("webhook attempt failed",
			logger.StringField("endpoint", endpoint),
			logger.IntField("attempt", attempt+1),
			logger.StringField("outcome", aerr.outcome),
			logger.StringField("detail", aerr.detail))

		if attempt >= c.maxRetries {
			break
		}
		if err := c.sleep(ctx, c.retryDelay*time.Duration(attempt+1)); err != nil {
			last = &attemptError{outcome: aerr.outcome, detail: "retry aborted: " + err.Error()}
			break
		}
	}

	c.log.Error("webhook unreachable after retries",
		logger.StringField("endpoint", endpoint),
		logger.IntField("attempts", attempt+1),
		logger.StringField("detail", last.detail))
	return c.finish(start, endpoint, Result{Failure: &Failure{
		Kind:     FailureUnreachable,
		Message:  UnreachableMessage(endpoint),
		Attempts: attempt + 1,
		Detail:   last.detail,
	}})
}

func (c *Client) attempt(ctx context.Context, endpoint string, body []byte) (payload, *attemptError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return payload{}, &attemptError{outcome: metrics.AttemptTransportError, detail: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return payload{}, &attemptError{outcome: metrics.AttemptTransportError, detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		diag, _ := io.ReadAll(io.LimitReader(resp.Body, maxDiagnosticBytes))
		return payload{}, &attemptError{
			outcome: metrics.AttemptHTTPError,
			detail:  fmt.Sprintf("server responded with %s. Details: %s", resp.Status, diag),
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return payload{}, &attemptError{outcome: metrics.AttemptTransportError, detail: err.Error()}
	}
	if len(data) > maxBodyBytes {
		return payload{}, &attemptError{
			outcome: metrics.AttemptInvalidJSON,
			detail:  fmt.Sprintf("response body exceeds %d bytes", maxBodyBytes),
		}
	}
	p, err := decodePayload(data)
	if err != nil {
		return payload{}, &attemptError{outcome: metrics.AttemptInvalidJSON, detail: err.Error()}
	}
	return p, nil
}

func (c *Client) finish(start time.Time, endpoint string, r Result) Result {
	label := metrics.ResultOK
	switch {
	case r.Failure != nil && r.Failure.Kind == FailureMalformed:
		label = metrics.ResultMalformed
	case r.Failure != nil:
		label = metrics.ResultUnreachable
	case r.PartialError != "":
		label = metrics.ResultPartial
	}
	c.metrics.RelayResult(label, time.Since(start))
	c.log.Debug("relay finished",
		logger.StringField("endpoint", endpoint),
		logger.StringField("result", label),
		logger.DurationField("elapsed", time.Since(start)))
	return r
}
