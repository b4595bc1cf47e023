package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	custom_context "github.com/yourorg/card-payments/internal/context"
	"github.com/yourorg/card-payments/internal/gateway/circuitbreaker"
	"github.com/yourorg/card-payments/internal/sdkerror"
)

// transport is shared by the REST and GraphQL clients.
type transport struct {
	httpClient *http.Client
	retry      custom_context.RetryPolicy
	breaker    *circuitbreaker.CircuitBreaker
	metrics    *Metrics
	log        *zap.Logger
}

func newTransport(cfg custom_context.CoreConfig, httpClient *http.Client, opts options) *transport {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeouts.RequestTimeout}
	}
	breaker := opts.breaker
	if breaker == nil {
		breaker = circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
			FailureThreshold:         cfg.CircuitBreaker.FailureThreshold,
			ResetTimeout:             cfg.CircuitBreaker.ResetTimeout,
			HalfOpenSuccessThreshold: cfg.CircuitBreaker.HalfOpenSuccessThreshold,
		})
	}
	metrics := opts.metrics
	if metrics == nil {
		metrics, _ = NewMetrics(nil)
	}
	log := opts.log
	if log == nil {
		log = zap.NewNop()
	}
	retry := cfg.Retry
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 1
	}
	return &transport{httpClient: httpClient, retry: retry, breaker: breaker, metrics: metrics, log: log}
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// do executes the request built by newReq, retrying on 429/5xx and on network
// errors up to the retry policy. newReq is called once per attempt so the body
// can be re-read; callers keep idempotency headers stable across attempts.
func (t *transport) do(ctx context.Context, endpoint, domain string, newReq func(context.Context) (*http.Request, error)) (rawResponse, error) {
	if !t.breaker.AllowRequest(endpoint) {
		t.metrics.RequestDuration.WithLabelValues(endpoint, "circuit_open").Observe(0)
		return rawResponse{}, sdkerror.New(CodeServiceUnavailable, domain, fmt.Sprintf("circuit open for endpoint %s", endpoint))
	}

	start := time.Now()
	var (
		status   int
		header   http.Header
		body     []byte
		lastErr  error
		attempts int
	)
retryLoop:
	for attempt := 1; attempt <= t.retry.MaxAttempts; attempt++ {
		attempts = attempt
		if attempt > 1 {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				break retryLoop
			case <-time.After(t.retry.Delay):
			}
		}

		req, err := newReq(ctx)
		if err != nil {
			t.breaker.RecordFailure(endpoint)
			return rawResponse{}, sdkerror.Wrap(CodeInvalidURLRequest, domain, "failed to create http request", err)
		}

		resp, err := t.httpClient.Do(req)
		if err != nil {
			lastErr = err
			status, header, body = 0, nil, nil
			t.log.Warn("remote call failed", zap.String("endpoint", endpoint), zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		body, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		status, header = resp.StatusCode, resp.Header
		if err != nil {
			lastErr = err
			continue
		}
		lastErr = nil
		if !isRetryableStatus(status) {
			break
		}
		t.log.Warn("remote call returned retryable status", zap.String("endpoint", endpoint), zap.Int("attempt", attempt), zap.Int("status", status))
	}

	elapsed := time.Since(start).Seconds()
	switch {
	case lastErr != nil:
		t.breaker.RecordFailure(endpoint)
		t.metrics.RequestDuration.WithLabelValues(endpoint, "error").Observe(elapsed)
		return rawResponse{}, sdkerror.Wrap(CodeNoResponse, domain,
			fmt.Sprintf("no response from %s after %d attempt(s)", endpoint, attempts), lastErr)
	case isRetryableStatus(status):
		t.breaker.RecordFailure(endpoint)
		t.metrics.RequestDuration.WithLabelValues(endpoint, "server_error").Observe(elapsed)
	default:
		t.breaker.RecordSuccess(endpoint)
		t.metrics.RequestDuration.WithLabelValues(endpoint, outcomeLabel(status)).Observe(elapsed)
	}
	return rawResponse{status: status, header: header, body: body}, nil
}

type rawResponse struct {
	status int
	header http.Header
	body   []byte
}

func (r rawResponse) ok() bool {
	return r.status >= 200 && r.status < 300
}

// debugID is the correlation id the API returns for support requests.
func (r rawResponse) debugID() string {
	if r.header == nil {
		return ""
	}
	return r.header.Get("Paypal-Debug-Id")
}

func outcomeLabel(status int) string {
	if status >= 200 && status < 300 {
		return "ok"
	}
	return "client_error"
}

type options struct {
	breaker *circuitbreaker.CircuitBreaker
	metrics *Metrics
	log     *zap.Logger
}

// Option customizes a client.
type Option func(*options)

// WithCircuitBreaker shares a breaker between clients.
func WithCircuitBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(o *options) { o.breaker = cb }
}

// WithMetrics sets the collectors the client observes into.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogger sets the client's logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

func collectOptions(opts []Option) options {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
