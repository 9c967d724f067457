// Package httpclient executes provider-bound HTTP requests: it resolves
// authentication, waits on the rate limiter, gates on the circuit breaker,
// dispatches over net/http, classifies failures, and retries according to
// a caller-supplied policy. It knows nothing about PromptSpec/ModelSpec —
// callers (the root specado package) translate those into a Target first.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/specado/specado/internal/circuitbreaker"
	"github.com/specado/specado/internal/providerauth"
	"github.com/specado/specado/internal/providers"
	"github.com/specado/specado/internal/ratelimit"
)

// Target is one concrete HTTP route to call, fully resolved from a
// ProviderSpec/ModelSpec pair at the call site.
type Target struct {
	BaseURL  string
	Method   string
	Path     string
	Protocol string // "http" or "sse"
	Query    map[string]string
	Headers  map[string]string
}

// URL builds the target's full request URL, including any query parameters.
func (t Target) URL() string {
	u := t.BaseURL + t.Path
	if len(t.Query) == 0 {
		return u
	}
	sep := "?"
	for k, v := range t.Query {
		u += fmt.Sprintf("%s%s=%s", sep, k, v)
		sep = "&"
	}
	return u
}

// Config configures a Client.
type Config struct {
	ProviderName    string
	ProviderFamily  string
	APIKey          string
	TimeoutSecs     int
	RetryPolicy     RetryPolicy
	TLS             TLSConfig
	RateLimiter     *ratelimit.Limiter
	CircuitBreakers *circuitbreaker.Registry
}

// RetryPolicy bounds how many attempts a failed request gets and how long
// to back off between them.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
}

// DefaultRetryPolicy matches the original implementation's default of 3
// attempts with exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		BackoffFactor:  2.0,
	}
}

// Client executes requests against one provider's endpoints, applying
// rate limiting, circuit breaking, and retry around the bare HTTP call.
type Client struct {
	httpClient *http.Client
	cfg        Config
}

// New creates a Client. If cfg.RateLimiter/CircuitBreakers are nil,
// defaults are constructed.
func New(cfg Config) (*Client, error) {
	transport, err := cfg.TLS.buildTransport()
	if err != nil {
		return nil, fmt.Errorf("httpclient: building TLS transport: %w", err)
	}

	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	if cfg.RateLimiter == nil {
		cfg.RateLimiter = ratelimit.New(ratelimit.DefaultConfig())
	}
	if cfg.CircuitBreakers == nil {
		cfg.CircuitBreakers = circuitbreaker.NewRegistry(circuitbreaker.DefaultConfig())
	}
	if cfg.RetryPolicy.MaxAttempts == 0 {
		cfg.RetryPolicy = DefaultRetryPolicy()
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		cfg:        cfg,
	}, nil
}

// Execute sends body (JSON-marshaled) to target and returns the decoded
// JSON response body. It applies rate-limiter wait, circuit-breaker gate,
// dispatch, classification, and retry, in that order, once per attempt.
func (c *Client) Execute(ctx context.Context, target Target, body any) (map[string]any, error) {
	resp, err := c.executeWithRetry(ctx, target, body, false)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: reading response body: %w", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("httpclient: decoding response JSON: %w", err)
	}
	return decoded, nil
}

// ExecuteStream sends body and returns the raw, still-open response body
// for the caller to decode incrementally (e.g. as SSE). Decoding the
// stream protocol itself is out of scope for this package.
func (c *Client) ExecuteStream(ctx context.Context, target Target, body any) (io.ReadCloser, error) {
	resp, err := c.executeWithRetry(ctx, target, body, true)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) executeWithRetry(ctx context.Context, target Target, body any, stream bool) (*http.Response, error) {
	key := target.Method + " " + target.Path
	breaker := c.cfg.CircuitBreakers.Get(c.cfg.CircuitBreakers.Key(key))

	policy := c.cfg.RetryPolicy
	backoff := policy.InitialBackoff

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := c.cfg.RateLimiter.WaitForPermit(c.cfg.RateLimiter.Key(c.cfg.ProviderName, target.Path)); err != nil {
			return nil, err
		}

		if allow, wait := breaker.Allow(); !allow {
			return nil, &CircuitOpenError{Endpoint: key, RetryAfter: wait}
		}

		resp, err := c.doOnce(ctx, target, body, stream)
		if err == nil {
			breaker.RecordSuccess()
			return resp, nil
		}

		lastErr = err

		classification := Classify(err)
		if classification.CountsAsBreakerFailure() {
			breaker.RecordFailure()
		}
		if statusErr, ok := asStatusError(err); ok && statusErr.StatusCode == http.StatusTooManyRequests {
			c.cfg.RateLimiter.Handle429(c.cfg.RateLimiter.Key(c.cfg.ProviderName, target.Path), time.Duration(statusErr.RetryAfterSecs)*time.Second)
		}
		if !classification.Retryable() || attempt == policy.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = time.Duration(float64(backoff) * policy.BackoffFactor)
		if backoff > policy.MaxBackoff {
			backoff = policy.MaxBackoff
		}
	}
	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, target Target, body any, stream bool) (*http.Response, error) {
	spanName := "httpclient.request"
	if stream {
		spanName = "httpclient.stream"
	}
	ctx, span := otel.Tracer("specado.httpclient").Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.url", target.URL())),
	)
	defer func() {
		if !stream {
			span.End()
		}
	}()

	jsonBody, err := json.Marshal(body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "marshal failed")
		return nil, fmt.Errorf("httpclient: marshaling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, target.Method, target.URL(), bytes.NewReader(jsonBody))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create request failed")
		return nil, fmt.Errorf("httpclient: building request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range target.Headers {
		req.Header.Set(k, v)
	}
	if reqID := providers.GetRequestID(ctx); reqID != "" {
		req.Header.Set("X-Request-ID", reqID)
	}
	headers := map[string]string{}
	providerauth.Apply(c.cfg.ProviderFamily, c.cfg.APIKey, headers)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, classifyTransportError(err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		raw, _ := io.ReadAll(resp.Body)
		se := &providers.StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
		se.ParseRetryAfter(resp.Header.Get("Retry-After"))
		span.RecordError(se)
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", resp.StatusCode))
		return nil, se
	}

	if stream {
		resp.Body = &spanCloser{ReadCloser: resp.Body, span: span}
	}
	span.SetStatus(codes.Ok, "")
	return resp, nil
}

type spanCloser struct {
	io.ReadCloser
	span trace.Span
}

func (sc *spanCloser) Close() error {
	err := sc.ReadCloser.Close()
	sc.span.End()
	return err
}

// CircuitOpenError is returned when the circuit breaker for an endpoint
// is open and not yet admitting attempts.
type CircuitOpenError struct {
	Endpoint   string
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open for %q, retry after %s", e.Endpoint, e.RetryAfter)
}

func asStatusError(err error) (*providers.StatusError, bool) {
	se, ok := err.(*providers.StatusError)
	return se, ok
}
