package specado

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/specado/specado/internal/circuitbreaker"
	"github.com/specado/specado/internal/httpclient"
	"github.com/specado/specado/internal/ratelimit"
)

// HTTPClient executes chat-completion requests against one provider,
// applying authentication, rate limiting, circuit breaking, TLS, and retry
// around the bare wire call. It wraps internal/httpclient, converting
// between the root package's ProviderSpec/ModelSpec and that package's
// cycle-safe Target/Config mirror types at the boundary.
type HTTPClient struct {
	inner    *httpclient.Client
	provider *ProviderSpec
}

// HTTPClientOption configures an HTTPClient at construction time.
type HTTPClientOption func(*httpclient.Config)

// WithTLSConfig overrides the default (Secure) TLS posture.
func WithTLSConfig(cfg httpclient.TLSConfig) HTTPClientOption {
	return func(c *httpclient.Config) { c.TLS = cfg }
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(policy httpclient.RetryPolicy) HTTPClientOption {
	return func(c *httpclient.Config) { c.RetryPolicy = policy }
}

// WithTimeoutSecs overrides the default 30s request timeout.
func WithTimeoutSecs(secs int) HTTPClientOption {
	return func(c *httpclient.Config) { c.TimeoutSecs = secs }
}

// WithAPIKey overrides environment-variable API key resolution with an
// explicit value.
func WithAPIKey(key string) HTTPClientOption {
	return func(c *httpclient.Config) { c.APIKey = key }
}

// NewHTTPClient builds an HTTPClient for provider, sharing rateLimiter and
// breakers across every model that provider serves. Either may be nil to
// get package defaults.
func NewHTTPClient(provider *ProviderSpec, rateLimiter *ratelimit.Limiter, breakers *circuitbreaker.Registry, opts ...HTTPClientOption) (*HTTPClient, error) {
	family := ""
	if len(provider.Models) > 0 {
		family = provider.Models[0].Family
	}

	cfg := httpclient.Config{
		ProviderName:    provider.Name,
		ProviderFamily:  family,
		APIKey:          resolveAPIKey(family),
		TLS:             httpclient.Secure(),
		RateLimiter:     rateLimiter,
		CircuitBreakers: breakers,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	inner, err := httpclient.New(cfg)
	if err != nil {
		return nil, err
	}
	return &HTTPClient{inner: inner, provider: provider}, nil
}

// resolveAPIKey follows the <FAMILY>_API_KEY convention, falling back to
// SPECADO_API_KEY, leaving an empty string (not an error) when neither is
// set — matching the teacher's permissive APIKeyEnv resolution.
func resolveAPIKey(family string) string {
	if family != "" {
		if key := os.Getenv(strings.ToUpper(family) + "_API_KEY"); key != "" {
			return key
		}
	}
	return os.Getenv("SPECADO_API_KEY")
}

func buildTarget(provider *ProviderSpec, endpoint EndpointConfig) httpclient.Target {
	headers := make(map[string]string, len(provider.DefaultHeaders)+len(endpoint.Headers))
	for k, v := range provider.DefaultHeaders {
		headers[k] = v
	}
	for k, v := range endpoint.Headers {
		headers[k] = v
	}
	return httpclient.Target{
		BaseURL:  provider.BaseURL,
		Method:   endpoint.Method,
		Path:     endpoint.Path,
		Protocol: endpoint.Protocol,
		Query:    endpoint.Query,
		Headers:  headers,
	}
}

// ExecuteChatCompletion sends a translated provider request body to model's
// synchronous chat-completion endpoint and returns the decoded JSON
// response.
func (c *HTTPClient) ExecuteChatCompletion(ctx context.Context, model *ModelSpec, body map[string]any) (map[string]any, error) {
	target := buildTarget(c.provider, model.Endpoints.ChatCompletion)
	return c.inner.Execute(ctx, target, body)
}

// ExecuteStreamingChatCompletion sends body to model's streaming endpoint
// and returns the still-open response stream for the caller to decode
// (e.g. as SSE).
func (c *HTTPClient) ExecuteStreamingChatCompletion(ctx context.Context, model *ModelSpec, body map[string]any) (io.ReadCloser, error) {
	target := buildTarget(c.provider, model.Endpoints.StreamingChatCompletion)
	return c.inner.ExecuteStream(ctx, target, body)
}

// Diagnose builds a Diagnostics report for an error returned by either
// Execute method, suitable for logging or surfacing to an operator.
func (c *HTTPClient) Diagnose(err error, model *ModelSpec, requestID string) *httpclient.Diagnostics {
	modelID := ""
	if model != nil {
		modelID = model.ID
	}
	return httpclient.Diagnose(err, httpclient.ErrorContext{
		Provider:  c.provider.Name,
		Model:     modelID,
		RequestID: requestID,
	}, nil)
}
