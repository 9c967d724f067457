package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specado/specado/internal/circuitbreaker"
	"github.com/specado/specado/internal/ratelimit"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(Config{
		ProviderName:    "openai",
		ProviderFamily:  "openai",
		APIKey:          "sk-test",
		TLS:             Secure(),
		RateLimiter:     ratelimit.New(ratelimit.DefaultConfig()),
		CircuitBreakers: circuitbreaker.NewRegistry(circuitbreaker.DefaultConfig()),
		RetryPolicy:     RetryPolicy{MaxAttempts: 2, InitialBackoff: 0, MaxBackoff: 0, BackoffFactor: 1},
	})
	require.NoError(t, err)
	return c
}

func TestExecuteSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer ts.Close()

	client := newTestClient(t, ts.URL)
	target := Target{BaseURL: ts.URL, Method: http.MethodPost, Path: "/v1/chat/completions"}

	resp, err := client.Execute(context.Background(), target, map[string]any{"model": "gpt-4"})
	require.NoError(t, err)
	assert.Equal(t, true, resp["ok"])
}

func TestExecuteRetriesOnServerErrorThenSucceeds(t *testing.T) {
	var attempts int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer ts.Close()

	client := newTestClient(t, ts.URL)
	target := Target{BaseURL: ts.URL, Method: http.MethodPost, Path: "/v1/chat/completions"}

	resp, err := client.Execute(context.Background(), target, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, true, resp["ok"])
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestExecuteDoesNotRetryOnClientError(t *testing.T) {
	var attempts int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad request"}`))
	}))
	defer ts.Close()

	client := newTestClient(t, ts.URL)
	target := Target{BaseURL: ts.URL, Method: http.MethodPost, Path: "/v1/chat/completions"}

	_, err := client.Execute(context.Background(), target, map[string]any{})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestExecuteStreamReturnsOpenBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("data: chunk\n\n"))
	}))
	defer ts.Close()

	client := newTestClient(t, ts.URL)
	target := Target{BaseURL: ts.URL, Method: http.MethodPost, Path: "/v1/chat/completions", Protocol: "sse"}

	body, err := client.ExecuteStream(context.Background(), target, map[string]any{})
	require.NoError(t, err)
	defer func() { _ = body.Close() }()

	buf := make([]byte, 32)
	n, _ := body.Read(buf)
	assert.Contains(t, string(buf[:n]), "chunk")
}

func TestTargetURLIncludesQuery(t *testing.T) {
	target := Target{BaseURL: "https://api.example.com", Path: "/v1/x", Query: map[string]string{"a": "1"}}
	assert.Equal(t, "https://api.example.com/v1/x?a=1", target.URL())
}
