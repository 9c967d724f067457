package specadoapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func providerSpecJSON(baseURL string) map[string]any {
	return map[string]any{
		"name":     "openai",
		"base_url": baseURL,
		"models": []map[string]any{
			{
				"id":     "gpt-5",
				"family": "chat",
				"endpoints": map[string]any{
					"chat_completion": map[string]any{
						"method": "POST",
						"path":   "/v1/chat/completions",
					},
				},
				"tooling": map[string]any{
					"tools_supported": true,
				},
				"parameters": map[string]any{
					"temperature": map[string]any{"min": 0, "max": 2},
				},
				"constraints": map[string]any{
					"system_prompt_location": "first",
				},
			},
		},
	}
}

func TestHandleTranslateSucceeds(t *testing.T) {
	srv, err := NewServer(DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = srv.Close() }()

	reqBody, err := json.Marshal(map[string]any{
		"prompt_spec": map[string]any{
			"model_class": "Chat",
			"messages":    []map[string]any{{"role": "user", "content": "hi"}},
		},
		"provider_spec": providerSpecJSON("http://example.invalid"),
		"model_id":      "gpt-5",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/translate", bytes.NewReader(reqBody))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var result map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Contains(t, result, "provider_request_json")
}

func TestHandleTranslateRejectsMissingProvider(t *testing.T) {
	srv, err := NewServer(DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = srv.Close() }()

	reqBody, err := json.Marshal(map[string]any{
		"prompt_spec": map[string]any{
			"model_class": "Chat",
			"messages":    []map[string]any{{"role": "user", "content": "hi"}},
		},
		"model_id": "gpt-5",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/translate", bytes.NewReader(reqBody))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleExecuteRoundTripsToUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","choices":[]}`))
	}))
	defer upstream.Close()

	srv, err := NewServer(DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = srv.Close() }()

	reqBody, err := json.Marshal(map[string]any{
		"prompt_spec": map[string]any{
			"model_class": "Chat",
			"messages":    []map[string]any{{"role": "user", "content": "hi"}},
		},
		"provider_spec": providerSpecJSON(upstream.URL),
		"model_id":      "gpt-5",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/execute", bytes.NewReader(reqBody))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var result map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Contains(t, result, "response")
}

func TestHandleHealthz(t *testing.T) {
	srv, err := NewServer(DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = srv.Close() }()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
