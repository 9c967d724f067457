package providerauth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyOpenAI(t *testing.T) {
	headers := map[string]string{}
	Apply("openai", "sk-test", headers)
	assert.Equal(t, "Bearer sk-test", headers["Authorization"])
}

func TestApplyAnthropic(t *testing.T) {
	headers := map[string]string{}
	Apply("anthropic", "sk-ant-test", headers)
	assert.Equal(t, "sk-ant-test", headers["x-api-key"])
	assert.Equal(t, "2023-06-01", headers["anthropic-version"])
}

func TestApplyUnknownFamilyFallsBackToBearer(t *testing.T) {
	headers := map[string]string{}
	Apply("some-self-hosted-server", "local-key", headers)
	assert.Equal(t, "Bearer local-key", headers["Authorization"])
}

func TestApplyVLLMWithoutKeySetsNoHeader(t *testing.T) {
	headers := map[string]string{}
	Apply("vllm", "", headers)
	_, ok := headers["Authorization"]
	assert.False(t, ok)
}

func TestRegisterCustomFamily(t *testing.T) {
	Register("custom-provider", func(apiKey string, headers map[string]string) {
		headers["X-Custom-Key"] = apiKey
	})
	headers := map[string]string{}
	Apply("custom-provider", "k", headers)
	assert.Equal(t, "k", headers["X-Custom-Key"])
}

func TestErrMissingAPIKeyMessage(t *testing.T) {
	err := &ErrMissingAPIKey{Family: "openai", EnvVar: "OPENAI_API_KEY"}
	assert.Contains(t, err.Error(), "openai")
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}
