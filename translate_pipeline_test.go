package specado

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

func basicPrompt() *PromptSpec {
	return &PromptSpec{
		ModelClass: "Chat",
		Messages: []Message{
			{Role: RoleUser, Content: "hello"},
		},
		StrictMode: StrictModeWarn,
	}
}

func basicProvider() *ProviderSpec {
	return &ProviderSpec{
		Name: "openai",
		Models: []ModelSpec{
			{
				ID:     "gpt-5",
				Family: "chat",
				Tooling: ToolingConfig{
					ToolsSupported: true,
				},
				JSONOutput: JsonOutputConfig{
					NativeParam: true,
				},
				Parameters: map[string]ParameterRange{
					"temperature": {Min: floatPtr(0), Max: floatPtr(2)},
					"max_tokens":  {Max: floatPtr(4096)},
				},
				Constraints: Constraints{
					SystemPromptLocation:       "first",
					ForbidUnknownTopLevelFields: true,
				},
			},
		},
	}
}

func TestTranslateBasicRequest(t *testing.T) {
	result, err := Translate(basicPrompt(), basicProvider(), "gpt-5")
	require.NoError(t, err)

	req, ok := result.ProviderRequestJSON.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "gpt-5", req["model"])
	assert.Equal(t, "openai", result.Metadata.Provider)
}

func TestTranslateUnknownModelFails(t *testing.T) {
	_, err := Translate(basicPrompt(), basicProvider(), "does-not-exist")
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
}

func TestTranslateClampsSamplingToRange(t *testing.T) {
	prompt := basicPrompt()
	prompt.Sampling = &SamplingParams{Temperature: floatPtr(5)}

	result, err := Translate(prompt, basicProvider(), "gpt-5")
	require.NoError(t, err)

	req := result.ProviderRequestJSON.(map[string]any)
	assert.Equal(t, 2.0, req["temperature"])
	assert.NotEmpty(t, result.Lossiness.Items)
}

func TestTranslateDropsUnsupportedTools(t *testing.T) {
	provider := basicProvider()
	provider.Models[0].Tooling.ToolsSupported = false

	prompt := basicPrompt()
	prompt.Tools = []ToolDeclaration{{Name: "get_weather", Description: "gets weather"}}

	// Dropping the tools is an Unsupported item, which is Critical and fails
	// Stage 7 even in the default Warn mode.
	result, err := Translate(prompt, provider, "gpt-5")
	require.Error(t, err)
	assert.Nil(t, result)

	var tErr *TranslationError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, "strictness_policy", tErr.Stage)
	assert.Contains(t, tErr.Message, "Critical")
}

func TestTranslateEmulatesResponseFormatViaSystemPrompt(t *testing.T) {
	provider := basicProvider()
	provider.Models[0].JSONOutput = JsonOutputConfig{NativeParam: false, Strategy: "system_prompt"}

	prompt := basicPrompt()
	prompt.ResponseFormat = &ResponseFormat{Type: "json_object"}

	result, err := Translate(prompt, provider, "gpt-5")
	require.NoError(t, err)

	req := result.ProviderRequestJSON.(map[string]any)
	messages := req["messages"].([]any)
	first := messages[0].(map[string]any)
	assert.Equal(t, "system", first["role"])
	assert.Contains(t, first["content"], "JSON")
}

func TestTranslateLimitsMaxOutputTokensClampedAndRenamed(t *testing.T) {
	prompt := basicPrompt()
	prompt.Limits = &OutputLimits{MaxOutputTokens: intPtr(100000)}

	result, err := Translate(prompt, basicProvider(), "gpt-5")
	require.NoError(t, err)

	req := result.ProviderRequestJSON.(map[string]any)
	assert.Equal(t, 4096, req["max_tokens"])
}

func TestTranslateResolvesConflictByPreference(t *testing.T) {
	provider := basicProvider()
	provider.Models[0].Constraints.MutuallyExclusive = [][]string{{"temperature", "top_p"}}
	provider.Models[0].Constraints.ResolutionPreferences = []string{"top_p", "temperature"}
	provider.Models[0].Parameters["top_p"] = ParameterRange{Min: floatPtr(0), Max: floatPtr(1)}

	prompt := basicPrompt()
	prompt.Sampling = &SamplingParams{Temperature: floatPtr(0.5), TopP: floatPtr(0.9)}

	result, err := Translate(prompt, provider, "gpt-5")
	require.NoError(t, err)

	req := result.ProviderRequestJSON.(map[string]any)
	_, hasTemp := req["temperature"]
	assert.False(t, hasTemp)
	assert.Equal(t, 0.9, req["top_p"])
}

func TestTranslateStrictModeFailsOnError(t *testing.T) {
	prompt := basicPrompt()
	prompt.StrictMode = StrictModeStrict
	prompt.Messages = nil

	_, err := Translate(prompt, basicProvider(), "gpt-5")
	require.Error(t, err)
}

func TestTranslateMappingRelocatesField(t *testing.T) {
	provider := basicProvider()
	provider.Models[0].Mappings = Mappings{
		Paths: map[string]string{
			"$.sampling.temperature": "$.generation_config.temperature",
		},
	}

	prompt := basicPrompt()
	prompt.Sampling = &SamplingParams{Temperature: floatPtr(0.7)}

	result, err := Translate(prompt, provider, "gpt-5")
	require.NoError(t, err)

	req := result.ProviderRequestJSON.(map[string]any)
	_, hasTopLevelTemp := req["temperature"]
	assert.False(t, hasTopLevelTemp)

	genConfig, ok := req["generation_config"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0.7, genConfig["temperature"])
}
