// Package providerauth injects the authentication headers a provider
// family expects onto an outgoing request, dispatched by the
// ProviderSpec's declared family name.
package providerauth

import "fmt"

// Injector adds a provider family's authentication headers to headers,
// given the API key resolved for that provider.
type Injector func(apiKey string, headers map[string]string)

var injectors = map[string]Injector{
	"openai": func(apiKey string, headers map[string]string) {
		headers["Authorization"] = "Bearer " + apiKey
	},
	"anthropic": func(apiKey string, headers map[string]string) {
		headers["x-api-key"] = apiKey
		headers["anthropic-version"] = "2023-06-01"
	},
	"vllm": func(apiKey string, headers map[string]string) {
		if apiKey != "" {
			headers["Authorization"] = "Bearer " + apiKey
		}
	},
}

// Apply adds family's authentication headers for apiKey into headers. An
// unrecognized family falls back to a bearer token, since every
// OpenAI-compatible self-hosted server (vLLM, TGI, etc.) accepts one even
// when it doesn't enforce it.
func Apply(family, apiKey string, headers map[string]string) {
	if inject, ok := injectors[family]; ok {
		inject(apiKey, headers)
		return
	}
	if apiKey != "" {
		headers["Authorization"] = "Bearer " + apiKey
	}
}

// Register adds or overrides the Injector for family, for callers
// extending Specado with a provider family not built in.
func Register(family string, inject Injector) {
	injectors[family] = inject
}

// ErrMissingAPIKey is returned by callers that resolve API keys from the
// environment when a required key is absent.
type ErrMissingAPIKey struct {
	Family string
	EnvVar string
}

func (e *ErrMissingAPIKey) Error() string {
	return fmt.Sprintf("no API key configured for provider family %q (expected env var %q)", e.Family, e.EnvVar)
}
