// Package specado is a portability layer for translating a uniform chat
// request into provider-specific wire formats (OpenAI, Anthropic, and
// OpenAI-compatible self-hosted servers), executing the request, and
// normalizing the response back into a uniform shape — recording every
// lossy transformation along the way.
package specado

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageRole is a chat message's role. It serializes as its lowercase
// wire form rather than Go's default enum-as-int/string behavior.
type MessageRole int

const (
	RoleSystem MessageRole = iota
	RoleUser
	RoleAssistant
)

func (r MessageRole) String() string {
	switch r {
	case RoleSystem:
		return "system"
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	default:
		return "unknown"
	}
}

func (r MessageRole) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *MessageRole) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "system":
		*r = RoleSystem
	case "user":
		*r = RoleUser
	case "assistant":
		*r = RoleAssistant
	default:
		return fmt.Errorf("specado: unknown message role %q", s)
	}
	return nil
}

// FinishReason is why a provider stopped generating. It serializes
// snake_case per the wire contract, not Go's default enum behavior.
type FinishReason int

const (
	FinishStop FinishReason = iota
	FinishLength
	FinishToolCall
	FinishEndConversation
	FinishOther
)

func (f FinishReason) String() string {
	switch f {
	case FinishStop:
		return "stop"
	case FinishLength:
		return "length"
	case FinishToolCall:
		return "tool_call"
	case FinishEndConversation:
		return "end_conversation"
	default:
		return "other"
	}
}

func (f FinishReason) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

func (f *FinishReason) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = ParseFinishReason(s)
	return nil
}

// ParseFinishReason maps a wire-form finish reason string to a
// FinishReason, defaulting to FinishOther for anything unrecognized.
func ParseFinishReason(s string) FinishReason {
	switch s {
	case "stop":
		return FinishStop
	case "length":
		return FinishLength
	case "tool_call":
		return FinishToolCall
	case "end_conversation":
		return FinishEndConversation
	default:
		return FinishOther
	}
}

// StrictMode is a plain string alias whose values match internal/lossiness's
// StrictMode; Translate converts it, so callers building a PromptSpec don't
// need to import the internal package directly.
type StrictMode = string

const (
	StrictModeStrict StrictMode = "Strict"
	StrictModeWarn   StrictMode = "Warn"
	StrictModeCoerce StrictMode = "Coerce"
)

// Message is one entry in a PromptSpec's ordered message sequence.
type Message struct {
	Role     MessageRole    `json:"role"`
	Content  string         `json:"content"`
	Name     string         `json:"name,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ToolDeclaration describes one callable tool offered to the model.
type ToolDeclaration struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

// ToolChoice selects how the model should use the declared tools.
type ToolChoice struct {
	Mode string `json:"mode"` // "auto", "none", "required", "specific"
	Name string `json:"name,omitempty"`
}

// ResponseFormat requests a structured response shape from the model.
type ResponseFormat struct {
	Type   string `json:"type"` // "text" or "json_object" (non-text)
	Schema any    `json:"schema,omitempty"`
}

// SamplingParams are the optional generation-sampling knobs a PromptSpec may set.
type SamplingParams struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	TopK             *int     `json:"top_k,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
}

// OutputLimits bound the size of a model's output and input.
type OutputLimits struct {
	MaxOutputTokens *int `json:"max_output_tokens,omitempty"`
	ReasoningTokens *int `json:"reasoning_tokens,omitempty"`
	MaxPromptTokens *int `json:"max_prompt_tokens,omitempty"`
}

// MediaInput carries optional non-text attachments.
type MediaInput struct {
	InputImages []ImageInput `json:"input_images,omitempty"`
	InputAudio  []AudioInput `json:"input_audio,omitempty"`
}

// ImageInput is one image attachment, referenced by URL or inline base64 data.
type ImageInput struct {
	URL       string `json:"url,omitempty"`
	Base64    string `json:"base64,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

// AudioInput is one audio attachment, referenced by URL or inline base64 data.
type AudioInput struct {
	URL       string `json:"url,omitempty"`
	Base64    string `json:"base64,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

// PromptSpec is the uniform input to translation: provider-agnostic chat
// request parameters.
type PromptSpec struct {
	ModelClass     string           `json:"model_class"`
	Messages       []Message        `json:"messages"`
	Tools          []ToolDeclaration `json:"tools,omitempty"`
	ToolChoice     *ToolChoice       `json:"tool_choice,omitempty"`
	ResponseFormat *ResponseFormat   `json:"response_format,omitempty"`
	Sampling       *SamplingParams   `json:"sampling,omitempty"`
	Limits         *OutputLimits     `json:"limits,omitempty"`
	Media          *MediaInput       `json:"media,omitempty"`
	StrictMode     StrictMode        `json:"strict_mode"`
}

// Endpoints describes the sync and streaming chat-completion routes for a model.
type Endpoints struct {
	ChatCompletion          EndpointConfig `json:"chat_completion"`
	StreamingChatCompletion EndpointConfig `json:"streaming_chat_completion"`
}

// EndpointConfig is one concrete HTTP route.
type EndpointConfig struct {
	Method   string            `json:"method"`
	Path     string            `json:"path"`
	Protocol string            `json:"protocol"` // "http" or "sse"
	Query    map[string]string `json:"query,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
}

// InputModes declares what shapes of input a model accepts.
type InputModes struct {
	Messages   bool `json:"messages"`
	SingleText bool `json:"single_text"`
	Images     bool `json:"images"`
}

// ToolingConfig declares a model's tool-calling capabilities.
type ToolingConfig struct {
	ToolsSupported            bool    `json:"tools_supported"`
	ParallelToolCallsDefault  bool    `json:"parallel_tool_calls_default"`
	CanDisableParallelCalls   bool    `json:"can_disable_parallel_tool_calls"`
	DisableSwitch             *string `json:"disable_switch,omitempty"`
}

// JsonOutputConfig declares how (if at all) a model supports structured JSON output.
type JsonOutputConfig struct {
	NativeParam bool   `json:"native_param"`
	Strategy    string `json:"strategy"` // "native", "system_prompt", "tools", "none"
}

// ConstraintLimits bounds the size of certain request components.
type ConstraintLimits struct {
	MaxToolSchemaBytes   int `json:"max_tool_schema_bytes"`
	MaxSystemPromptBytes int `json:"max_system_prompt_bytes"`
}

// Constraints are structural rules a translated request must obey.
type Constraints struct {
	SystemPromptLocation         string             `json:"system_prompt_location"` // "first", "top_level", "message_role", "none"
	ForbidUnknownTopLevelFields  bool               `json:"forbid_unknown_top_level_fields"`
	MutuallyExclusive            [][]string         `json:"mutually_exclusive,omitempty"`
	ResolutionPreferences        []string           `json:"resolution_preferences,omitempty"`
	Limits                       ConstraintLimits   `json:"limits"`
}

// Mappings declares how PromptSpec fields map onto this model's wire format.
type Mappings struct {
	Paths map[string]string `json:"paths,omitempty"` // source JSONPath -> target JSONPath
	Flags map[string]bool   `json:"flags,omitempty"`
}

// SyncNormalization declares how to read a uniform response out of a
// synchronous provider response body.
type SyncNormalization struct {
	ContentPath      string            `json:"content_path"`
	FinishReasonPath string            `json:"finish_reason_path"`
	FinishReasonMap  map[string]string `json:"finish_reason_map,omitempty"`
}

// EventSelector routes a streaming event to a handler based on a type field.
type EventSelector struct {
	TypePath string              `json:"type_path"`
	Routes   map[string]string   `json:"routes,omitempty"`
}

// StreamNormalization declares how to read a uniform response out of a
// streamed provider response.
type StreamNormalization struct {
	Protocol      string        `json:"protocol"` // "sse"
	EventSelector EventSelector `json:"event_selector"`
}

// ResponseNormalization bundles both sync and streaming normalization rules.
type ResponseNormalization struct {
	Sync   SyncNormalization   `json:"sync"`
	Stream StreamNormalization `json:"stream"`
}

// ModelSpec is one model entry in a ProviderSpec.
type ModelSpec struct {
	ID                    string                `json:"id"`
	Aliases               []string              `json:"aliases,omitempty"`
	Family                string                `json:"family"`
	Endpoints             Endpoints             `json:"endpoints"`
	InputModes            InputModes            `json:"input_modes"`
	Tooling               ToolingConfig         `json:"tooling"`
	JSONOutput            JsonOutputConfig      `json:"json_output"`
	Parameters            map[string]ParameterRange `json:"parameters,omitempty"`
	Constraints           Constraints           `json:"constraints"`
	Mappings              Mappings              `json:"mappings"`
	ResponseNormalization ResponseNormalization `json:"response_normalization"`
}

// ParameterRange is a JSON-Schema-like numeric range declaration for one
// sampling or limit parameter.
type ParameterRange struct {
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Default *float64 `json:"default,omitempty"`
	PathKey string   `json:"path_key,omitempty"` // provider-side wire key, if not the PromptSpec name
}

// ProviderSpec is the declarative description of one provider.
type ProviderSpec struct {
	Name           string            `json:"name"`
	BaseURL        string            `json:"base_url"`
	DefaultHeaders map[string]string `json:"default_headers,omitempty"`
	Models         []ModelSpec       `json:"models"`
}

// ResolveModel finds the ModelSpec whose id or aliases match modelID,
// using first-match-in-declaration-order resolution (spec.md §3 invariant:
// either ids are unique, or the first match wins).
func (ps *ProviderSpec) ResolveModel(modelID string) (*ModelSpec, bool) {
	for i := range ps.Models {
		m := &ps.Models[i]
		if m.ID == modelID {
			return m, true
		}
		for _, alias := range m.Aliases {
			if alias == modelID {
				return m, true
			}
		}
	}
	return nil, false
}

// TranslationMetadata records bookkeeping about one translate() call.
type TranslationMetadata struct {
	Provider   string     `json:"provider"`
	ModelID    string     `json:"model_id"`
	Timestamp  time.Time  `json:"timestamp"`
	DurationMS int64      `json:"duration_ms"`
	StrictMode StrictMode `json:"strict_mode"`
}

// TranslationResult is the output of a successful Translate call.
type TranslationResult struct {
	ProviderRequestJSON any                   `json:"provider_request_json"`
	Lossiness           LossinessReport       `json:"lossiness"`
	Metadata            *TranslationMetadata  `json:"metadata,omitempty"`
}

// LossinessItem mirrors internal/lossiness.LossinessItem in the public
// surface, so callers of Translate don't need to import an internal
// package to inspect a TranslationResult.
type LossinessItem struct {
	Code     string `json:"code"`
	Path     string `json:"path"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Before   any    `json:"before,omitempty"`
	After    any    `json:"after,omitempty"`
}

// LossinessSummary tallies a LossinessReport's items by severity and code.
type LossinessSummary struct {
	TotalItems int            `json:"total_items"`
	BySeverity map[string]int `json:"by_severity"`
	ByCode     map[string]int `json:"by_code"`
}

// LossinessReport is the public-surface mirror of
// internal/lossiness.LossinessReport, returned as part of a TranslationResult.
type LossinessReport struct {
	Items       []LossinessItem  `json:"items"`
	MaxSeverity string           `json:"max_severity"`
	Summary     LossinessSummary `json:"summary"`
}

// ToolCall is one tool invocation a model requested.
type ToolCall struct {
	Name      string `json:"name"`
	Arguments any    `json:"arguments"`
	ID        string `json:"id,omitempty"`
}

// UniformResponse is a provider response normalized into a provider-agnostic shape.
type UniformResponse struct {
	Model        string       `json:"model"`
	Content      string       `json:"content"`
	FinishReason FinishReason `json:"finish_reason"`
	ToolCalls    []ToolCall   `json:"tool_calls,omitempty"`
	RawMetadata  any          `json:"raw_metadata,omitempty"`
}
