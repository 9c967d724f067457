// Package normalize converts a raw provider HTTP response body into a
// provider-agnostic UniformResponse, driven by the JSONPath rules declared
// in a model's ResponseNormalization config.
package normalize

import (
	"strings"

	"github.com/specado/specado/internal/jsonpath"
)

// SyncConfig mirrors specado.SyncNormalization without importing the root
// package, keeping this package import-cycle-free; callers adapt their
// own type into this one at the call site.
type SyncConfig struct {
	ContentPath      string
	FinishReasonPath string
	FinishReasonMap  map[string]string
}

// ToolCall mirrors specado.ToolCall.
type ToolCall struct {
	Name      string
	Arguments any
	ID        string
}

// Result mirrors specado.UniformResponse, minus the Model field (the
// caller already knows model_id and fills it in).
type Result struct {
	Content      string
	FinishReason string // one of "stop", "length", "tool_call", "end_conversation", "other"
	ToolCalls    []ToolCall
	RawMetadata  any
}

// Normalize extracts content, finish reason, and tool calls from a parsed
// provider response body (the usual map[string]any/[]any/scalar tree),
// driven by cfg.
func Normalize(response any, cfg SyncConfig) (Result, error) {
	content, err := extractContent(response, cfg)
	if err != nil {
		return Result{}, err
	}
	finishReason, err := extractFinishReason(response, cfg)
	if err != nil {
		return Result{}, err
	}
	toolCalls := extractToolCalls(response)

	return Result{
		Content:      content,
		FinishReason: finishReason,
		ToolCalls:    toolCalls,
		RawMetadata:  response,
	}, nil
}

// extractContent special-cases Anthropic's content-block array (a
// top-level "content" array of {type, text} blocks) ahead of generic
// JSONPath extraction, mirroring the original normalizer's behavior of
// detecting this shape from the configured content_path text.
func extractContent(response any, cfg SyncConfig) (string, error) {
	if strings.Contains(cfg.ContentPath, "$.content") && strings.Contains(cfg.ContentPath, "text") {
		if m, ok := response.(map[string]any); ok {
			if arr, ok := m["content"].([]any); ok {
				var parts []string
				for _, block := range arr {
					bm, ok := block.(map[string]any)
					if !ok {
						continue
					}
					if t, _ := bm["type"].(string); t == "text" {
						if text, ok := bm["text"].(string); ok {
							parts = append(parts, text)
						}
					}
				}
				if len(parts) > 0 {
					return strings.Join(parts, ""), nil
				}
			}
		}
	}

	path, err := jsonpath.Parse(cfg.ContentPath)
	if err != nil {
		return "", err
	}
	results, err := path.Execute(response)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", nil
	}

	switch v := results[0].(type) {
	case string:
		return v, nil
	case nil:
		return "", nil
	case []any:
		var parts []string
		for _, elem := range v {
			if m, ok := elem.(map[string]any); ok {
				if text, ok := m["text"].(string); ok {
					parts = append(parts, text)
					continue
				}
			}
			if s, ok := elem.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ""), nil
	default:
		return "", nil
	}
}

func extractFinishReason(response any, cfg SyncConfig) (string, error) {
	path, err := jsonpath.Parse(cfg.FinishReasonPath)
	if err != nil {
		return "", err
	}
	results, err := path.Execute(response)
	if err != nil {
		return "", err
	}
	if len(results) > 0 {
		if reasonStr, ok := results[0].(string); ok {
			if mapped, ok := cfg.FinishReasonMap[reasonStr]; ok {
				return parseFinishReason(mapped), nil
			}
			return parseFinishReason(reasonStr), nil
		}
	}
	return "stop", nil
}

func parseFinishReason(reason string) string {
	switch strings.ToLower(reason) {
	case "stop", "end_turn":
		return "stop"
	case "length", "max_tokens":
		return "length"
	case "tool_call", "tool_calls", "tool_use":
		return "tool_call"
	case "end_conversation", "end":
		return "end_conversation"
	default:
		return "other"
	}
}

// extractToolCalls tries the OpenAI shape first, then the Anthropic shape.
func extractToolCalls(response any) []ToolCall {
	if calls := tryExtractOpenAITools(response); calls != nil {
		return calls
	}
	return tryExtractAnthropicTools(response)
}

func tryExtractOpenAITools(response any) []ToolCall {
	m, ok := response.(map[string]any)
	if !ok {
		return nil
	}
	choices, ok := m["choices"].([]any)
	if !ok || len(choices) == 0 {
		return nil
	}
	choice, ok := choices[0].(map[string]any)
	if !ok {
		return nil
	}
	message, ok := choice["message"].(map[string]any)
	if !ok {
		return nil
	}
	toolsRaw, ok := message["tool_calls"].([]any)
	if !ok {
		return nil
	}

	var out []ToolCall
	for _, raw := range toolsRaw {
		tool, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		fn, ok := tool["function"].(map[string]any)
		if !ok {
			continue
		}
		name, ok := fn["name"].(string)
		if !ok {
			continue
		}
		id, _ := tool["id"].(string)
		out = append(out, ToolCall{
			Name:      name,
			Arguments: fn["arguments"],
			ID:        id,
		})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func tryExtractAnthropicTools(response any) []ToolCall {
	m, ok := response.(map[string]any)
	if !ok {
		return nil
	}
	blocks, ok := m["content"].([]any)
	if !ok {
		return nil
	}

	var out []ToolCall
	for _, raw := range blocks {
		block, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if t, _ := block["type"].(string); t != "tool_use" {
			continue
		}
		name, ok := block["name"].(string)
		if !ok {
			continue
		}
		id, _ := block["id"].(string)
		out = append(out, ToolCall{
			Name:      name,
			Arguments: block["input"],
			ID:        id,
		})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
