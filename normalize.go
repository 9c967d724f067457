package specado

import "github.com/specado/specado/internal/normalize"

// Normalize extracts a UniformResponse out of a raw provider response body
// (already JSON-decoded into Go values), using model's response
// normalization rules to locate content, finish reason, and tool calls.
func Normalize(response any, model *ModelSpec) (*UniformResponse, error) {
	cfg := normalize.SyncConfig{
		ContentPath:      model.ResponseNormalization.Sync.ContentPath,
		FinishReasonPath: model.ResponseNormalization.Sync.FinishReasonPath,
		FinishReasonMap:  model.ResponseNormalization.Sync.FinishReasonMap,
	}

	result, err := normalize.Normalize(response, cfg)
	if err != nil {
		return nil, err
	}

	toolCalls := make([]ToolCall, len(result.ToolCalls))
	for i, tc := range result.ToolCalls {
		toolCalls[i] = ToolCall{Name: tc.Name, Arguments: tc.Arguments, ID: tc.ID}
	}

	return &UniformResponse{
		Model:        model.ID,
		Content:      result.Content,
		FinishReason: ParseFinishReason(result.FinishReason),
		ToolCalls:    toolCalls,
		RawMetadata:  result.RawMetadata,
	}, nil
}
