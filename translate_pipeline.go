package specado

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/specado/specado/internal/jsonpath"
	"github.com/specado/specado/internal/lossiness"
)

// Translate converts prompt into provider's wire format for the model
// identified by modelID, applying provider constraints, parameter ranges,
// and mappings, and returns both the provider request body and a full
// lossiness report describing every approximation made along the way.
//
// modelID may be a ModelSpec.ID or any of its Aliases. An unrecognized
// model, or a Stage 2 validation Error under StrictModeStrict, is
// returned as a *ValidationError. A Stage 7 strictness-gate trip (a
// Critical-severity item at any strict mode, or an Error-severity item
// under StrictModeStrict) is returned as a *TranslationError.
func Translate(prompt *PromptSpec, provider *ProviderSpec, modelID string) (*TranslationResult, error) {
	start := time.Now()

	// Stage 1 — model resolution.
	model, ok := provider.ResolveModel(modelID)
	if !ok {
		ids := make([]string, len(provider.Models))
		for i, m := range provider.Models {
			ids[i] = m.ID
		}
		return nil, &ValidationError{
			FieldPath: "model_id",
			Message:   fmt.Sprintf("model %q not found in provider %q", modelID, provider.Name),
			Expected:  fmt.Sprintf("one of: %v", ids),
			Actual:    modelID,
			Severity:  "Error",
		}
	}

	strictMode := prompt.StrictMode
	if strictMode == "" {
		strictMode = StrictModeWarn
	}

	// Stage 2 — pre-validation.
	issues := preValidate(prompt, model)
	if strictMode == StrictModeStrict && hasFatalError(issues) {
		for _, issue := range issues {
			if issue.Severity == "Error" {
				return nil, issue.asError()
			}
		}
	}

	tracker := lossiness.NewTracker(lossinessStrictMode(strictMode))
	known := map[string]bool{"model": true, "messages": true}

	// Stage 3 — base request construction.
	request := buildBaseRequest(prompt, modelID)
	if model.Constraints.SystemPromptLocation == "top_level" {
		liftSystemPrompt(request, known)
	}

	// Stage 4 — feature application.
	applyTools(request, prompt, model, tracker, known)
	applySampling(request, prompt, model, tracker, known)
	applyLimits(request, prompt, model, tracker, known)
	applyResponseFormat(request, prompt, model, tracker, known)
	applyMedia(request, prompt, model, tracker, known)

	// Stage 5 — JSONPath mapping.
	if err := applyMappings(request, prompt, model, tracker, known); err != nil {
		return nil, &TranslationError{Stage: "mapping", Message: "failed to apply provider mappings", Cause: err}
	}

	// Stage 6 — conflict resolution + forbid_unknown.
	resolveConflicts(request, model, tracker, known)
	if model.Constraints.ForbidUnknownTopLevelFields {
		dropUnknownFields(request, known, tracker)
	}

	// Stage 7 — strictness policy.
	maxSeverity := tracker.MaxSeverity()
	if maxSeverity == lossiness.SeverityCritical || (maxSeverity == lossiness.SeverityError && strictMode == StrictModeStrict) {
		return nil, &TranslationError{
			Stage:   "strictness_policy",
			Message: fmt.Sprintf("translation lossiness severity %s trips strict mode %s", maxSeverity, strictMode),
		}
	}

	report := tracker.BuildReport()

	// Stage 8 — metadata.
	metadata := &TranslationMetadata{
		Provider:   provider.Name,
		ModelID:    modelID,
		Timestamp:  start,
		DurationMS: time.Since(start).Milliseconds(),
		StrictMode: strictMode,
	}

	return &TranslationResult{
		ProviderRequestJSON: request,
		Lossiness:           toPublicReport(report),
		Metadata:            metadata,
	}, nil
}

func lossinessStrictMode(s StrictMode) lossiness.StrictMode {
	switch s {
	case StrictModeStrict:
		return lossiness.StrictModeStrict
	case StrictModeCoerce:
		return lossiness.StrictModeCoerce
	default:
		return lossiness.StrictModeWarn
	}
}

func toPublicReport(r lossiness.LossinessReport) LossinessReport {
	items := make([]LossinessItem, len(r.Items))
	for i, it := range r.Items {
		items[i] = LossinessItem{
			Code: string(it.Code), Path: it.Path, Message: it.Message,
			Severity: it.Severity.String(), Before: it.Before, After: it.After,
		}
	}
	return LossinessReport{
		Items:       items,
		MaxSeverity: r.MaxSeverity.String(),
		Summary: LossinessSummary{
			TotalItems: r.Summary.TotalItems,
			BySeverity: r.Summary.BySeverity,
			ByCode:     r.Summary.ByCode,
		},
	}
}

func buildBaseRequest(prompt *PromptSpec, modelID string) map[string]any {
	messages := make([]any, len(prompt.Messages))
	for i, m := range prompt.Messages {
		messages[i] = map[string]any{
			"role":    m.Role.String(),
			"content": m.Content,
		}
	}
	return map[string]any{
		"model":    modelID,
		"messages": messages,
	}
}

// liftSystemPrompt moves a leading system message out of the messages
// array into a top-level "system" field, for providers whose wire format
// carries system content outside the message list entirely.
func liftSystemPrompt(request map[string]any, known map[string]bool) {
	messages, _ := request["messages"].([]any)
	if len(messages) == 0 {
		return
	}
	first, ok := messages[0].(map[string]any)
	if !ok || first["role"] != "system" {
		return
	}
	request["system"] = first["content"]
	known["system"] = true
	request["messages"] = messages[1:]
}

func applyTools(request map[string]any, prompt *PromptSpec, model *ModelSpec, tracker *lossiness.Tracker, known map[string]bool) {
	if len(prompt.Tools) == 0 {
		return
	}
	if !model.Tooling.ToolsSupported {
		tracker.AddUnsupported("tools", "Provider does not support tools", prompt.Tools)
		return
	}
	request["tools"] = prompt.Tools
	known["tools"] = true
	if prompt.ToolChoice != nil {
		request["tool_choice"] = prompt.ToolChoice
		known["tool_choice"] = true
	}
}

func applySampling(request map[string]any, prompt *PromptSpec, model *ModelSpec, tracker *lossiness.Tracker, known map[string]bool) {
	if prompt.Sampling == nil {
		return
	}
	apply := func(name string, value *float64) {
		if value == nil {
			return
		}
		final := clampToRange(name, *value, model, tracker)
		request[name] = final
		known[name] = true
	}
	apply("temperature", prompt.Sampling.Temperature)
	apply("top_p", prompt.Sampling.TopP)
	apply("frequency_penalty", prompt.Sampling.FrequencyPenalty)
	apply("presence_penalty", prompt.Sampling.PresencePenalty)
	if prompt.Sampling.TopK != nil {
		request["top_k"] = *prompt.Sampling.TopK
		known["top_k"] = true
	}
}

func clampToRange(name string, value float64, model *ModelSpec, tracker *lossiness.Tracker) float64 {
	rng, ok := model.Parameters[name]
	if !ok {
		return value
	}
	clamped := value
	if rng.Min != nil && clamped < *rng.Min {
		clamped = *rng.Min
	}
	if rng.Max != nil && clamped > *rng.Max {
		clamped = *rng.Max
	}
	if clamped != value {
		tracker.AddClamped(name, fmt.Sprintf("%s clamped to provider range", name), value, clamped)
	}
	return clamped
}

func applyLimits(request map[string]any, prompt *PromptSpec, model *ModelSpec, tracker *lossiness.Tracker, known map[string]bool) {
	if prompt.Limits == nil || prompt.Limits.MaxOutputTokens == nil {
		return
	}
	// Always written to its conventional default key, even when
	// model.Mappings.Paths also declares a relocation for this field:
	// Stage 5 (applyMappings) relocates whatever Stage 4 wrote here, so
	// special-casing the mapped target here would just race it.
	key := defaultRequestKey("$.limits.max_output_tokens")
	value := float64(*prompt.Limits.MaxOutputTokens)
	if rng, ok := model.Parameters[key]; ok && rng.Max != nil && value > *rng.Max {
		tracker.AddClamped(key, fmt.Sprintf("%s clamped to provider maximum", key), value, *rng.Max)
		value = *rng.Max
	}
	request[key] = int(value)
	known[key] = true
}

func applyResponseFormat(request map[string]any, prompt *PromptSpec, model *ModelSpec, tracker *lossiness.Tracker, known map[string]bool) {
	if prompt.ResponseFormat == nil {
		return
	}
	switch {
	case model.JSONOutput.NativeParam:
		request["response_format"] = prompt.ResponseFormat
		known["response_format"] = true
	case model.JSONOutput.Strategy == "system_prompt":
		injectJSONInstruction(request)
		tracker.AddEmulated("response_format", "JSON mode emulated via system prompt", prompt.ResponseFormat)
	default:
		tracker.AddUnsupported("response_format", "Provider has no JSON output strategy", prompt.ResponseFormat)
	}
}

const jsonModeInstruction = "Respond with a single valid JSON object matching the requested schema. Do not include any text outside the JSON object."

func injectJSONInstruction(request map[string]any) {
	messages, _ := request["messages"].([]any)
	for _, m := range messages {
		msg, ok := m.(map[string]any)
		if !ok {
			continue
		}
		if role, _ := msg["role"].(string); role == "system" {
			if content, _ := msg["content"].(string); content != "" {
				msg["content"] = content + "\n\n" + jsonModeInstruction
			} else {
				msg["content"] = jsonModeInstruction
			}
			return
		}
	}
	request["messages"] = append([]any{map[string]any{"role": "system", "content": jsonModeInstruction}}, messages...)
}

func applyMedia(request map[string]any, prompt *PromptSpec, model *ModelSpec, tracker *lossiness.Tracker, known map[string]bool) {
	if prompt.Media == nil || len(prompt.Media.InputImages) == 0 {
		return
	}
	if !model.InputModes.Images {
		tracker.AddUnsupported("media.input_images", "Provider does not accept image input", prompt.Media.InputImages)
		return
	}
	blocks := make([]any, len(prompt.Media.InputImages))
	for i, img := range prompt.Media.InputImages {
		blocks[i] = map[string]any{
			"type":       "image",
			"url":        img.URL,
			"base64":     img.Base64,
			"media_type": img.MediaType,
		}
	}
	request["images"] = blocks
	known["images"] = true
}

// applyMappings implements Stage 5: for every (source, target) mapping
// declared on the model, read the value Stage 4 already wrote at source's
// default request location — falling back to a virtual uniform view of the
// raw prompt only for fields Stage 4 never touched — delete it from its
// default location, and write it at target; emit Relocate if source/target
// differ by more than the final key.
//
// Reading from the Stage 4 request state (rather than the raw prompt)
// matters whenever the source field was clamped by applySampling or
// applyLimits: relocating the raw, unclamped value here would silently
// undo that clamp in the final provider request while the lossiness
// report still described the clamped value.
func applyMappings(request map[string]any, prompt *PromptSpec, model *ModelSpec, tracker *lossiness.Tracker, known map[string]bool) error {
	if len(model.Mappings.Paths) == 0 {
		return nil
	}

	uniformView, err := promptToUniformView(prompt)
	if err != nil {
		return err
	}

	for source, target := range model.Mappings.Paths {
		defaultKey := defaultRequestKey(source)

		value, found := request[defaultKey]
		if !found {
			srcPath, err := jsonpath.Parse(source)
			if err != nil {
				return fmt.Errorf("invalid mapping source path %q: %w", source, err)
			}
			value, found, err = srcPath.ExecuteOne(uniformView)
			if err != nil {
				return fmt.Errorf("evaluating mapping source path %q: %w", source, err)
			}
		}
		if !found {
			continue
		}

		delete(request, defaultKey)

		targetPath, err := jsonpath.Parse(target)
		if err != nil {
			return fmt.Errorf("invalid mapping target path %q: %w", target, err)
		}
		if err := targetPath.Set(request, value); err != nil {
			tracker.AddMapFallback(source, fmt.Sprintf("could not set mapped target %q, using top-level fallback", target), value, nil)
			request[topLevelKeyOf(target)] = value
			known[topLevelKeyOf(target)] = true
		} else {
			root := strings.TrimPrefix(target, "$.")
			if i := strings.IndexAny(root, ".["); i >= 0 {
				root = root[:i]
			}
			known[root] = true
		}

		if pathDirectory(source) != pathDirectory(target) {
			tracker.AddRelocated(source, target, value)
		}
	}

	for flagPath, transform := range model.Mappings.Flags {
		_ = transform
		known[topLevelKeyOf(flagPath)] = true
	}

	return nil
}

func promptToUniformView(prompt *PromptSpec) (map[string]any, error) {
	data, err := json.Marshal(prompt)
	if err != nil {
		return nil, err
	}
	var view map[string]any
	if err := json.Unmarshal(data, &view); err != nil {
		return nil, err
	}
	return view, nil
}

// topLevelKeyOf returns the final dot-separated segment of a simple
// JSONPath expression, stripping the leading "$." root.
func topLevelKeyOf(path string) string {
	trimmed := strings.TrimPrefix(path, "$.")
	trimmed = strings.TrimPrefix(trimmed, "$")
	segs := strings.Split(trimmed, ".")
	return segs[len(segs)-1]
}

// defaultRequestKey returns the top-level request key Stage 4 writes a
// mapping source's value at before Stage 5 can relocate it. Every field
// uses its own path's final segment except max_output_tokens, which
// applyLimits writes under "max_tokens" — the field name almost every
// provider expects by convention, distinct from the prompt's own field
// name.
func defaultRequestKey(source string) string {
	if source == "$.limits.max_output_tokens" {
		return "max_tokens"
	}
	return topLevelKeyOf(source)
}

// pathDirectory returns every segment but the last, joined by ".", used to
// decide whether a mapping is a same-location rename (directory equal) or
// a true relocation (directory differs).
func pathDirectory(path string) string {
	trimmed := strings.TrimPrefix(path, "$.")
	trimmed = strings.TrimPrefix(trimmed, "$")
	segs := strings.Split(trimmed, ".")
	if len(segs) <= 1 {
		return ""
	}
	return strings.Join(segs[:len(segs)-1], ".")
}

// resolutionRank returns the index of field within preferences, or
// len(preferences) if absent (lowest rank).
func resolutionRank(field string, preferences []string) int {
	for i, p := range preferences {
		if p == field {
			return i
		}
	}
	return len(preferences)
}

func resolveConflicts(request map[string]any, model *ModelSpec, tracker *lossiness.Tracker, known map[string]bool) {
	for _, set := range model.Constraints.MutuallyExclusive {
		present := make([]string, 0, len(set))
		for _, field := range set {
			if _, ok := request[field]; ok {
				present = append(present, field)
			}
		}
		if len(present) <= 1 {
			continue
		}

		best := present[0]
		for _, field := range present[1:] {
			if resolutionRank(field, model.Constraints.ResolutionPreferences) < resolutionRank(best, model.Constraints.ResolutionPreferences) {
				best = field
			}
		}

		var dropped []string
		for _, field := range present {
			if field == best {
				continue
			}
			dropped = append(dropped, field)
			delete(request, field)
			delete(known, field)
		}
		tracker.AddConflict(best, fmt.Sprintf("resolved mutually-exclusive conflict among %v, keeping %q", present, best), dropped, best)
	}
}

func dropUnknownFields(request map[string]any, known map[string]bool, tracker *lossiness.Tracker) {
	for key, value := range request {
		if !known[key] {
			tracker.AddDropped(key, fmt.Sprintf("field %q is not declared in the provider's parameters or mappings", key), value)
			delete(request, key)
		}
	}
}
