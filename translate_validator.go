package specado

import (
	"fmt"
	"regexp"
)

var toolNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var recognizedModelClasses = map[string]bool{
	"Chat":          true,
	"ReasoningChat": true,
}

// validationIssue mirrors ValidationError's shape with a plain-string
// Severity, used internally before a decision is made on whether an issue
// becomes a fatal error or a lossiness report entry.
type validationIssue struct {
	FieldPath string
	Message   string
	Expected  string
	Actual    string
	Severity  string // "Error", "Warning", "Info"
}

func (v validationIssue) asError() *ValidationError {
	return &ValidationError{
		FieldPath: v.FieldPath,
		Message:   v.Message,
		Expected:  v.Expected,
		Actual:    v.Actual,
		Severity:  v.Severity,
	}
}

// preValidate runs the Stage 2 checks from spec.md §4.3 against prompt in
// the context of model. It returns every issue found; the caller decides
// what to do with Warning/Info issues based on strict mode, and must
// abort on any Error when strict_mode is Strict.
func preValidate(prompt *PromptSpec, model *ModelSpec) []validationIssue {
	var issues []validationIssue

	if len(prompt.Messages) == 0 {
		issues = append(issues, validationIssue{
			FieldPath: "messages", Message: "messages must not be empty",
			Expected: "at least one message", Actual: "0", Severity: "Error",
		})
	}

	if !recognizedModelClasses[prompt.ModelClass] {
		issues = append(issues, validationIssue{
			FieldPath: "model_class", Message: "unrecognized model class",
			Expected: "Chat or ReasoningChat", Actual: prompt.ModelClass, Severity: "Warning",
		})
	}

	if prompt.Limits != nil && prompt.Limits.MaxOutputTokens != nil && *prompt.Limits.MaxOutputTokens <= 0 {
		issues = append(issues, validationIssue{
			FieldPath: "limits.max_output_tokens", Message: "max_output_tokens must be strictly positive",
			Expected: "> 0", Actual: fmt.Sprintf("%d", *prompt.Limits.MaxOutputTokens), Severity: "Error",
		})
	}

	if prompt.Sampling != nil {
		issues = append(issues, validateRange("sampling.temperature", prompt.Sampling.Temperature, 0, 2)...)
		issues = append(issues, validateRange("sampling.top_p", prompt.Sampling.TopP, 0, 1)...)
		issues = append(issues, validateRange("sampling.frequency_penalty", prompt.Sampling.FrequencyPenalty, -2, 2)...)
		issues = append(issues, validateRange("sampling.presence_penalty", prompt.Sampling.PresencePenalty, -2, 2)...)
	}

	for _, tool := range prompt.Tools {
		if tool.Name == "" || !toolNamePattern.MatchString(tool.Name) {
			issues = append(issues, validationIssue{
				FieldPath: "tools", Message: "tool name must be non-empty and match [A-Za-z_][A-Za-z0-9_]*",
				Expected: "valid identifier", Actual: tool.Name, Severity: "Error",
			})
		}
	}

	if len(prompt.Tools) > 0 && !model.Tooling.ToolsSupported {
		issues = append(issues, validationIssue{
			FieldPath: "tools", Message: "model does not support tools",
			Expected: "tools_supported=true", Actual: "false", Severity: "Warning",
		})
	}

	if prompt.Media != nil && len(prompt.Media.InputImages) > 0 && !model.InputModes.Images {
		issues = append(issues, validationIssue{
			FieldPath: "media.input_images", Message: "model does not accept image input",
			Expected: "input_modes.images=true", Actual: "false", Severity: "Warning",
		})
	}

	if prompt.ResponseFormat != nil && prompt.ResponseFormat.Type != "text" && !model.JSONOutput.NativeParam {
		issues = append(issues, validationIssue{
			FieldPath: "response_format", Message: "model has no native JSON output support; emulation will be attempted",
			Expected: "json_output.native_param=true", Actual: "false", Severity: "Info",
		})
	}

	switch model.Constraints.SystemPromptLocation {
	case "first":
		for i, m := range prompt.Messages {
			if m.Role == RoleSystem && i != 0 {
				issues = append(issues, validationIssue{
					FieldPath: "messages", Message: "system messages must occur only at position 0",
					Expected: "position 0", Actual: fmt.Sprintf("position %d", i), Severity: "Error",
				})
			}
		}
	case "none":
		for _, m := range prompt.Messages {
			if m.Role == RoleSystem {
				issues = append(issues, validationIssue{
					FieldPath: "messages", Message: "system messages are disallowed by this model",
					Expected: "no system messages", Actual: "system message present", Severity: "Error",
				})
				break
			}
		}
	case "top_level":
		for i, m := range prompt.Messages {
			if m.Role == RoleSystem && i != 0 {
				issues = append(issues, validationIssue{
					FieldPath: "messages", Message: "system messages must occur only at position 0 to be lifted to a top-level field",
					Expected: "position 0", Actual: fmt.Sprintf("position %d", i), Severity: "Error",
				})
			}
		}
	}

	if prompt.Limits != nil && prompt.Limits.ReasoningTokens != nil && model.Family != "reasoning" {
		issues = append(issues, validationIssue{
			FieldPath: "limits.reasoning_tokens", Message: "reasoning_tokens set on a non-reasoning model family",
			Expected: "reasoning family", Actual: model.Family, Severity: "Warning",
		})
	}

	return issues
}

func validateRange(field string, value *float64, min, max float64) []validationIssue {
	if value == nil {
		return nil
	}
	if *value < min || *value > max {
		return []validationIssue{{
			FieldPath: field,
			Message:   fmt.Sprintf("%s must be within [%g, %g]", field, min, max),
			Expected:  fmt.Sprintf("[%g, %g]", min, max),
			Actual:    fmt.Sprintf("%g", *value),
			Severity:  "Error",
		}}
	}
	return nil
}

// hasFatalError reports whether issues contains an Error-severity entry.
func hasFatalError(issues []validationIssue) bool {
	for _, i := range issues {
		if i.Severity == "Error" {
			return true
		}
	}
	return false
}
