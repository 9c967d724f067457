package golden

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	specado "github.com/specado/specado"
)

// TestResult is the outcome of running one TestCase.
type TestResult struct {
	Name       string
	Passed     bool
	Error      string
	Diff       []string
	DurationMS int64
}

// Runner executes TestCases against specado.Translate and checks the
// outcome against each case's expectations.
type Runner struct {
	diffEngine *DiffEngine
}

// NewRunner creates a Runner using DefaultDiffOptions.
func NewRunner() *Runner {
	return &Runner{diffEngine: NewDiffEngine(DefaultDiffOptions())}
}

// RunAll executes every case in cases and returns one TestResult each, in
// the same order.
func (r *Runner) RunAll(cases []TestCase) []TestResult {
	results := make([]TestResult, len(cases))
	for i, tc := range cases {
		results[i] = r.run(tc)
	}
	return results
}

func (r *Runner) run(tc TestCase) TestResult {
	start := time.Now()
	result := TestResult{Name: tc.Name}

	var prompt specado.PromptSpec
	if err := json.Unmarshal(tc.Input.PromptSpec, &prompt); err != nil {
		result.Error = fmt.Sprintf("parsing prompt_spec: %v", err)
		result.DurationMS = time.Since(start).Milliseconds()
		return result
	}

	var provider specado.ProviderSpec
	if len(tc.Input.ProviderSpec) > 0 {
		if err := json.Unmarshal(tc.Input.ProviderSpec, &provider); err != nil {
			result.Error = fmt.Sprintf("parsing provider_spec: %v", err)
			result.DurationMS = time.Since(start).Milliseconds()
			return result
		}
	}

	modelID := ""
	if len(provider.Models) > 0 {
		modelID = provider.Models[0].ID
	}

	translation, err := specado.Translate(&prompt, &provider, modelID)
	result.DurationMS = time.Since(start).Milliseconds()

	if err != nil {
		if tc.Expectations.ShouldSucceed {
			result.Error = fmt.Sprintf("expected success, got error: %v", err)
			return result
		}
		if tc.Expectations.ErrorPattern != "" {
			re, reErr := regexp.Compile(tc.Expectations.ErrorPattern)
			if reErr != nil {
				result.Error = fmt.Sprintf("invalid error_pattern %q: %v", tc.Expectations.ErrorPattern, reErr)
				return result
			}
			if !re.MatchString(err.Error()) {
				result.Error = fmt.Sprintf("error %q did not match pattern %q", err.Error(), tc.Expectations.ErrorPattern)
				return result
			}
		}
		result.Passed = true
		return result
	}

	if !tc.Expectations.ShouldSucceed {
		result.Error = "expected failure, translation succeeded"
		return result
	}

	if len(tc.Expectations.ExpectedLossiness) > 0 {
		if err := r.checkLossinessCodes(translation, tc.Expectations.ExpectedLossiness); err != nil {
			result.Error = err.Error()
			return result
		}
	}

	result.Passed = true
	return result
}

// checkLossinessCodes verifies every code in expected appears at least
// once among translation's lossiness report items.
func (r *Runner) checkLossinessCodes(translation *specado.TranslationResult, expected []string) error {
	seen := map[string]bool{}
	for _, item := range translation.Lossiness.Items {
		seen[item.Code] = true
	}
	for _, code := range expected {
		if !seen[code] {
			return fmt.Errorf("expected lossiness code %q not present; got %v", code, reportCodes(translation.Lossiness))
		}
	}
	return nil
}

func reportCodes(report specado.LossinessReport) []string {
	codes := make([]string, len(report.Items))
	for i, item := range report.Items {
		codes[i] = item.Code
	}
	return codes
}
