// Package golden implements a fixture-driven corpus runner for Specado:
// each fixture names a PromptSpec/ProviderSpec pair and the translation
// outcome expected of it. The runner checks whether Translate succeeded or
// failed as expected, matches a failure against the fixture's error
// pattern, and checks that every expected lossiness code was reported; it
// does not compare the translated request itself. DiffEngine provides a
// field-by-field comparison with ignored and volatile fields, but the
// runner does not call it.
package golden

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// TestCase is one fixture: a named translation scenario plus its expected
// outcome.
type TestCase struct {
	Name         string            `json:"name"`
	Category     string            `json:"category"`
	Input        TestInput         `json:"input"`
	Provider     string            `json:"provider,omitempty"`
	Expectations TestExpectations  `json:"expectations"`
	Metadata     TestMetadata      `json:"metadata"`
}

// TestInput holds the PromptSpec (and optional ProviderSpec override) a
// test case translates, as raw JSON so file-reference indirection (below)
// can be resolved before unmarshaling into the real types.
type TestInput struct {
	PromptSpec   json.RawMessage `json:"prompt_spec"`
	ProviderSpec json.RawMessage `json:"provider_spec,omitempty"`
}

// TestExpectations describes what a passing run of this test case must
// look like.
type TestExpectations struct {
	ShouldSucceed     bool                `json:"should_succeed"`
	ErrorPattern      string              `json:"error_pattern,omitempty"`
	IgnoreFields      []string            `json:"ignore_fields,omitempty"`
	VolatileFields    []VolatileFieldSpec `json:"volatile_fields,omitempty"`
	ExpectedLossiness []string            `json:"expected_lossiness,omitempty"`
}

// VolatileFieldSpec names a field path whose value is masked (replaced
// with a "<volatile:PATH>" sentinel) before comparison, because it
// legitimately varies run to run. A string value that does not match
// Pattern is left unmasked.
type VolatileFieldSpec struct {
	Path    string `json:"path"`
	Pattern string `json:"pattern"`
}

// TestMetadata carries descriptive and filtering information about a case.
type TestMetadata struct {
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	Enabled     bool     `json:"enabled"`
	Priority    int      `json:"priority"`
}

// CorpusManager discovers and filters TestCase fixtures under a directory
// tree, one "test.json" file per case directory.
type CorpusManager struct {
	corpusDir string
}

// NewCorpusManager creates a CorpusManager rooted at corpusDir.
func NewCorpusManager(corpusDir string) *CorpusManager {
	return &CorpusManager{corpusDir: corpusDir}
}

// DiscoverTests walks corpusDir for every "test.json" file, loads it, and
// returns the cases sorted by ascending priority (lower runs first). A
// case that fails to load is skipped; discovery itself never fails for a
// missing corpus directory, it simply returns no cases.
func (m *CorpusManager) DiscoverTests() ([]TestCase, error) {
	var cases []TestCase

	if _, err := os.Stat(m.corpusDir); os.IsNotExist(err) {
		return cases, nil
	}

	err := filepath.WalkDir(m.corpusDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != "test.json" {
			return nil
		}
		tc, loadErr := m.LoadTestCase(path)
		if loadErr != nil {
			return nil
		}
		cases = append(cases, tc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("golden: walking corpus %q: %w", m.corpusDir, err)
	}

	sort.SliceStable(cases, func(i, j int) bool { return cases[i].Metadata.Priority < cases[j].Metadata.Priority })
	return cases, nil
}

// LoadTestCase reads and unmarshals the test case at path, resolving
// PromptSpec/ProviderSpec file-reference indirection (a string value
// ending in ".json" names a sibling file to load instead of an inline
// object) relative to path's directory.
func (m *CorpusManager) LoadTestCase(path string) (TestCase, error) {
	var tc TestCase
	data, err := os.ReadFile(path)
	if err != nil {
		return tc, fmt.Errorf("golden: reading test case %q: %w", path, err)
	}
	if err := json.Unmarshal(data, &tc); err != nil {
		return tc, fmt.Errorf("golden: parsing test case %q: %w", path, err)
	}

	dir := filepath.Dir(path)
	if resolved, ok, err := resolveFileRef(tc.Input.PromptSpec, dir); err != nil {
		return tc, err
	} else if ok {
		tc.Input.PromptSpec = resolved
	}
	if resolved, ok, err := resolveFileRef(tc.Input.ProviderSpec, dir); err != nil {
		return tc, err
	} else if ok {
		tc.Input.ProviderSpec = resolved
	}

	return tc, nil
}

func resolveFileRef(raw json.RawMessage, dir string) (json.RawMessage, bool, error) {
	if len(raw) == 0 {
		return nil, false, nil
	}
	var filename string
	if err := json.Unmarshal(raw, &filename); err != nil {
		return nil, false, nil // not a string reference, use as-is
	}
	if filepath.Ext(filename) != ".json" {
		return nil, false, nil
	}
	data, err := os.ReadFile(filepath.Join(dir, filename))
	if err != nil {
		return nil, false, fmt.Errorf("golden: loading referenced file %q: %w", filename, err)
	}
	return json.RawMessage(data), true, nil
}

// FilterByCategory keeps only cases in category, or all cases if category
// is "*".
func FilterByCategory(cases []TestCase, category string) []TestCase {
	if category == "*" {
		return cases
	}
	out := make([]TestCase, 0, len(cases))
	for _, c := range cases {
		if c.Category == category {
			out = append(out, c)
		}
	}
	return out
}

// FilterByTags keeps only cases carrying at least one of tags. An empty
// tags list is a no-op.
func FilterByTags(cases []TestCase, tags []string) []TestCase {
	if len(tags) == 0 {
		return cases
	}
	out := make([]TestCase, 0, len(cases))
	for _, c := range cases {
		for _, want := range tags {
			if containsString(c.Metadata.Tags, want) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// FilterEnabled keeps only cases whose Metadata.Enabled is true.
func FilterEnabled(cases []TestCase) []TestCase {
	out := make([]TestCase, 0, len(cases))
	for _, c := range cases {
		if c.Metadata.Enabled {
			out = append(out, c)
		}
	}
	return out
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// Statistics summarizes a discovered corpus.
type Statistics struct {
	TotalTests      int
	EnabledTests    int
	DisabledTests   int
	TestsByCategory map[string]int
	TestsByTag      map[string]int
}

// Statistics computes corpus-wide counts over cases.
func (m *CorpusManager) Statistics(cases []TestCase) Statistics {
	stats := Statistics{
		TotalTests:      len(cases),
		TestsByCategory: map[string]int{},
		TestsByTag:      map[string]int{},
	}
	for _, c := range cases {
		if c.Metadata.Enabled {
			stats.EnabledTests++
		} else {
			stats.DisabledTests++
		}
		stats.TestsByCategory[c.Category]++
		for _, tag := range c.Metadata.Tags {
			stats.TestsByTag[tag]++
		}
	}
	return stats
}
