package golden

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
)

// DiffOptions configures a DiffEngine's comparison behavior.
type DiffOptions struct {
	// FloatTolerance is the maximum absolute difference between two
	// numeric leaves still considered equal.
	FloatTolerance float64
}

// DefaultDiffOptions matches the original implementation's defaults.
func DefaultDiffOptions() DiffOptions {
	return DiffOptions{FloatTolerance: 1e-6}
}

// DiffResult reports whether expected and actual matched, and if not, the
// JSON paths that differed.
type DiffResult struct {
	Matches        bool
	DifferingPaths []string
}

// DiffEngine compares two JSON-shaped values for structural equality,
// ignoring configured fields and masking volatile ones before comparing.
type DiffEngine struct {
	options DiffOptions
}

// NewDiffEngine creates a DiffEngine with options.
func NewDiffEngine(options DiffOptions) *DiffEngine {
	return &DiffEngine{options: options}
}

// Compare diffs expected against actual (any JSON-marshalable values),
// ignoring every path in ignoreFields and masking every path named in
// volatile before the structural comparison.
func (e *DiffEngine) Compare(expected, actual any, ignoreFields []string, volatile []VolatileFieldSpec) (*DiffResult, error) {
	expNode, err := toNode(expected)
	if err != nil {
		return nil, fmt.Errorf("golden: marshaling expected value: %w", err)
	}
	actNode, err := toNode(actual)
	if err != nil {
		return nil, fmt.Errorf("golden: marshaling actual value: %w", err)
	}

	expMasked := e.mask(expNode, "", ignoreFields, volatile)
	actMasked := e.mask(actNode, "", ignoreFields, volatile)

	var diffs []string
	e.collectDiffs(expMasked, actMasked, "", &diffs)
	sort.Strings(diffs)

	return &DiffResult{Matches: len(diffs) == 0, DifferingPaths: diffs}, nil
}

func toNode(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var node any
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, err
	}
	return node, nil
}

// mask walks node, replacing the value at any path in ignoreFields with
// "<ignored>" and the value at any VolatileFieldSpec path with
// "<volatile:PATH>" (both sides collapse to the same sentinel, so such a
// field never shows as a diff as long as both sides have a value there).
// A volatile string value that does not match the spec's pattern is kept
// as is; a pattern that does not compile masks the value unconditionally.
func (e *DiffEngine) mask(node any, path string, ignoreFields []string, volatile []VolatileFieldSpec) any {
	if containsString(ignoreFields, path) {
		return "<ignored>"
	}
	for _, v := range volatile {
		if v.Path == path {
			if re, err := regexp.Compile(v.Pattern); err == nil {
				if s, ok := node.(string); ok && !re.MatchString(s) {
					return node
				}
			}
			return "<volatile:" + v.Path + ">"
		}
	}

	switch t := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			childPath := k
			if path != "" {
				childPath = path + "." + k
			}
			out[k] = e.mask(val, childPath, ignoreFields, volatile)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = e.mask(val, fmt.Sprintf("%s[%d]", path, i), ignoreFields, volatile)
		}
		return out
	default:
		return node
	}
}

func (e *DiffEngine) collectDiffs(expected, actual any, path string, diffs *[]string) {
	expMap, expIsMap := expected.(map[string]any)
	actMap, actIsMap := actual.(map[string]any)
	if expIsMap && actIsMap {
		keys := map[string]bool{}
		for k := range expMap {
			keys[k] = true
		}
		for k := range actMap {
			keys[k] = true
		}
		for k := range keys {
			childPath := k
			if path != "" {
				childPath = path + "." + k
			}
			expVal, expOK := expMap[k]
			actVal, actOK := actMap[k]
			if !expOK {
				*diffs = append(*diffs, childPath+" (unexpected field)")
				continue
			}
			if !actOK {
				*diffs = append(*diffs, childPath+" (missing field)")
				continue
			}
			e.collectDiffs(expVal, actVal, childPath, diffs)
		}
		return
	}

	expSlice, expIsSlice := expected.([]any)
	actSlice, actIsSlice := actual.([]any)
	if expIsSlice && actIsSlice {
		if len(expSlice) != len(actSlice) {
			*diffs = append(*diffs, fmt.Sprintf("%s (length %d != %d)", path, len(expSlice), len(actSlice)))
			return
		}
		for i := range expSlice {
			e.collectDiffs(expSlice[i], actSlice[i], fmt.Sprintf("%s[%d]", path, i), diffs)
		}
		return
	}

	if !valuesEqual(expected, actual, e.options.FloatTolerance) {
		*diffs = append(*diffs, path)
	}
}

func valuesEqual(a, b any, tolerance float64) bool {
	af, aIsFloat := a.(float64)
	bf, bIsFloat := b.(float64)
	if aIsFloat && bIsFloat {
		return math.Abs(af-bf) <= tolerance
	}
	return a == b
}
