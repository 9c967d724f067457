package jsonpath

import "reflect"

// Selector consumes a sequence of matched values and produces the next
// sequence in the pipeline. Each CompiledSelector variant from the design
// (Root, Property, Index, Slice, Wildcard, RecursiveDescent, Union, Filter)
// is one Selector implementation below.
type Selector interface {
	Select(in []any) ([]any, error)
}

// RootSelector passes its input through unchanged. It is always the first
// element of a compiled pipeline.
type RootSelector struct{}

func (RootSelector) Select(in []any) ([]any, error) { return in, nil }

// PropertySelector reads Key from each object in the input; non-objects
// yield nothing for that input element.
type PropertySelector struct {
	Key string
}

func (s PropertySelector) Select(in []any) ([]any, error) {
	var out []any
	for _, v := range in {
		if m, ok := v.(map[string]any); ok {
			if child, exists := m[s.Key]; exists {
				out = append(out, child)
			}
		}
	}
	return out, nil
}

// IndexSelector selects element N (negative counts from the end) of each
// array in the input.
type IndexSelector struct {
	N int
}

func (s IndexSelector) Select(in []any) ([]any, error) {
	var out []any
	for _, v := range in {
		arr, ok := v.([]any)
		if !ok {
			continue
		}
		length := len(arr)
		if s.N >= 0 {
			if s.N < length {
				out = append(out, arr[s.N])
			}
			continue
		}
		negN := -s.N
		if negN > 0 && negN <= length {
			out = append(out, arr[length-negN])
		}
	}
	return out, nil
}

// SliceSelector implements [start:end:step] over arrays. Step may be
// negative (reverse iteration); bounds are clamped to [0, len] and
// negative bounds are normalized by adding len, matching Python-style
// slicing semantics.
type SliceSelector struct {
	Start *int
	End   *int
	Step  *int
}

func (s SliceSelector) Select(in []any) ([]any, error) {
	step := 1
	if s.Step != nil {
		step = *s.Step
	}
	if step == 0 {
		return nil, &EvalError{Message: "slice step must not be zero"}
	}

	var out []any
	for _, v := range in {
		arr, ok := v.([]any)
		if !ok {
			continue
		}
		start, end := sliceBounds(len(arr), s.Start, s.End, step)
		if step > 0 {
			for i := start; i < end; i += step {
				out = append(out, arr[i])
			}
		} else {
			for i := start; i > end; i += step {
				if i >= 0 && i < len(arr) {
					out = append(out, arr[i])
				}
			}
		}
	}
	return out, nil
}

func normalizeIndex(idx, length int) int {
	if idx < 0 {
		return idx + length
	}
	return idx
}

// sliceBounds computes the (start, end) iteration bounds for a slice over
// an array of the given length, given optional user-supplied start/end and
// a nonzero step.
func sliceBounds(length int, startP, endP *int, step int) (start, end int) {
	if step > 0 {
		start = 0
		if startP != nil {
			start = normalizeIndex(*startP, length)
		}
		end = length
		if endP != nil {
			end = normalizeIndex(*endP, length)
		}
		if start < 0 {
			start = 0
		}
		if start > length {
			start = length
		}
		if end < 0 {
			end = 0
		}
		if end > length {
			end = length
		}
		return
	}

	start = length - 1
	if startP != nil {
		start = normalizeIndex(*startP, length)
	}
	end = -1
	if endP != nil {
		end = normalizeIndex(*endP, length)
	}
	if start >= length {
		start = length - 1
	}
	if start < -1 {
		start = -1
	}
	if end >= length {
		end = length - 1
	}
	if end < -1 {
		end = -1
	}
	return
}

// WildcardSelector emits every element of an array (index order) or every
// value of an object (map-iteration order — callers must not assume a
// stable key order). Scalars produce nothing.
type WildcardSelector struct{}

func (WildcardSelector) Select(in []any) ([]any, error) {
	var out []any
	for _, v := range in {
		switch t := v.(type) {
		case []any:
			out = append(out, t...)
		case map[string]any:
			for _, cv := range t {
				out = append(out, cv)
			}
		}
	}
	return out, nil
}

// RecursiveDescentSelector walks every input value pre-order. Without a
// Target it emits every descendant value (including the starting value
// itself). With a Target, it emits the value at that key for every
// object encountered anywhere in the subtree — critically, a match at one
// node does not stop recursion into that node's own children, since a
// deeper object may declare the same key again.
type RecursiveDescentSelector struct {
	Target *string
}

func (s RecursiveDescentSelector) Select(in []any) ([]any, error) {
	var out []any
	for _, v := range in {
		collectRecursive(v, s.Target, &out)
	}
	return out, nil
}

func collectRecursive(v any, target *string, out *[]any) {
	if target == nil {
		*out = append(*out, v)
	} else if m, ok := v.(map[string]any); ok {
		if child, exists := m[*target]; exists {
			*out = append(*out, child)
		}
	}

	switch t := v.(type) {
	case map[string]any:
		for _, cv := range t {
			collectRecursive(cv, target, out)
		}
	case []any:
		for _, cv := range t {
			collectRecursive(cv, target, out)
		}
	}
}

// UnionSelector runs every member selector against a copy of the full
// input set (not threading one selector's output into the next), then
// concatenates results in order and deduplicates by reference identity
// for containers (maps/slices) or value equality for scalars, preserving
// first-occurrence order.
type UnionSelector struct {
	Selectors []Selector
}

func (s UnionSelector) Select(in []any) ([]any, error) {
	var all []any
	for _, sel := range s.Selectors {
		res, err := sel.Select(in)
		if err != nil {
			return nil, err
		}
		all = append(all, res...)
	}
	return dedupPreserveOrder(all), nil
}

func dedupPreserveOrder(values []any) []any {
	seen := make(map[any]struct{}, len(values))
	var out []any
	for _, v := range values {
		key := identityKey(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

// identityKey returns a comparable key standing in for reference identity:
// maps and slices are keyed by their underlying data pointer (stable for
// sub-values of the same parsed document), scalars are keyed by value.
func identityKey(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice:
		return rv.Pointer()
	default:
		return v
	}
}

// FilterSelector keeps array elements (or the single input value, if not
// an array) for which Predicate evaluates true.
type FilterSelector struct {
	Predicate FilterExpr
}

func (s FilterSelector) Select(in []any) ([]any, error) {
	var out []any
	for _, v := range in {
		if arr, ok := v.([]any); ok {
			for _, elem := range arr {
				if s.Predicate.Eval(elem) {
					out = append(out, elem)
				}
			}
			continue
		}
		if s.Predicate.Eval(v) {
			out = append(out, v)
		}
	}
	return out, nil
}
