// Package jsonpath implements a restricted JSONPath dialect used to address
// fields inside a parsed JSON/YAML document (represented as the usual
// map[string]any / []any / scalar tree produced by encoding/json or
// gopkg.in/yaml.v3's Decode-into-any). It supports property and index
// access, slices, wildcards, recursive descent, unions, and simple filter
// predicates — the subset that provider-spec field mappings need, not the
// full Goessner grammar.
package jsonpath

import (
	"fmt"
	"strconv"
	"strings"
)

// CompiledPath is a parsed JSONPath expression ready to be evaluated
// repeatedly against different documents.
type CompiledPath struct {
	raw       string
	selectors []Selector
}

// String returns the original expression text.
func (p *CompiledPath) String() string { return p.raw }

// Parse compiles a JSONPath expression string into a CompiledPath.
func Parse(expr string) (*CompiledPath, error) {
	p := &parser{input: expr}
	selectors, err := p.parse()
	if err != nil {
		return nil, err
	}
	return &CompiledPath{raw: expr, selectors: selectors}, nil
}

// MustParse is like Parse but panics on error; intended for compiling
// expressions known at init time (e.g. constants in a mapping table).
func MustParse(expr string) *CompiledPath {
	p, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// Execute evaluates the compiled path against doc, returning every matched
// value in document order (or filter/union order, for those selectors).
func (p *CompiledPath) Execute(doc any) ([]any, error) {
	values := []any{doc}
	for _, sel := range p.selectors {
		var err error
		values, err = sel.Select(values)
		if err != nil {
			return nil, &EvalError{Path: p.raw, Message: err.Error()}
		}
	}
	return values, nil
}

// ExecuteOne returns the first match of Execute, and false if there were
// none. Most mapping paths are expected to resolve to at most one value.
func (p *CompiledPath) ExecuteOne(doc any) (any, bool, error) {
	values, err := p.Execute(doc)
	if err != nil {
		return nil, false, err
	}
	if len(values) == 0 {
		return nil, false, nil
	}
	return values[0], true, nil
}

// Set writes value at the location addressed by the compiled path inside
// doc, creating intermediate maps as needed. Only simple property/index
// paths (no wildcard, recursive descent, union, or filter segments) are
// settable; anything else returns an EvalError. doc must be a
// map[string]any (or a pointer to one held by the caller), and is mutated
// in place.
func (p *CompiledPath) Set(doc map[string]any, value any) error {
	segs, err := p.simpleSegments()
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return &EvalError{Path: p.raw, Message: "cannot set document root"}
	}
	return setAtSegments(doc, segs, value)
}

// Delete removes the value addressed by the compiled path from doc, a
// no-op if the path does not resolve to an existing location. Only simple
// property/index paths are supported, matching Set.
func (p *CompiledPath) Delete(doc map[string]any) error {
	segs, err := p.simpleSegments()
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return &EvalError{Path: p.raw, Message: "cannot delete document root"}
	}
	return deleteAtSegments(doc, segs)
}

// pathSegment is either a property name or an array index, used by the
// Set/Delete simple-path walkers.
type pathSegment struct {
	key      string
	index    int
	isIndex  bool
}

// simpleSegments re-derives a flat list of property/index segments from the
// compiled selector list, rejecting any selector kind that Set/Delete
// cannot address deterministically.
func (p *CompiledPath) simpleSegments() ([]pathSegment, error) {
	var segs []pathSegment
	for _, sel := range p.selectors {
		switch s := sel.(type) {
		case RootSelector:
			continue
		case PropertySelector:
			segs = append(segs, pathSegment{key: s.Key})
		case IndexSelector:
			segs = append(segs, pathSegment{index: s.N, isIndex: true})
		default:
			return nil, &EvalError{Path: p.raw, Message: "path is not settable: contains a wildcard, recursive descent, union, or filter segment"}
		}
	}
	return segs, nil
}

func setAtSegments(doc map[string]any, segs []pathSegment, value any) error {
	cur := any(doc)
	for i, seg := range segs {
		last := i == len(segs)-1
		if seg.isIndex {
			arr, ok := cur.([]any)
			if !ok {
				return &EvalError{Message: "expected array while setting index segment"}
			}
			if seg.index < 0 || seg.index >= len(arr) {
				return &EvalError{Message: fmt.Sprintf("index %d out of range", seg.index)}
			}
			if last {
				arr[seg.index] = value
				return nil
			}
			cur = arr[seg.index]
			continue
		}

		m, ok := cur.(map[string]any)
		if !ok {
			return &EvalError{Message: "expected object while setting property segment"}
		}
		if last {
			m[seg.key] = value
			return nil
		}
		child, exists := m[seg.key]
		if !exists {
			child = make(map[string]any)
			m[seg.key] = child
		}
		cur = child
	}
	return nil
}

func deleteAtSegments(doc map[string]any, segs []pathSegment) error {
	cur := any(doc)
	for i, seg := range segs {
		last := i == len(segs)-1
		if seg.isIndex {
			arr, ok := cur.([]any)
			if !ok {
				return nil
			}
			if seg.index < 0 || seg.index >= len(arr) {
				return nil
			}
			if last {
				// Leave a hole rather than reslicing, since sibling indices
				// in the same mapping pass must keep their meaning.
				arr[seg.index] = nil
				return nil
			}
			cur = arr[seg.index]
			continue
		}

		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		if last {
			delete(m, seg.key)
			return nil
		}
		child, exists := m[seg.key]
		if !exists {
			return nil
		}
		cur = child
	}
	return nil
}

// parser turns a JSONPath expression string into a selector pipeline.
type parser struct {
	input string
	pos   int
}

func (p *parser) parse() ([]Selector, error) {
	if !strings.HasPrefix(p.input, "$") {
		return nil, &ParseError{Input: p.input, Position: 0, Message: "expression must start with '$'"}
	}
	p.pos = 1
	selectors := []Selector{RootSelector{}}

	for p.pos < len(p.input) {
		c := p.input[p.pos]
		switch {
		case c == '.':
			if p.peekAt(p.pos+1) == '.' {
				p.pos += 2
				sel, err := p.parseRecursiveDescent()
				if err != nil {
					return nil, err
				}
				selectors = append(selectors, sel)
				continue
			}
			p.pos++
			sel, err := p.parseDotProperty()
			if err != nil {
				return nil, err
			}
			selectors = append(selectors, sel)
		case c == '[':
			sel, err := p.parseBracket()
			if err != nil {
				return nil, err
			}
			selectors = append(selectors, sel)
		default:
			return nil, &ParseError{Input: p.input, Position: p.pos, Message: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	return selectors, nil
}

func (p *parser) peekAt(i int) byte {
	if i >= len(p.input) {
		return 0
	}
	return p.input[i]
}

func isIdentChar(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func (p *parser) parseDotProperty() (Selector, error) {
	if p.pos < len(p.input) && p.input[p.pos] == '*' {
		p.pos++
		return WildcardSelector{}, nil
	}
	start := p.pos
	for p.pos < len(p.input) && isIdentChar(p.input[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return nil, &ParseError{Input: p.input, Position: p.pos, Message: "expected property name after '.'"}
	}
	return PropertySelector{Key: p.input[start:p.pos]}, nil
}

func (p *parser) parseRecursiveDescent() (Selector, error) {
	if p.pos < len(p.input) && p.input[p.pos] == '*' {
		p.pos++
		return RecursiveDescentSelector{}, nil
	}
	start := p.pos
	for p.pos < len(p.input) && isIdentChar(p.input[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return RecursiveDescentSelector{}, nil
	}
	target := p.input[start:p.pos]
	return RecursiveDescentSelector{Target: &target}, nil
}

func (p *parser) parseBracket() (Selector, error) {
	if p.input[p.pos] != '[' {
		return nil, &ParseError{Input: p.input, Position: p.pos, Message: "expected '['"}
	}
	p.pos++
	depth := 1
	start := p.pos
	for p.pos < len(p.input) && depth > 0 {
		switch p.input[p.pos] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				continue
			}
		}
		p.pos++
	}
	if depth != 0 {
		return nil, &ParseError{Input: p.input, Position: p.pos, Message: "unterminated '['"}
	}
	body := p.input[start:p.pos]
	p.pos++ // consume ']'

	return parseBracketBody(body)
}

func parseBracketBody(body string) (Selector, error) {
	body = strings.TrimSpace(body)

	if body == "*" {
		return WildcardSelector{}, nil
	}

	if strings.HasPrefix(body, "?(") && strings.HasSuffix(body, ")") {
		inner := body[2 : len(body)-1]
		expr, err := parseFilterExpr(inner)
		if err != nil {
			return nil, err
		}
		return FilterSelector{Predicate: expr}, nil
	}

	if strings.Contains(body, ":") {
		return parseSliceBody(body)
	}

	parts := splitBracketList(body)
	if len(parts) > 1 {
		var members []Selector
		for _, part := range parts {
			sel, err := parseBracketMember(part)
			if err != nil {
				return nil, err
			}
			members = append(members, sel)
		}
		return UnionSelector{Selectors: members}, nil
	}

	return parseBracketMember(parts[0])
}

func splitBracketList(body string) []string {
	var parts []string
	depth := 0
	inStr := false
	last := 0
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '\'', '"':
			inStr = !inStr
		case '(':
			if !inStr {
				depth++
			}
		case ')':
			if !inStr {
				depth--
			}
		case ',':
			if depth == 0 && !inStr {
				parts = append(parts, strings.TrimSpace(body[last:i]))
				last = i + 1
			}
		}
	}
	parts = append(parts, strings.TrimSpace(body[last:]))
	return parts
}

func parseBracketMember(s string) (Selector, error) {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return PropertySelector{Key: s[1 : len(s)-1]}, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, &ParseError{Input: s, Message: "expected quoted property name or integer index"}
	}
	return IndexSelector{N: n}, nil
}

func parseSliceBody(body string) (Selector, error) {
	fields := strings.Split(body, ":")
	if len(fields) > 3 {
		return nil, &ParseError{Input: body, Message: "slice has too many ':' separated fields"}
	}
	parsed := make([]*int, 3)
	for i, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, &ParseError{Input: body, Message: fmt.Sprintf("invalid slice field %q", f)}
		}
		parsed[i] = &n
	}
	return SliceSelector{Start: parsed[0], End: parsed[1], Step: parsed[2]}, nil
}
