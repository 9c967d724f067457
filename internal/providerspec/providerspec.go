// Package providerspec loads a ProviderSpec document from JSON or YAML,
// resolving "$ref" cross-file references and "${ENV:VAR_NAME}" environment
// interpolation the way the teacher's config.LoadConfig resolves its
// *Env-suffixed fields, generalized to a multi-file, multi-format spec.
package providerspec

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Diagnostic is a non-fatal problem surfaced while loading a spec, such as
// an unset environment variable referenced by "${ENV:...}".
type Diagnostic struct {
	Path    string
	Message string
}

// RefError reports a circular "$ref" chain. Other resolution failures (a
// missing file, an unsupported format) are returned as wrapped errors.
type RefError struct {
	Chain []string
	Cause error
}

func (e *RefError) Error() string {
	return fmt.Sprintf("providerspec: resolving $ref chain %s: %v", strings.Join(e.Chain, " -> "), e.Cause)
}

func (e *RefError) Unwrap() error { return e.Cause }

var envToken = regexp.MustCompile(`\$\{ENV:([A-Z0-9_]+)\}`)

// Load reads the ProviderSpec document at path (JSON or YAML, by
// extension), resolves every "$ref" it or its referents contain, applies
// "${ENV:VAR_NAME}" interpolation to every string leaf, and unmarshals the
// result into out. It returns any environment-interpolation warnings
// alongside a nil error; a malformed document or unresolved $ref is
// returned as the error instead.
func Load(path string, out any) ([]Diagnostic, error) {
	resolved, err := resolveRefs(path, nil)
	if err != nil {
		return nil, err
	}

	var diags []Diagnostic
	interpolated := interpolateEnv(resolved, path, &diags)

	raw, err := json.Marshal(interpolated)
	if err != nil {
		return nil, fmt.Errorf("providerspec: re-marshaling resolved document: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("providerspec: decoding resolved document into target type: %w", err)
	}
	return diags, nil
}

func decodeFile(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("providerspec: reading %q: %w", path, err)
	}

	var doc any
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("providerspec: parsing YAML %q: %w", path, err)
		}
		return normalizeYAML(doc), nil
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("providerspec: parsing JSON %q: %w", path, err)
		}
		return doc, nil
	default:
		return nil, fmt.Errorf("providerspec: unsupported file extension %q on %q", ext, path)
	}
}

// normalizeYAML converts yaml.v3's map[string]interface{} (already the
// default for mapping nodes) recursively, flattening any
// map[interface{}]interface{} a custom unmarshaler might still produce, so
// the tree below this point only ever sees JSON-shaped values.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeYAML(val)
		}
		return out
	default:
		return v
	}
}

// resolveRefs loads path and recursively replaces every {"$ref": "..."}
// object with the resolved contents of the referenced file, resolved
// relative to path's directory. chain tracks the files visited so far to
// detect cycles.
func resolveRefs(path string, chain []string) (any, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("providerspec: resolving absolute path for %q: %w", path, err)
	}
	for _, seen := range chain {
		if seen == abs {
			return nil, &RefError{Chain: append(append([]string{}, chain...), abs), Cause: fmt.Errorf("circular $ref")}
		}
	}
	chain = append(chain, abs)

	doc, err := decodeFile(abs)
	if err != nil {
		return nil, err
	}
	return resolveNode(doc, filepath.Dir(abs), chain)
}

func resolveNode(node any, dir string, chain []string) (any, error) {
	switch t := node.(type) {
	case map[string]any:
		if ref, ok := t["$ref"]; ok && len(t) == 1 {
			refPath, ok := ref.(string)
			if !ok {
				return nil, fmt.Errorf("providerspec: $ref value must be a string, got %T", ref)
			}
			resolved, err := resolveRefs(filepath.Join(dir, refPath), chain)
			if err != nil {
				return nil, err
			}
			return resolved, nil
		}
		out := make(map[string]any, len(t))
		for k, v := range t {
			resolved, err := resolveNode(v, dir, chain)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			resolved, err := resolveNode(v, dir, chain)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return node, nil
	}
}

// interpolateEnv walks node replacing every "${ENV:VAR_NAME}" occurrence in
// string leaves with os.Getenv(VAR_NAME). An unset variable is left as an
// empty string and recorded as a Diagnostic rather than failing the load,
// matching the teacher's permissive APIKeyEnv resolution.
func interpolateEnv(node any, path string, diags *[]Diagnostic) any {
	switch t := node.(type) {
	case string:
		return envToken.ReplaceAllStringFunc(t, func(match string) string {
			name := envToken.FindStringSubmatch(match)[1]
			val, ok := os.LookupEnv(name)
			if !ok {
				*diags = append(*diags, Diagnostic{
					Path:    path,
					Message: fmt.Sprintf("environment variable %q referenced by ${ENV:%s} is not set", name, name),
				})
			}
			return val
		})
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[k] = interpolateEnv(v, path, diags)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			out[i] = interpolateEnv(v, path, diags)
		}
		return out
	default:
		return node
	}
}
