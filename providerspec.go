package specado

import "github.com/specado/specado/internal/providerspec"

// LoadProviderSpec reads a ProviderSpec document (JSON or YAML) from path,
// resolving "$ref" cross-file references and "${ENV:VAR_NAME}"
// interpolation, and returns diagnostics for any environment variables
// that were referenced but unset.
func LoadProviderSpec(path string) (*ProviderSpec, []providerspec.Diagnostic, error) {
	var spec ProviderSpec
	diags, err := providerspec.Load(path, &spec)
	if err != nil {
		return nil, nil, &SchemaError{Kind: "parse", Path: path, Message: err.Error(), Cause: err}
	}
	return &spec, diags, nil
}
