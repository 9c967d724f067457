package providerspec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testSpec struct {
	Name    string            `json:"name"`
	BaseURL string            `json:"base_url"`
	Headers map[string]string `json:"default_headers"`
	Models  []testModel       `json:"models"`
}

type testModel struct {
	ID string `json:"id"`
}

func TestLoadJSONFlat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "provider.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"openai","base_url":"https://api.openai.com","models":[{"id":"gpt-4"}]}`), 0o644))

	var out testSpec
	diags, err := Load(path, &out)
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Equal(t, "openai", out.Name)
	assert.Equal(t, "gpt-4", out.Models[0].ID)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "provider.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: anthropic\nbase_url: https://api.anthropic.com\nmodels:\n  - id: claude-3\n"), 0o644))

	var out testSpec
	_, err := Load(path, &out)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", out.Name)
	assert.Equal(t, "claude-3", out.Models[0].ID)
}

func TestLoadResolvesRef(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "models.json"), []byte(`[{"id":"gpt-4"},{"id":"gpt-4-turbo"}]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "provider.json"), []byte(`{"name":"openai","base_url":"https://api.openai.com","models":{"$ref":"./models.json"}}`), 0o644))

	var out testSpec
	_, err := Load(filepath.Join(dir, "provider.json"), &out)
	require.NoError(t, err)
	require.Len(t, out.Models, 2)
	assert.Equal(t, "gpt-4-turbo", out.Models[1].ID)
}

func TestLoadDetectsCircularRef(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(`{"$ref":"./b.json"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte(`{"$ref":"./a.json"}`), 0o644))

	var out testSpec
	_, err := Load(filepath.Join(dir, "a.json"), &out)
	require.Error(t, err)
	var refErr *RefError
	require.ErrorAs(t, err, &refErr)
}

func TestLoadInterpolatesEnv(t *testing.T) {
	t.Setenv("SPECADO_TEST_KEY", "sk-abc123")
	dir := t.TempDir()
	path := filepath.Join(dir, "provider.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"openai","base_url":"https://api.openai.com","default_headers":{"Authorization":"Bearer ${ENV:SPECADO_TEST_KEY}"}}`), 0o644))

	var out testSpec
	diags, err := Load(path, &out)
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Equal(t, "Bearer sk-abc123", out.Headers["Authorization"])
}

func TestLoadUnsetEnvVarRecordsDiagnosticNotError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "provider.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"openai","base_url":"https://api.openai.com","default_headers":{"Authorization":"Bearer ${ENV:SPECADO_DEFINITELY_UNSET}"}}`), 0o644))

	var out testSpec
	diags, err := Load(path, &out)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, "SPECADO_DEFINITELY_UNSET")
	assert.Equal(t, "Bearer ", out.Headers["Authorization"])
}

func TestLoadUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "provider.toml")
	require.NoError(t, os.WriteFile(path, []byte(`name = "openai"`), 0o644))

	var out testSpec
	_, err := Load(path, &out)
	require.Error(t, err)
}
