package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, "copilot", cfg.Provider)
	assert.Equal(t, "gpt-4o", cfg.Family)
	assert.True(t, cfg.FallbackEditOnStreamError)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "WARN", cfg.Log.Level)
}

func TestLoadTemplates(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
custom_actions:
  - id: fix
    label: Fix my code
    prompt: "/fix Improve this code"
    loading_label: "Fixing..."
custom_commands:
  - id: tidy
    description: Tidy the file
    prompt: Tidy this code
`))
	require.NoError(t, err)

	reg := cfg.Registry()
	act, ok := reg.Resolve("/fix this")
	require.True(t, ok)
	assert.Equal(t, "Fixing...", act.LoadingLabel)

	cmd, ok := reg.ResolveCommand("tidy")
	require.True(t, ok)
	assert.Equal(t, "Tidy this code", cmd.Prompt)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
provider: openai
family: gpt-4.1
max_tokens: 4096
temperature: 0.2
fallback_edit_on_stream_error: false
`))
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "gpt-4.1", cfg.Family)
	assert.Equal(t, 4096, cfg.MaxTokens)
	assert.InDelta(t, 0.2, cfg.Temperature, 1e-9)
	assert.False(t, cfg.FallbackEditOnStreamError)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("STYLECOPILOT_FAMILY", "gpt-4o-mini")
	cfg, err := Load(writeConfig(t, "family: gpt-4o\n"))
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.Family)
}

func TestLoadOpenAIKeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.ResolveOpenAIKey())
}

func TestLoadMalformedFileFails(t *testing.T) {
	_, err := Load(writeConfig(t, "custom_actions: [unclosed\n"))
	require.Error(t, err)
}

func TestLoadMalformedDiscoveredFileFails(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, ".stylecopilot.yaml"), []byte("custom_actions: [unclosed\n"), 0644)
	require.NoError(t, err)

	// Keep any real user config out of the search path.
	t.Setenv("HOME", t.TempDir())
	t.Chdir(dir)

	_, err = Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoadMissingDiscoveredFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "copilot", cfg.Provider)
}

func TestValidateDuplicateActionID(t *testing.T) {
	_, err := Load(writeConfig(t, `
custom_actions:
  - id: fix
    label: a
    prompt: p
  - id: fix
    label: b
    prompt: q
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate custom action id")
}

func TestValidateEmptyCommandID(t *testing.T) {
	_, err := Load(writeConfig(t, `
custom_commands:
  - id: ""
    description: d
    prompt: p
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty id")
}
