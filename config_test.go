package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := defaultConfig()

	assert.Equal(t, "fake", config.LLM.Provider)
	assert.Equal(t, "info", config.Logging.Level)
	assert.True(t, config.UI.MarkdownEnabled)
	assert.Equal(t, 200, config.Workspace.FlushWindowMs)
	assert.Contains(t, config.Storage.DatabasePath, filepath.Join("inkwell", "inkwell.sqlite"))
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	config, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "fake", config.LLM.Provider)
	assert.Equal(t, 200, config.Workspace.FlushWindowMs)
}

func TestLoadConfig_ProjectFileOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)

	toml := `
[llm]
provider = "ollama"
model = "llama3"

[workspace]
author = "ada"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "inkwell.toml"), []byte(toml), 0o600))

	config, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "ollama", config.LLM.Provider)
	assert.Equal(t, "llama3", config.LLM.Model)
	assert.Equal(t, "ada", config.Workspace.Author)
	// Untouched sections keep their defaults.
	assert.Equal(t, "info", config.Logging.Level)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)

	toml := `
[llm]
provider = "ollama"
model = "llama3"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "inkwell.toml"), []byte(toml), 0o600))
	t.Setenv("INKWELL_LLM_MODEL", "mistral")

	config, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "ollama", config.LLM.Provider)
	assert.Equal(t, "mistral", config.LLM.Model)
}

func TestLoadConfig_APIKeyFromProviderEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("INKWELL_LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	config, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "openai", config.LLM.Provider)
	assert.Equal(t, "sk-test", config.LLM.APIKey)
}

func TestSaveProviderConfig_WritesUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	require.NoError(t, SaveProviderConfig("ollama", "", "llama3"))

	data, err := os.ReadFile(filepath.Join(home, ".config", "inkwell", "config.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "ollama")
	assert.Contains(t, string(data), "llama3")

	config, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "ollama", config.LLM.Provider)
	assert.Equal(t, "llama3", config.LLM.Model)
}
