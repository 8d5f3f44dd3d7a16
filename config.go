package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	koanftoml "github.com/knadh/koanf/parsers/toml/v2"
	koanfenv "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
)

// Config represents the application configuration structure
type Config struct {
	Storage   StorageConfig   `koanf:"storage"`
	Logging   LoggingConfig   `koanf:"logging"`
	UI        UIConfig        `koanf:"ui"`
	LLM       LLMConfig       `koanf:"llm"`
	Workspace WorkspaceConfig `koanf:"workspace"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	DatabasePath string `koanf:"database_path"` // Path to SQLite database
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// UIConfig holds UI-specific configuration
type UIConfig struct {
	MarkdownEnabled bool `koanf:"markdown_enabled"`
}

// LLMConfig holds LLM configuration
type LLMConfig struct {
	Provider       string `koanf:"provider"`
	Model          string `koanf:"model"`
	APIKey         string `koanf:"api_key"`
	BaseURL        string `koanf:"base_url"`
	EnableThinking bool   `koanf:"enable_thinking"`
}

// WorkspaceConfig holds editor behavior configuration
type WorkspaceConfig struct {
	Author        string `koanf:"author"`
	FlushWindowMs int    `koanf:"flush_window_ms"` // generation write coalescing window
}

// defaultConfig returns the configuration populated with sensible defaults.
func defaultConfig() Config {
	homeDir, _ := os.UserHomeDir()
	dbPath := filepath.Join(homeDir, ".local", "share", "inkwell", "inkwell.sqlite")

	return Config{
		Storage: StorageConfig{
			DatabasePath: dbPath,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		UI: UIConfig{
			MarkdownEnabled: true,
		},
		LLM: LLMConfig{
			Provider: "fake",
		},
		Workspace: WorkspaceConfig{
			Author:        "author",
			FlushWindowMs: 200,
		},
	}
}

// LoadConfig loads configuration from multiple sources: the user config file,
// a project-local override, then INKWELL_* environment variables.
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Printf("Failed to get user home directory: %v", err)
	} else {
		userConfigPath := filepath.Join(homeDir, ".config", "inkwell", "config.toml")
		if err := k.Load(file.Provider(userConfigPath), koanftoml.Parser()); err != nil {
			log.Printf("Failed to load user config from %s: %v", userConfigPath, err)
		}
	}

	projectConfigPath := "inkwell.toml"
	if _, err := os.Stat(projectConfigPath); err == nil {
		if err := k.Load(file.Provider(projectConfigPath), koanftoml.Parser()); err != nil {
			log.Printf("Failed to load project config from %s: %v", projectConfigPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Printf("Unable to stat project config at %s: %v", projectConfigPath, err)
	}

	// Environment variables with prefix "INKWELL_" override config values,
	// e.g. INKWELL_LLM_PROVIDER=ollama becomes "llm.provider".
	if err := k.Load(koanfenv.Provider(".", koanfenv.Opt{
		Prefix: "INKWELL_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, "INKWELL_")), "_", ".")
			return key, value
		},
	}), nil); err != nil {
		log.Printf("Failed to load environment variables: %v", err)
	}

	// Standard provider environment variables fill a missing API key.
	if k.String("llm.api_key") == "" {
		var envKey string
		switch k.String("llm.provider") {
		case "openai":
			envKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic":
			envKey = os.Getenv("ANTHROPIC_API_KEY")
		case "googleai":
			envKey = os.Getenv("GEMINI_API_KEY")
		}
		if envKey != "" {
			if err := k.Set("llm.api_key", envKey); err != nil {
				log.Printf("Failed to set API key from environment: %v", err)
			}
		}
	}

	config := defaultConfig()
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Keyring is the last resort for the API key so config files stay
	// secret-free.
	if config.LLM.APIKey == "" && config.LLM.Provider != "" && config.LLM.Provider != "fake" && config.LLM.Provider != "ollama" {
		if apiKey, err := GetAPIKeyFromKeyring(config.LLM.Provider); err == nil && apiKey != "" {
			config.LLM.APIKey = apiKey
		}
	}

	return &config, nil
}

// SaveProviderConfig stores the API key in the OS keyring and writes provider
// and model to the user config file, keeping the secret out of it.
func SaveProviderConfig(provider, apiKey, model string) error {
	if apiKey != "" {
		if err := SaveAPIKeyToKeyring(provider, apiKey); err != nil {
			return fmt.Errorf("failed to store API key: %w", err)
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get user home dir: %w", err)
	}
	cfgDir := filepath.Join(homeDir, ".config", "inkwell")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	cfgPath := filepath.Join(cfgDir, "config.toml")

	k := koanf.New(".")
	if _, err := os.Stat(cfgPath); err == nil {
		if err := k.Load(file.Provider(cfgPath), koanftoml.Parser()); err != nil {
			return fmt.Errorf("failed to load existing config: %w", err)
		}
	}
	if err := k.Set("llm.provider", provider); err != nil {
		return fmt.Errorf("failed to update provider: %w", err)
	}
	if model != "" {
		if err := k.Set("llm.model", model); err != nil {
			return fmt.Errorf("failed to update model: %w", err)
		}
	}

	data, err := k.Marshal(koanftoml.Parser())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
