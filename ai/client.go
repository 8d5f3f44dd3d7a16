// Package ai streams chat and document-generation completions from a
// langchaingo model into the workspace store's event handlers.
package ai

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/fake"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Config selects and authenticates the model provider.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// NewModel creates an llms.Model for the configured provider.
func NewModel(cfg Config) (llms.Model, error) {
	switch cfg.Provider {
	case "", "fake":
		return fake.NewFakeLLM([]string{}), nil
	case "ollama":
		baseURL, err := ollamaBaseURL(cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		opts := []ollama.Option{
			ollama.WithModel(cfg.Model),
			ollama.WithServerURL(baseURL),
		}
		return ollama.New(opts...)
	case "openai":
		opts := []openai.Option{
			openai.WithModel(cfg.Model),
		}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithToken(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	case "anthropic":
		opts := []anthropic.Option{
			anthropic.WithModel(cfg.Model),
		}
		if cfg.APIKey != "" {
			opts = append(opts, anthropic.WithToken(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		return anthropic.New(opts...)
	case "googleai":
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
			if apiKey == "" {
				return nil, fmt.Errorf("missing Google AI API key. Set it in the config file or via GEMINI_API_KEY environment variable")
			}
		}
		opts := []googleai.Option{
			googleai.WithDefaultModel(cfg.Model),
			googleai.WithAPIKey(apiKey),
		}
		return googleai.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

func ollamaBaseURL(raw string) (string, error) {
	if raw == "" {
		return "http://127.0.0.1:11434", nil
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "http://" + raw
	}
	return strings.TrimSuffix(raw, "/"), nil
}
