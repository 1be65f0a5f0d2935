package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/shikigami/pkg/cli/config"
	"github.com/urfave/cli/v3"
)

func TestLLMConfig_LoadAndValidate(t *testing.T) {
	t.Run("Load valid YAML configuration", func(t *testing.T) {
		llmConfig := &config.LLMConfig{
			ProvidersFile:  "testdata/valid_providers.yaml",
			GeminiProject:  "test-project",
			GeminiLocation: "us-central1",
			OpenAIAPIKey:   "test-openai-key",
		}
		providersConfig, err := llmConfig.LoadAndValidate()
		gt.NoError(t, err).Required()
		gt.Equal(t, len(providersConfig.Providers), 3)

		openai, exists := providersConfig.GetProvider("openai")
		gt.True(t, exists)
		gt.Equal(t, openai.ID, "openai")
		gt.Equal(t, openai.DisplayName, "OpenAI")
		gt.Equal(t, len(openai.Models), 2)

		gt.Equal(t, providersConfig.Defaults.Provider, "openai")
		gt.Equal(t, providersConfig.Defaults.Model, "gpt-4o")
		gt.True(t, providersConfig.Fallback.Enabled)
		gt.Equal(t, providersConfig.Fallback.Provider, "gemini")
		gt.Equal(t, providersConfig.Judge.Model, "gpt-4o-mini")
	})

	t.Run("Overrides replace file defaults", func(t *testing.T) {
		llmConfig := &config.LLMConfig{
			ProvidersFile:   "testdata/valid_providers.yaml",
			GeminiProject:   "test-project",
			ClaudeAPIKey:    "test-claude-key",
			DefaultProvider: "claude",
			DefaultModel:    "claude-sonnet-4-20250514",
		}
		providersConfig, err := llmConfig.LoadAndValidate()
		gt.NoError(t, err).Required()
		gt.Equal(t, providersConfig.Defaults.Provider, "claude")
		gt.Equal(t, providersConfig.Defaults.Model, "claude-sonnet-4-20250514")
	})

	t.Run("Missing credentials for default provider", func(t *testing.T) {
		llmConfig := &config.LLMConfig{
			ProvidersFile: "testdata/valid_providers.yaml",
			GeminiProject: "test-project",
		}
		_, err := llmConfig.LoadAndValidate()
		gt.Error(t, err)
	})

	t.Run("Missing credentials for enabled fallback", func(t *testing.T) {
		llmConfig := &config.LLMConfig{
			ProvidersFile: "testdata/valid_providers.yaml",
			OpenAIAPIKey:  "test-openai-key",
		}
		_, err := llmConfig.LoadAndValidate()
		gt.Error(t, err)
	})

	t.Run("Load non-existent file", func(t *testing.T) {
		llmConfig := &config.LLMConfig{
			ProvidersFile: "/non/existent/file.yaml",
		}
		providersConfig, err := llmConfig.LoadAndValidate()
		gt.Error(t, err)
		gt.Nil(t, providersConfig)
	})

	t.Run("Load invalid YAML", func(t *testing.T) {
		llmConfig := &config.LLMConfig{
			ProvidersFile: "testdata/invalid_providers.yaml",
		}
		providersConfig, err := llmConfig.LoadAndValidate()
		gt.Error(t, err)
		gt.Nil(t, providersConfig)
	})

	t.Run("Empty configuration file", func(t *testing.T) {
		llmConfig := &config.LLMConfig{
			ProvidersFile: "testdata/empty_providers.yaml",
		}
		providersConfig, err := llmConfig.LoadAndValidate()
		gt.NoError(t, err).Required()
		gt.Equal(t, len(providersConfig.Providers), 0)
	})
}

func TestLLMConfig_BuildFactory(t *testing.T) {
	llmConfig := &config.LLMConfig{
		ProvidersFile: "testdata/valid_providers.yaml",
		OpenAIAPIKey:  "test-openai-key",
		OpenAIBaseURL: "http://127.0.0.1:1",
		GeminiProject: "test-project",
	}
	providersConfig, err := llmConfig.LoadAndValidate()
	gt.NoError(t, err).Required()

	// The default backend is created eagerly, but no request is sent
	factory, err := llmConfig.BuildFactory(context.Background(), providersConfig)
	gt.NoError(t, err).Required()
	gt.Equal(t, factory.Config().Defaults.Model, "gpt-4o")
}

func TestLLMConfig_Flags(t *testing.T) {
	llmConfig := &config.LLMConfig{}
	flags := llmConfig.Flags()
	gt.Equal(t, len(flags), 8)

	for _, f := range flags {
		_, ok := f.(*cli.StringFlag)
		gt.True(t, ok)
	}
}

func TestLLMConfig_ValidateProviderModel(t *testing.T) {
	llmConfig := &config.LLMConfig{
		ProvidersFile: "testdata/valid_providers.yaml",
		GeminiProject: "test-project",
		OpenAIAPIKey:  "test-key",
	}
	providersConfig, err := llmConfig.LoadAndValidate()
	gt.NoError(t, err).Required()

	gt.True(t, providersConfig.ValidateProviderModel("openai", "gpt-4o-mini"))
	gt.True(t, providersConfig.ValidateProviderModel("gemini", "gemini-2.5-flash"))
	gt.True(t, providersConfig.ValidateProviderModel("claude", "claude-sonnet-4-20250514"))
	gt.False(t, providersConfig.ValidateProviderModel("anthropic", "some-model"))
	gt.False(t, providersConfig.ValidateProviderModel("openai", "gpt-4"))
}

func TestLLMConfig_DefaultConfiguration(t *testing.T) {
	llmConfig := &config.LLMConfig{
		OpenAIAPIKey: "test-openai-key",
	}
	providersConfig, err := llmConfig.LoadAndValidate()
	gt.NoError(t, err).Required()

	for _, id := range []string{"openai", "claude", "gemini"} {
		_, ok := providersConfig.Providers[id]
		gt.True(t, ok)
	}
	gt.True(t, providersConfig.ValidateProviderModel(providersConfig.Judge.Provider, providersConfig.Judge.Model))

	// Image input is only wired for the OpenAI backend
	for id, p := range providersConfig.Providers {
		for _, m := range p.Models {
			gt.Equal(t, m.Vision, id == "openai")
		}
	}
}

func TestGenerateConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "llm.yaml")
	gt.NoError(t, config.GenerateConfigFile(path)).Required()

	data, err := os.ReadFile(path)
	gt.NoError(t, err).Required()
	gt.Equal(t, string(data), config.GetDefaultProvidersConfig())
}
