package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem/llm/claude"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/m-mizutani/shikigami/pkg/domain/model/llm"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
	"github.com/m-mizutani/shikigami/pkg/utils/logging"
)

// Credential holds authentication information for LLM providers
type Credential struct {
	APIKey    string `masq:"secret"`
	BaseURL   string // OpenAI compatible endpoint override
	ProjectID string // For Gemini/VertexAI
	Location  string // For Gemini/VertexAI
}

// backend performs a single generation against one provider/model pair
type backend interface {
	generate(ctx context.Context, req *llm.Request) (*llm.Response, error)
}

// Factory creates and caches provider clients and routes requests to them.
// It implements interfaces.ModelClient.
type Factory struct {
	config      *llm.ProvidersConfig
	credentials map[llm.ProviderType]Credential

	mu       sync.Mutex
	backends map[string]backend // Cache for created clients
}

// NewFactory creates a new LLM factory
func NewFactory(ctx context.Context, config *llm.ProvidersConfig, credentials map[llm.ProviderType]Credential) (*Factory, error) {
	if config == nil {
		return nil, goerr.New("LLM providers config is required")
	}

	f := &Factory{
		config:      config,
		credentials: credentials,
		backends:    make(map[string]backend),
	}

	readyProviders := make([]string, 0, len(credentials))
	for providerType, cred := range credentials {
		if hasCredential(providerType, cred) {
			readyProviders = append(readyProviders, providerType.String())
		}
	}

	// Create default client (validate credentials at startup)
	if config.Defaults.Provider != "" && config.Defaults.Model != "" {
		if _, err := f.getBackend(ctx, config.Defaults.Provider, config.Defaults.Model, llm.SamplingOptions{}); err != nil {
			return nil, goerr.Wrap(err, "failed to create default LLM client - check your API keys and configuration",
				goerr.TV(apperr.LLMProviderKey, config.Defaults.Provider),
				goerr.TV(apperr.LLMModelKey, config.Defaults.Model))
		}
	}

	ctxlog.From(ctx).Info("LLM factory initialized",
		slog.Any("ready_providers", readyProviders),
		slog.String("default_client", fmt.Sprintf("%s:%s", config.Defaults.Provider, config.Defaults.Model)),
		slog.Bool("fallback", config.Fallback.Enabled),
	)

	return f, nil
}

// Config returns the providers configuration
func (f *Factory) Config() *llm.ProvidersConfig {
	return f.config
}

// Generate routes req to the requested provider/model, falling back to the
// configured defaults for empty fields. When the call fails and a fallback
// model is enabled, the request is retried once on it.
func (f *Factory) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, goerr.New("request is required", goerr.T(apperr.ErrTagValidation))
	}

	provider, model := f.resolve(req)
	resp, err := f.generateWith(ctx, provider, model, req)
	if err == nil {
		return resp, nil
	}

	fb := f.config.Fallback
	if !fb.Enabled || fb.Provider == "" || fb.Model == "" ||
		(fb.Provider == provider && fb.Model == model) ||
		goerr.HasTag(err, apperr.ErrTagValidation) {
		return nil, err
	}

	ctxlog.From(ctx).Warn("LLM call failed, retrying with fallback model",
		"provider", provider,
		"model", model,
		"fallback_provider", fb.Provider,
		"fallback_model", fb.Model,
		logging.ErrAttr(err))

	resp, fbErr := f.generateWith(ctx, fb.Provider, fb.Model, req)
	if fbErr != nil {
		return nil, goerr.Wrap(fbErr, "fallback model also failed",
			goerr.V("primary_error", err.Error()))
	}
	return resp, nil
}

func (f *Factory) generateWith(ctx context.Context, provider, model string, req *llm.Request) (*llm.Response, error) {
	if len(req.Images) > 0 {
		m, ok := f.config.GetModel(provider, model)
		if ok && !m.Vision {
			return nil, goerr.New("model does not accept images",
				goerr.T(apperr.ErrTagValidation),
				goerr.TV(apperr.LLMProviderKey, provider),
				goerr.TV(apperr.LLMModelKey, model))
		}
	}

	b, err := f.getBackend(ctx, provider, model, req.Sampling)
	if err != nil {
		return nil, err
	}

	ctxlog.From(ctx).Debug("invoking LLM",
		"provider", provider,
		"model", model,
		"images", len(req.Images),
		"format", req.ResponseFormat)

	resp, err := b.generate(ctx, req)
	if err != nil {
		return nil, goerr.Wrap(err, "LLM generation failed",
			goerr.T(apperr.ErrTagLLMError),
			goerr.TV(apperr.LLMProviderKey, provider),
			goerr.TV(apperr.LLMModelKey, model))
	}
	return resp, nil
}

func (f *Factory) resolve(req *llm.Request) (string, string) {
	provider := req.Provider.String()
	model := req.Model

	if provider == "" {
		provider = f.config.Defaults.Provider
		if model == "" {
			model = f.config.Defaults.Model
		}
	}
	if model == "" {
		if provider == f.config.Defaults.Provider {
			model = f.config.Defaults.Model
		} else if p, ok := f.config.GetProvider(provider); ok && len(p.Models) > 0 {
			model = p.Models[0].ID
		}
	}
	return provider, model
}

// getBackend creates an LLM client based on provider and model. gollem
// clients carry sampling options from construction, so for Claude and Gemini
// each distinct sampling set gets its own client.
func (f *Factory) getBackend(ctx context.Context, provider, model string, sampling llm.SamplingOptions) (backend, error) {
	if !f.config.ValidateProviderModel(provider, model) {
		return nil, goerr.Wrap(apperr.ErrLLMProviderNotSupported, "invalid provider/model combination",
			goerr.TV(apperr.LLMProviderKey, provider),
			goerr.TV(apperr.LLMModelKey, model))
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	providerType := llm.ProviderFromString(provider)
	cacheKey := backendKey(providerType, model, sampling)
	if b, exists := f.backends[cacheKey]; exists {
		return b, nil
	}

	cred, exists := f.credentials[providerType]
	if !exists || !hasCredential(providerType, cred) {
		return nil, goerr.Wrap(apperr.ErrLLMNotConfigured, "no credentials configured for provider",
			goerr.TV(apperr.LLMProviderKey, provider))
	}

	var b backend
	switch providerType {
	case llm.ProviderOpenAI:
		b = newOpenAIBackend(cred, model)

	case llm.ProviderClaude:
		client, err := claude.New(ctx, cred.APIKey, claudeOptions(model, sampling)...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create Claude client")
		}
		b = newGollemBackend(client, providerType, model)

	case llm.ProviderGemini:
		client, err := gemini.New(ctx, cred.ProjectID, cred.Location, geminiOptions(model, sampling)...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create Gemini client")
		}
		b = newGollemBackend(client, providerType, model)

	default:
		return nil, goerr.Wrap(apperr.ErrLLMProviderNotSupported, "unsupported provider",
			goerr.TV(apperr.LLMProviderKey, provider))
	}

	f.backends[cacheKey] = b
	return b, nil
}

// backendKey identifies a cached backend. OpenAI applies sampling per
// request, so its key ignores it.
func backendKey(provider llm.ProviderType, model string, s llm.SamplingOptions) string {
	key := fmt.Sprintf("%s:%s", provider, model)
	if provider == llm.ProviderOpenAI {
		return key
	}
	if s.Temperature != nil {
		key += fmt.Sprintf("|t=%g", *s.Temperature)
	}
	if s.TopP != nil {
		key += fmt.Sprintf("|p=%g", *s.TopP)
	}
	if s.MaxTokens != nil {
		key += fmt.Sprintf("|m=%d", *s.MaxTokens)
	}
	return key
}

func claudeOptions(model string, s llm.SamplingOptions) []claude.Option {
	opts := []claude.Option{claude.WithModel(model)}
	if s.Temperature != nil {
		opts = append(opts, claude.WithTemperature(*s.Temperature))
	}
	if s.TopP != nil {
		opts = append(opts, claude.WithTopP(*s.TopP))
	}
	if s.MaxTokens != nil {
		opts = append(opts, claude.WithMaxTokens(int64(*s.MaxTokens)))
	}
	return opts
}

func geminiOptions(model string, s llm.SamplingOptions) []gemini.Option {
	opts := []gemini.Option{gemini.WithModel(model)}
	if s.Temperature != nil {
		opts = append(opts, gemini.WithTemperature(float32(*s.Temperature)))
	}
	if s.TopP != nil {
		opts = append(opts, gemini.WithTopP(float32(*s.TopP)))
	}
	if s.MaxTokens != nil {
		opts = append(opts, gemini.WithMaxTokens(int32(*s.MaxTokens)))
	}
	return opts
}

func hasCredential(provider llm.ProviderType, cred Credential) bool {
	switch provider {
	case llm.ProviderOpenAI, llm.ProviderClaude:
		return cred.APIKey != ""
	case llm.ProviderGemini:
		return cred.ProjectID != "" && cred.Location != ""
	default:
		return false
	}
}
