package llm

// ProviderType is the kind of backend that serves a model
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderClaude ProviderType = "claude"
	ProviderGemini ProviderType = "gemini"
)

func (p ProviderType) String() string {
	return string(p)
}

// IsValid checks if the provider is valid
func (p ProviderType) IsValid() bool {
	switch p {
	case ProviderOpenAI, ProviderClaude, ProviderGemini:
		return true
	default:
		return false
	}
}

// ProviderFromString converts a loosely cased provider name to ProviderType
func ProviderFromString(s string) ProviderType {
	switch s {
	case "openai", "OPENAI", "OpenAI":
		return ProviderOpenAI
	case "claude", "CLAUDE", "Claude", "anthropic":
		return ProviderClaude
	case "gemini", "GEMINI", "Gemini":
		return ProviderGemini
	default:
		return ProviderType(s)
	}
}

// Provider represents an LLM provider configuration
type Provider struct {
	ID          string  `yaml:"-" json:"id"`
	DisplayName string  `yaml:"display_name" json:"display_name"`
	Models      []Model `yaml:"models" json:"models"`
}

// Model represents an LLM model configuration
type Model struct {
	ID          string `yaml:"id" json:"id"`
	DisplayName string `yaml:"display_name" json:"display_name"`
	Description string `yaml:"description" json:"description"`
	Vision      bool   `yaml:"vision" json:"vision"`
}

// ProvidersConfig represents the complete LLM providers configuration
type ProvidersConfig struct {
	Providers map[string]Provider `yaml:"providers"`
	Defaults  DefaultConfig       `yaml:"defaults"`
	Fallback  FallbackConfig      `yaml:"fallback"`
	Judge     DefaultConfig       `yaml:"judge"`
}

// FallbackConfig is the model retried once when the requested one fails
type FallbackConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// DefaultConfig is a provider and model pair
type DefaultConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// ValidateProviderModel checks if a provider and model combination is valid
func (c *ProvidersConfig) ValidateProviderModel(provider, model string) bool {
	_, ok := c.GetModel(provider, model)
	return ok
}

// GetProvider returns a provider by ID
func (c *ProvidersConfig) GetProvider(id string) (*Provider, bool) {
	p, exists := c.Providers[id]
	if !exists {
		return nil, false
	}
	p.ID = id
	return &p, true
}

// GetModel returns a model by provider and model ID
func (c *ProvidersConfig) GetModel(provider, modelID string) (*Model, bool) {
	if provider == "" || modelID == "" {
		return nil, false
	}

	p, exists := c.Providers[provider]
	if !exists {
		return nil, false
	}

	for _, m := range p.Models {
		if m.ID == modelID {
			return &m, true
		}
	}

	return nil, false
}
