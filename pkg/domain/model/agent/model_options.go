package agent

// ModelOptions selects a model and its sampling parameters. Zero values mean
// "unset" and fall back to the underlying default on Merge.
type ModelOptions struct {
	Provider    string   `yaml:"provider,omitempty" json:"provider,omitempty" firestore:"provider"`
	Model       string   `yaml:"model,omitempty" json:"model,omitempty" firestore:"model"`
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty" firestore:"temperature"`
	TopP        *float64 `yaml:"top_p,omitempty" json:"top_p,omitempty" firestore:"top_p"`
	MaxTokens   *int     `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty" firestore:"max_tokens"`
}

// Merge returns o with every key set in override replaced
func (o ModelOptions) Merge(override ModelOptions) ModelOptions {
	merged := o.Clone()
	if override.Provider != "" {
		merged.Provider = override.Provider
	}
	if override.Model != "" {
		merged.Model = override.Model
	}
	if override.Temperature != nil {
		merged.Temperature = ptr(*override.Temperature)
	}
	if override.TopP != nil {
		merged.TopP = ptr(*override.TopP)
	}
	if override.MaxTokens != nil {
		merged.MaxTokens = ptr(*override.MaxTokens)
	}
	return merged
}

// Clone copies pointer fields
func (o ModelOptions) Clone() ModelOptions {
	c := o
	if o.Temperature != nil {
		c.Temperature = ptr(*o.Temperature)
	}
	if o.TopP != nil {
		c.TopP = ptr(*o.TopP)
	}
	if o.MaxTokens != nil {
		c.MaxTokens = ptr(*o.MaxTokens)
	}
	return c
}

// IsZero reports whether no option is set
func (o ModelOptions) IsZero() bool {
	return o.Provider == "" && o.Model == "" &&
		o.Temperature == nil && o.TopP == nil && o.MaxTokens == nil
}

func ptr[T any](v T) *T {
	return &v
}
