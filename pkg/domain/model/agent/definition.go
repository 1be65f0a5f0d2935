package agent

import (
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/model/schema"
)

// Definition is the compiled-in default configuration of an agent. A live
// PromptConfig may override its prompt, templates and model options.
type Definition struct {
	ID              string            `yaml:"id" json:"id"`
	Category        string            `yaml:"category" json:"category"`
	Description     string            `yaml:"description" json:"description"`
	Model           ModelOptions      `yaml:"model" json:"model"`
	SystemPrompt    string            `yaml:"system_prompt" json:"system_prompt"`
	Templates       map[string]string `yaml:"templates" json:"templates"`
	DefaultTemplate string            `yaml:"default_template" json:"default_template"`
	InputSchema     *schema.Schema    `yaml:"input_schema" json:"input_schema,omitempty"`
	OutputSchema    *schema.Schema    `yaml:"output_schema" json:"output_schema,omitempty"`
	Dependencies    []string          `yaml:"dependencies" json:"dependencies,omitempty"`
	Memory          MemoryConfig      `yaml:"memory" json:"memory"`
	Vision          bool              `yaml:"vision" json:"vision"`
}

// MemoryConfig controls memory injection into rendered prompts
type MemoryConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Types   []string `yaml:"types" json:"types,omitempty"`
	Limit   int      `yaml:"limit" json:"limit"`
}

// Validate checks that the definition can be executed
func (d *Definition) Validate() error {
	if err := ValidateAgentID(d.ID); err != nil {
		return goerr.Wrap(err, "invalid agent definition")
	}

	if len(d.Templates) == 0 {
		return goerr.New("agent has no templates", goerr.V("agent_id", d.ID))
	}

	if d.DefaultTemplate != "" {
		if _, ok := d.Templates[d.DefaultTemplate]; !ok {
			return goerr.New("default template not found",
				goerr.V("agent_id", d.ID),
				goerr.V("template", d.DefaultTemplate))
		}
	} else if len(d.Templates) > 1 {
		return goerr.New("default template is required when agent has multiple templates",
			goerr.V("agent_id", d.ID))
	}

	if err := d.InputSchema.Check(); err != nil {
		return goerr.Wrap(err, "invalid input schema", goerr.V("agent_id", d.ID))
	}
	if err := d.OutputSchema.Check(); err != nil {
		return goerr.Wrap(err, "invalid output schema", goerr.V("agent_id", d.ID))
	}

	for _, dep := range d.Dependencies {
		if dep == d.ID {
			return goerr.New("agent depends on itself", goerr.V("agent_id", d.ID))
		}
	}

	return nil
}

// TemplateName returns the template to render when the caller does not pick one
func (d *Definition) TemplateName() string {
	if d.DefaultTemplate != "" {
		return d.DefaultTemplate
	}
	names := make([]string, 0, len(d.Templates))
	for name := range d.Templates {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// Clone returns a deep copy of maps and slices so that overrides never leak
// into the catalog.
func (d *Definition) Clone() *Definition {
	c := *d
	c.Model = d.Model.Clone()
	c.Templates = CloneTemplates(d.Templates)
	c.Dependencies = append([]string(nil), d.Dependencies...)
	c.Memory.Types = append([]string(nil), d.Memory.Types...)
	return &c
}

// CloneTemplates copies a template map. Nil stays nil.
func CloneTemplates(src map[string]string) map[string]string {
	if src == nil {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// MergeTemplates overlays override on base key by key
func MergeTemplates(base, override map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}
