package agent_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/shikigami/pkg/domain/model/agent"
	"github.com/m-mizutani/shikigami/pkg/domain/model/schema"
)

func newDefinition() *agent.Definition {
	return &agent.Definition{
		ID:           "keyword_generator",
		Category:     "marketing",
		SystemPrompt: "You generate keywords.",
		Templates: map[string]string{
			"default": "Generate keywords for {{.topic}}",
		},
		Model: agent.ModelOptions{Provider: "openai", Model: "gpt-4o"},
		OutputSchema: &schema.Schema{
			Type:  schema.TypeArray,
			Items: &schema.Schema{Type: schema.TypeString},
		},
		Memory: agent.MemoryConfig{Enabled: true, Types: []string{"preference"}, Limit: 10},
	}
}

func TestDefinitionValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		gt.NoError(t, newDefinition().Validate())
	})

	t.Run("missing templates", func(t *testing.T) {
		def := newDefinition()
		def.Templates = nil
		gt.Error(t, def.Validate())
	})

	t.Run("unknown default template", func(t *testing.T) {
		def := newDefinition()
		def.DefaultTemplate = "missing"
		gt.Error(t, def.Validate())
	})

	t.Run("multiple templates without default", func(t *testing.T) {
		def := newDefinition()
		def.Templates["other"] = "x"
		gt.Error(t, def.Validate())

		def.DefaultTemplate = "other"
		gt.NoError(t, def.Validate())
		gt.Equal(t, def.TemplateName(), "other")
	})

	t.Run("broken schema", func(t *testing.T) {
		def := newDefinition()
		def.InputSchema = &schema.Schema{Type: "tuple"}
		gt.Error(t, def.Validate())
	})

	t.Run("self dependency", func(t *testing.T) {
		def := newDefinition()
		def.Dependencies = []string{"keyword_generator"}
		gt.Error(t, def.Validate())
	})
}

func TestDefinitionClone(t *testing.T) {
	def := newDefinition()
	temp := 0.7
	def.Model.Temperature = &temp

	c := def.Clone()
	c.Templates["default"] = "changed"
	c.Memory.Types[0] = "changed"
	*c.Model.Temperature = 0.1

	gt.Equal(t, def.Templates["default"], "Generate keywords for {{.topic}}")
	gt.Equal(t, def.Memory.Types[0], "preference")
	gt.Equal(t, *def.Model.Temperature, 0.7)
	gt.Equal(t, def.TemplateName(), "default")
}

func TestModelOptionsMerge(t *testing.T) {
	temp := 0.7
	maxTokens := 512
	base := agent.ModelOptions{Provider: "openai", Model: "gpt-4o", Temperature: &temp, MaxTokens: &maxTokens}

	override := 0.2
	merged := base.Merge(agent.ModelOptions{Model: "gpt-4o-mini", Temperature: &override})

	gt.Equal(t, merged.Provider, "openai")
	gt.Equal(t, merged.Model, "gpt-4o-mini")
	gt.Equal(t, *merged.Temperature, 0.2)
	gt.Equal(t, *merged.MaxTokens, 512)
	gt.Nil(t, merged.TopP)

	// base is untouched
	gt.Equal(t, base.Model, "gpt-4o")
	gt.Equal(t, *base.Temperature, 0.7)

	gt.True(t, agent.ModelOptions{}.IsZero())
	gt.False(t, merged.IsZero())
}

func TestMergeTemplates(t *testing.T) {
	merged := agent.MergeTemplates(
		map[string]string{"a": "base-a", "b": "base-b"},
		map[string]string{"b": "override-b", "c": "override-c"},
	)
	gt.Equal(t, merged, map[string]string{"a": "base-a", "b": "override-b", "c": "override-c"})
}
