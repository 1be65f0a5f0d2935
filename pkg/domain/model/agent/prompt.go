package agent

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// PromptConfig is the live, mutable prompt configuration of an agent
type PromptConfig struct {
	AgentID      string            `json:"agent_id" firestore:"agent_id"`
	Version      int               `json:"version" firestore:"version"`
	SystemPrompt string            `json:"system_prompt" firestore:"system_prompt"`
	Templates    map[string]string `json:"templates" firestore:"templates"`
	ModelOptions ModelOptions      `json:"model_options" firestore:"model_options"`
	IsActive     bool              `json:"is_active" firestore:"is_active"`
	UpdatedBy    string            `json:"updated_by" firestore:"updated_by"`
	ChangeNotes  string            `json:"change_notes" firestore:"change_notes"`
	UpdatedAt    time.Time         `json:"updated_at" firestore:"updated_at"`
}

// PromptVersion is an immutable snapshot of a former live PromptConfig
type PromptVersion struct {
	AgentID      string            `json:"agent_id" firestore:"agent_id"`
	Version      int               `json:"version" firestore:"version"`
	SystemPrompt string            `json:"system_prompt" firestore:"system_prompt"`
	Templates    map[string]string `json:"templates" firestore:"templates"`
	ModelOptions ModelOptions      `json:"model_options" firestore:"model_options"`
	ChangedBy    string            `json:"changed_by" firestore:"changed_by"`
	ChangeNotes  string            `json:"change_notes" firestore:"change_notes"`
	CreatedAt    time.Time         `json:"created_at" firestore:"created_at"`
}

// PromptDelta is a partial update of a PromptConfig. Nil fields are left
// untouched. In Templates an empty value removes the key.
type PromptDelta struct {
	SystemPrompt *string          `json:"system_prompt,omitempty"`
	Templates    map[string]string `json:"templates,omitempty"`
	ModelOptions *ModelOptions    `json:"model_options,omitempty"`
	IsActive     *bool            `json:"is_active,omitempty"`
}

// IsEmpty reports whether the delta changes nothing
func (d *PromptDelta) IsEmpty() bool {
	return d == nil || (d.SystemPrompt == nil && len(d.Templates) == 0 &&
		d.ModelOptions == nil && d.IsActive == nil)
}

// Copy returns a deep copy of the config
func (c *PromptConfig) Copy() *PromptConfig {
	cp := *c
	cp.Templates = CloneTemplates(c.Templates)
	cp.ModelOptions = c.ModelOptions.Clone()
	return &cp
}

// Snapshot converts the live config into its history row. The row keeps the
// author and notes of the version it captures.
func (c *PromptConfig) Snapshot() *PromptVersion {
	return &PromptVersion{
		AgentID:      c.AgentID,
		Version:      c.Version,
		SystemPrompt: c.SystemPrompt,
		Templates:    CloneTemplates(c.Templates),
		ModelOptions: c.ModelOptions.Clone(),
		ChangedBy:    c.UpdatedBy,
		ChangeNotes:  c.ChangeNotes,
		CreatedAt:    c.UpdatedAt,
	}
}

// Apply returns the next live config produced by delta. The version is bumped
// by exactly one.
func (c *PromptConfig) Apply(delta *PromptDelta, who, why string, now time.Time) *PromptConfig {
	next := c.Copy()
	next.Version = c.Version + 1
	next.UpdatedBy = who
	next.ChangeNotes = why
	next.UpdatedAt = now

	if delta == nil {
		return next
	}

	if delta.SystemPrompt != nil {
		next.SystemPrompt = *delta.SystemPrompt
	}
	if len(delta.Templates) > 0 {
		if next.Templates == nil {
			next.Templates = make(map[string]string, len(delta.Templates))
		}
		for k, v := range delta.Templates {
			if v == "" {
				delete(next.Templates, k)
				continue
			}
			next.Templates[k] = v
		}
	}
	if delta.ModelOptions != nil {
		next.ModelOptions = next.ModelOptions.Merge(*delta.ModelOptions)
	}
	if delta.IsActive != nil {
		next.IsActive = *delta.IsActive
	}

	return next
}

// RestoreFrom returns the next live config carrying the content of a history
// snapshot. The version moves forward, it never goes back to target.Version.
func (c *PromptConfig) RestoreFrom(target *PromptVersion, who, why string, now time.Time) *PromptConfig {
	return &PromptConfig{
		AgentID:      c.AgentID,
		Version:      c.Version + 1,
		SystemPrompt: target.SystemPrompt,
		Templates:    CloneTemplates(target.Templates),
		ModelOptions: target.ModelOptions.Clone(),
		IsActive:     true,
		UpdatedBy:    who,
		ChangeNotes:  why,
		UpdatedAt:    now,
	}
}

// Validate checks the live config
func (c *PromptConfig) Validate() error {
	if err := ValidateAgentID(c.AgentID); err != nil {
		return goerr.Wrap(err, "invalid prompt config")
	}
	if c.Version < 1 {
		return goerr.New("prompt version must start from 1",
			goerr.V("agent_id", c.AgentID), goerr.V("version", c.Version))
	}
	if len(c.SystemPrompt) > maxSystemPromptLength {
		return goerr.New("system prompt is too long",
			goerr.V("agent_id", c.AgentID), goerr.V("length", len(c.SystemPrompt)))
	}
	return nil
}
