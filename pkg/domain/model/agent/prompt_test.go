package agent_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/shikigami/pkg/domain/model/agent"
)

func newPromptConfig(now time.Time) *agent.PromptConfig {
	return &agent.PromptConfig{
		AgentID:      "script_writer",
		Version:      3,
		SystemPrompt: "v3 system",
		Templates:    map[string]string{"default": "write {{.topic}}", "short": "brief {{.topic}}"},
		IsActive:     true,
		UpdatedBy:    "alice",
		ChangeNotes:  "third",
		UpdatedAt:    now,
	}
}

func TestPromptConfigSnapshot(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	cfg := newPromptConfig(now)

	snap := cfg.Snapshot()
	gt.Equal(t, snap.Version, 3)
	gt.Equal(t, snap.SystemPrompt, "v3 system")
	gt.Equal(t, snap.ChangedBy, "alice")
	gt.Equal(t, snap.ChangeNotes, "third")
	gt.Equal(t, snap.CreatedAt, now)

	cfg.Templates["default"] = "mutated"
	gt.Equal(t, snap.Templates["default"], "write {{.topic}}")
}

func TestPromptConfigApply(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	later := now.Add(time.Hour)
	cfg := newPromptConfig(now)

	sys := "v4 system"
	inactive := false
	temp := 0.3
	next := cfg.Apply(&agent.PromptDelta{
		SystemPrompt: &sys,
		Templates:    map[string]string{"short": "", "long": "elaborate {{.topic}}"},
		ModelOptions: &agent.ModelOptions{Temperature: &temp},
		IsActive:     &inactive,
	}, "bob", "tune", later)

	gt.Equal(t, next.Version, 4)
	gt.Equal(t, next.SystemPrompt, "v4 system")
	gt.Equal(t, next.Templates, map[string]string{"default": "write {{.topic}}", "long": "elaborate {{.topic}}"})
	gt.Equal(t, *next.ModelOptions.Temperature, 0.3)
	gt.False(t, next.IsActive)
	gt.Equal(t, next.UpdatedBy, "bob")
	gt.Equal(t, next.ChangeNotes, "tune")
	gt.Equal(t, next.UpdatedAt, later)

	// original untouched
	gt.Equal(t, cfg.Version, 3)
	gt.Equal(t, cfg.SystemPrompt, "v3 system")
	gt.Equal(t, len(cfg.Templates), 2)
}

func TestPromptConfigRestoreFrom(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	cfg := newPromptConfig(now)

	target := &agent.PromptVersion{
		AgentID:      "script_writer",
		Version:      1,
		SystemPrompt: "v1 system",
		Templates:    map[string]string{"default": "v1 {{.topic}}"},
	}

	next := cfg.RestoreFrom(target, "carol", "rollback", now)
	gt.Equal(t, next.Version, 4)
	gt.NotEqual(t, next.Version, target.Version)
	gt.Equal(t, next.SystemPrompt, "v1 system")
	gt.Equal(t, next.Templates, map[string]string{"default": "v1 {{.topic}}"})
	gt.True(t, next.IsActive)
}

func TestPromptDeltaIsEmpty(t *testing.T) {
	var nilDelta *agent.PromptDelta
	gt.True(t, nilDelta.IsEmpty())
	gt.True(t, (&agent.PromptDelta{}).IsEmpty())

	active := true
	gt.False(t, (&agent.PromptDelta{IsActive: &active}).IsEmpty())
}

func TestPromptConfigValidate(t *testing.T) {
	cfg := newPromptConfig(time.Now())
	gt.NoError(t, cfg.Validate())

	cfg.Version = 0
	gt.Error(t, cfg.Validate())

	cfg.Version = 1
	cfg.AgentID = "bad id"
	gt.Error(t, cfg.Validate())
}
