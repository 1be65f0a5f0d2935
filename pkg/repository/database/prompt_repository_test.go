package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/shikigami/pkg/domain/interfaces"
	"github.com/m-mizutani/shikigami/pkg/domain/model/agent"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
)

func testPromptRepository(t *testing.T, repo interfaces.Repository) {
	ctx := context.Background()
	agentID := uniqueAgentID("prompt")
	now := baseTime()

	t.Run("get missing config", func(t *testing.T) {
		_, err := repo.GetPromptConfig(ctx, agentID)
		gt.Error(t, err)
		gt.True(t, errors.Is(err, apperr.ErrPromptNotFound))
	})

	initial := &agent.PromptConfig{
		AgentID:      agentID,
		Version:      1,
		SystemPrompt: "You write scripts.",
		Templates:    map[string]string{"default": "Theme: {{.theme}}"},
		ModelOptions: agent.ModelOptions{Model: "gpt-4o"},
		IsActive:     true,
		UpdatedBy:    "seed",
		ChangeNotes:  "initial",
		UpdatedAt:    now,
	}

	t.Run("create config", func(t *testing.T) {
		gt.NoError(t, repo.CreatePromptConfig(ctx, initial))

		got, err := repo.GetPromptConfig(ctx, agentID)
		gt.NoError(t, err)
		gt.Equal(t, got.Version, 1)
		gt.Equal(t, got.SystemPrompt, "You write scripts.")
		gt.Equal(t, got.Templates["default"], "Theme: {{.theme}}")
		gt.Equal(t, got.ModelOptions.Model, "gpt-4o")
		gt.True(t, got.UpdatedAt.Equal(now))
	})

	t.Run("create duplicate config", func(t *testing.T) {
		err := repo.CreatePromptConfig(ctx, initial)
		gt.Error(t, err)
		gt.True(t, errors.Is(err, apperr.ErrPromptAlreadyExists))
	})

	later := now.Add(time.Minute)
	newPrompt := "You write short scripts."
	next := initial.Apply(&agent.PromptDelta{SystemPrompt: &newPrompt}, "alice", "shorter", later)

	t.Run("apply change", func(t *testing.T) {
		gt.NoError(t, repo.ApplyPromptChange(ctx, initial.Snapshot(), next))

		live, err := repo.GetPromptConfig(ctx, agentID)
		gt.NoError(t, err)
		gt.Equal(t, live.Version, 2)
		gt.Equal(t, live.SystemPrompt, newPrompt)
		gt.Equal(t, live.UpdatedBy, "alice")

		v1, err := repo.GetPromptVersion(ctx, agentID, 1)
		gt.NoError(t, err)
		gt.Equal(t, v1.SystemPrompt, "You write scripts.")
		gt.Equal(t, v1.ChangedBy, "seed")
		gt.Equal(t, v1.Templates["default"], "Theme: {{.theme}}")
	})

	t.Run("stale change is rejected", func(t *testing.T) {
		other := "Something else"
		stale := initial.Apply(&agent.PromptDelta{SystemPrompt: &other}, "bob", "race", later)

		err := repo.ApplyPromptChange(ctx, initial.Snapshot(), stale)
		gt.Error(t, err)
		gt.True(t, errors.Is(err, apperr.ErrPromptVersionConflict))

		live, err := repo.GetPromptConfig(ctx, agentID)
		gt.NoError(t, err)
		gt.Equal(t, live.Version, 2)
		gt.Equal(t, live.SystemPrompt, newPrompt)
	})

	t.Run("skipped version is rejected", func(t *testing.T) {
		jump := next.Copy()
		jump.Version = 4

		err := repo.ApplyPromptChange(ctx, next.Snapshot(), jump)
		gt.Error(t, err)
		gt.True(t, errors.Is(err, apperr.ErrPromptVersionConflict))
	})

	t.Run("list versions newest first", func(t *testing.T) {
		third := next.Apply(&agent.PromptDelta{
			Templates: map[string]string{"revision": "Revise: {{.notes}}"},
		}, "carol", "add revision", later.Add(time.Minute))
		gt.NoError(t, repo.ApplyPromptChange(ctx, next.Snapshot(), third))

		versions, err := repo.ListPromptVersions(ctx, agentID, 0)
		gt.NoError(t, err)
		gt.A(t, versions).Length(2)
		gt.Equal(t, versions[0].Version, 2)
		gt.Equal(t, versions[1].Version, 1)

		limited, err := repo.ListPromptVersions(ctx, agentID, 1)
		gt.NoError(t, err)
		gt.A(t, limited).Length(1)
		gt.Equal(t, limited[0].Version, 2)
	})

	t.Run("get missing version", func(t *testing.T) {
		_, err := repo.GetPromptVersion(ctx, agentID, 99)
		gt.Error(t, err)
		gt.True(t, errors.Is(err, apperr.ErrPromptVersionNotFound))
	})

	t.Run("list configs", func(t *testing.T) {
		configs, err := repo.ListPromptConfigs(ctx)
		gt.NoError(t, err)

		found := false
		for _, cfg := range configs {
			if cfg.AgentID == agentID {
				found = true
				gt.Equal(t, cfg.Version, 3)
			}
		}
		gt.True(t, found)
	})
}
