package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/shikigami/pkg/domain/interfaces"
	"github.com/m-mizutani/shikigami/pkg/domain/model/agent"
	"github.com/m-mizutani/shikigami/pkg/domain/model/llm"
	"github.com/m-mizutani/shikigami/pkg/domain/types"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
)

func testExecutionRepository(t *testing.T, repo interfaces.Repository) {
	ctx := context.Background()
	agentID := uniqueAgentID("exec")
	now := baseTime()

	ictx := agent.InvocationContext{SessionID: "s1", CampaignID: "c1", ArtistName: "Aoi"}
	rec := agent.NewExecutionRecord(types.NewExecutionID(ctx), agentID,
		map[string]any{"theme": "summer"}, ictx, 3, "gpt-4o", now)

	t.Run("create and get", func(t *testing.T) {
		gt.NoError(t, repo.CreateExecution(ctx, rec))

		got, err := repo.GetExecution(ctx, rec.ID)
		gt.NoError(t, err)
		gt.Equal(t, got.Status, agent.ExecutionRunning)
		gt.Equal(t, got.CampaignID, "c1")
		gt.Equal(t, got.PromptVersion, 3)
		gt.Nil(t, got.CompletedAt)
	})

	t.Run("finalize once", func(t *testing.T) {
		outcome := agent.ExecutionOutcome{
			Status:      agent.ExecutionSuccess,
			Output:      map[string]any{"title": "Sunset"},
			TokenUsage:  llm.NewUsage(10, 20),
			LatencyMs:   150,
			CompletedAt: now.Add(150 * time.Millisecond),
		}
		gt.NoError(t, repo.FinalizeExecution(ctx, rec.ID, outcome))

		got, err := repo.GetExecution(ctx, rec.ID)
		gt.NoError(t, err)
		gt.Equal(t, got.Status, agent.ExecutionSuccess)
		gt.Equal(t, got.TokenUsage.Total, 30)
		gt.Equal(t, got.LatencyMs, int64(150))
		gt.NotNil(t, got.CompletedAt)

		err = repo.FinalizeExecution(ctx, rec.ID, agent.ExecutionOutcome{
			Status:      agent.ExecutionError,
			CompletedAt: now.Add(time.Second),
		})
		gt.Error(t, err)
		gt.True(t, errors.Is(err, apperr.ErrExecutionAlreadyFinalized))

		got, err = repo.GetExecution(ctx, rec.ID)
		gt.NoError(t, err)
		gt.Equal(t, got.Status, agent.ExecutionSuccess)
	})

	t.Run("missing execution", func(t *testing.T) {
		missing := types.NewExecutionID(ctx)

		_, err := repo.GetExecution(ctx, missing)
		gt.True(t, errors.Is(err, apperr.ErrExecutionNotFound))

		err = repo.FinalizeExecution(ctx, missing, agent.ExecutionOutcome{Status: agent.ExecutionError})
		gt.True(t, errors.Is(err, apperr.ErrExecutionNotFound))
	})

	t.Run("list by window", func(t *testing.T) {
		before := agent.NewExecutionRecord(types.NewExecutionID(ctx), agentID, nil, ictx, 3, "gpt-4o", now.Add(-time.Hour))
		after := agent.NewExecutionRecord(types.NewExecutionID(ctx), agentID, nil, ictx, 3, "gpt-4o", now.Add(time.Hour))
		inside := agent.NewExecutionRecord(types.NewExecutionID(ctx), agentID, nil, ictx, 3, "gpt-4o", now.Add(time.Minute))
		for _, r := range []*agent.ExecutionRecord{before, after, inside} {
			gt.NoError(t, repo.CreateExecution(ctx, r))
		}

		records, err := repo.ListExecutions(ctx, agentID, now, now.Add(time.Hour))
		gt.NoError(t, err)
		gt.A(t, records).Length(2)
		gt.Equal(t, records[0].ID, rec.ID)
		gt.Equal(t, records[1].ID, inside.ID)
	})
}
