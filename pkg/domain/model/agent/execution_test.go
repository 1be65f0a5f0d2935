package agent_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/shikigami/pkg/domain/model/agent"
	"github.com/m-mizutani/shikigami/pkg/domain/model/llm"
	"github.com/m-mizutani/shikigami/pkg/domain/types"
)

func TestExecutionRecordLifecycle(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	id := types.NewExecutionID(ctx)

	rec := agent.NewExecutionRecord(id, "script_writer", map[string]any{"topic": "summer"},
		agent.InvocationContext{SessionID: "s1", CampaignID: "c1", ArtistName: "Aoi"}, 2, "gpt-4o", now)

	gt.Equal(t, rec.Status, agent.ExecutionRunning)
	gt.False(t, rec.Status.IsFinal())
	gt.Equal(t, rec.CampaignID, "c1")
	gt.Nil(t, rec.CompletedAt)

	done := now.Add(1500 * time.Millisecond)
	rec.Finalize(agent.ExecutionOutcome{
		Status:      agent.ExecutionSuccess,
		Output:      map[string]any{"title": "x"},
		TokenUsage:  llm.NewUsage(100, 20),
		LatencyMs:   1500,
		CompletedAt: done,
	})

	gt.True(t, rec.Status.IsFinal())
	gt.Equal(t, rec.TokenUsage.Total, 120)
	gt.Equal(t, *rec.CompletedAt, done)
}

func TestResult(t *testing.T) {
	meta := agent.Metadata{AgentID: "script_writer", Model: "gpt-4o"}

	ok := agent.NewSuccess("data", meta)
	gt.True(t, ok.Success)
	gt.Nil(t, ok.Error)

	ng := agent.NewFailure(agent.ErrorKindValidation, "$.topic: required property is missing", meta)
	gt.False(t, ng.Success)
	gt.Equal(t, ng.Error.Kind, agent.ErrorKindValidation)
	gt.S(t, ng.Error.Error()).Contains("validation")
	gt.Equal(t, ng.Metadata.AgentID, "script_writer")
}
