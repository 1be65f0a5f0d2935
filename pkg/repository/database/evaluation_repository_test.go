package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/shikigami/pkg/domain/interfaces"
	"github.com/m-mizutani/shikigami/pkg/domain/model/eval"
	"github.com/m-mizutani/shikigami/pkg/domain/types"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
)

func testEvaluationRepository(t *testing.T, repo interfaces.Repository) {
	ctx := context.Background()
	agentID := uniqueAgentID("eval")
	now := baseTime()
	execID := types.NewExecutionID(ctx)

	t.Run("feedback", func(t *testing.T) {
		judge := &eval.Feedback{
			ID:          types.NewFeedbackID(ctx),
			ExecutionID: execID,
			AgentID:     agentID,
			Source:      eval.SourceLLMJudge,
			Scores:      eval.Scores{Overall: 4, Relevance: 5, Quality: 4, Creativity: 3},
			Strengths:   []string{"clear hook"},
			JudgeModel:  "gpt-4o-mini",
			CreatedAt:   now,
		}
		user := &eval.Feedback{
			ID:           types.NewFeedbackID(ctx),
			ExecutionID:  execID,
			AgentID:      agentID,
			Source:       eval.SourceUser,
			Scores:       eval.Scores{Overall: 2},
			FeedbackText: "too long",
			CreatedAt:    now.Add(time.Minute),
		}
		old := &eval.Feedback{
			ID:          types.NewFeedbackID(ctx),
			ExecutionID: types.NewExecutionID(ctx),
			AgentID:     agentID,
			Source:      eval.SourceUser,
			Scores:      eval.Scores{Overall: 5},
			CreatedAt:   now.Add(-48 * time.Hour),
		}
		for _, fb := range []*eval.Feedback{judge, user, old} {
			gt.NoError(t, repo.PutFeedback(ctx, fb))
		}

		byExec, err := repo.ListFeedbackByExecution(ctx, execID)
		gt.NoError(t, err)
		gt.A(t, byExec).Length(2)
		gt.Equal(t, byExec[0].Source, eval.SourceLLMJudge)
		gt.Equal(t, byExec[0].Scores.Relevance, 5)
		gt.Equal(t, byExec[1].FeedbackText, "too long")

		windowed, err := repo.ListFeedback(ctx, agentID, now.Add(-time.Hour), now.Add(time.Hour))
		gt.NoError(t, err)
		gt.A(t, windowed).Length(2)
	})

	t.Run("test cases", func(t *testing.T) {
		low := &eval.TestCase{ID: types.NewTestCaseID(ctx), AgentID: agentID, Name: "b-low", Priority: 1, Active: true, MinOverall: 3}
		high := &eval.TestCase{ID: types.NewTestCaseID(ctx), AgentID: agentID, Name: "a-high", Priority: 5, Active: true, MinOverall: 4}
		inactive := &eval.TestCase{ID: types.NewTestCaseID(ctx), AgentID: agentID, Name: "c-off", Priority: 9, Active: false}
		for _, tc := range []*eval.TestCase{low, high, inactive} {
			gt.NoError(t, repo.PutTestCase(ctx, tc))
		}

		got, err := repo.GetTestCase(ctx, high.ID)
		gt.NoError(t, err)
		gt.Equal(t, got.Name, "a-high")
		gt.Equal(t, got.MinOverall, 4)

		_, err = repo.GetTestCase(ctx, types.NewTestCaseID(ctx))
		gt.True(t, errors.Is(err, apperr.ErrTestCaseNotFound))

		active, err := repo.ListActiveTestCases(ctx, agentID)
		gt.NoError(t, err)
		gt.A(t, active).Length(2)
		gt.Equal(t, active[0].ID, high.ID)
		gt.Equal(t, active[1].ID, low.ID)
	})

	t.Run("test runs", func(t *testing.T) {
		tcID := types.NewTestCaseID(ctx)
		passed := &eval.TestRunResult{
			ID: types.NewTestRunID(ctx), TestCaseID: tcID, AgentID: agentID,
			PromptVersion: 2, Passed: true, Scores: eval.Scores{Overall: 5}, CreatedAt: now,
		}
		failed := &eval.TestRunResult{
			ID: types.NewTestRunID(ctx), TestCaseID: tcID, AgentID: agentID,
			PromptVersion: 2, Passed: false, FailureReasons: []string{"overall score 2 below minimum 4"},
			CreatedAt: now.Add(time.Second),
		}
		otherVersion := &eval.TestRunResult{
			ID: types.NewTestRunID(ctx), TestCaseID: tcID, AgentID: agentID,
			PromptVersion: 1, Passed: true, CreatedAt: now,
		}
		for _, r := range []*eval.TestRunResult{passed, failed, otherVersion} {
			gt.NoError(t, repo.PutTestRun(ctx, r))
		}

		runs, err := repo.ListTestRuns(ctx, agentID, 2)
		gt.NoError(t, err)
		gt.A(t, runs).Length(2)
		gt.True(t, runs[0].Passed)
		gt.False(t, runs[1].Passed)
		gt.Equal(t, runs[1].FailureReasons[0], "overall score 2 below minimum 4")
	})
}
