package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/model/agent"
	"github.com/m-mizutani/shikigami/pkg/domain/model/eval"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
	"golang.org/x/sync/errgroup"
)

// GetAgentMetrics aggregates executions and feedback of agentID in [start, end)
func (h *Harness) GetAgentMetrics(ctx context.Context, agentID string, start, end time.Time) (*eval.Metrics, error) {
	if !start.Before(end) {
		return nil, goerr.New("start must be before end",
			goerr.T(apperr.ErrTagInvalidInput), goerr.V("start", start), goerr.V("end", end))
	}

	var (
		executions []*agent.ExecutionRecord
		feedback   []*eval.Feedback
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		executions, err = h.repo.ListExecutions(egCtx, agentID, start, end)
		if err != nil {
			return goerr.Wrap(err, "failed to list executions", goerr.TV(apperr.AgentIDKey, agentID))
		}
		return nil
	})
	eg.Go(func() error {
		var err error
		feedback, err = h.repo.ListFeedback(egCtx, agentID, start, end)
		if err != nil {
			return goerr.Wrap(err, "failed to list feedback", goerr.TV(apperr.AgentIDKey, agentID))
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	m := &eval.Metrics{
		AgentID:         agentID,
		Start:           start,
		End:             end,
		TotalExecutions: len(executions),
	}

	var latencySum int64
	var finished int
	for _, rec := range executions {
		if rec.Status == agent.ExecutionSuccess {
			m.SuccessCount++
		}
		if rec.Status.IsFinal() {
			latencySum += rec.LatencyMs
			finished++
		}
		m.TotalTokens += rec.TokenUsage.Total
	}
	if m.TotalExecutions > 0 {
		m.SuccessRate = float64(m.SuccessCount) / float64(m.TotalExecutions) * 100
	}
	if finished > 0 {
		m.AvgLatencyMs = float64(latencySum) / float64(finished)
	}

	var judgeSum, userSum int
	for _, fb := range feedback {
		switch fb.Source {
		case eval.SourceLLMJudge:
			judgeSum += fb.Scores.Overall
			m.JudgeFeedbackCount++
		case eval.SourceUser:
			userSum += fb.Scores.Overall
			m.UserFeedbackCount++
		}
	}
	if m.JudgeFeedbackCount > 0 {
		m.AvgJudgeScore = float64(judgeSum) / float64(m.JudgeFeedbackCount)
	}
	if m.UserFeedbackCount > 0 {
		m.AvgUserScore = float64(userSum) / float64(m.UserFeedbackCount)
	}

	return m, nil
}
