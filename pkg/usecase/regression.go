package usecase

import (
	"context"
	"fmt"
	"strconv"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/interfaces"
	"github.com/m-mizutani/shikigami/pkg/domain/model/agent"
	"github.com/m-mizutani/shikigami/pkg/domain/model/eval"
	"github.com/m-mizutani/shikigami/pkg/domain/types"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
	"github.com/m-mizutani/shikigami/pkg/utils/errors"
)

// Executor runs an agent on one test input
type Executor func(ctx context.Context, input any) (*agent.Result, error)

// ExecuteFunc adapts a runtime agent to an Executor. Runs are not
// auto-evaluated since the regression suite judges them itself.
func ExecuteFunc(a *Agent) Executor {
	return func(ctx context.Context, input any) (*agent.Result, error) {
		return a.Execute(ctx, input, agent.InvocationContext{}, WithoutEvaluation()), nil
	}
}

// RunRegressionTests runs every active test case of agentID through execute
// and judges the outputs. Runs for the same agent and prompt version are
// serialized.
func (h *Harness) RunRegressionTests(ctx context.Context, agentID string, promptVersion int, execute Executor) (*eval.RegressionReport, error) {
	if execute == nil {
		return nil, goerr.New("executor is required", goerr.T(apperr.ErrTagInvalidInput))
	}

	unlock := h.locks.Lock(agentID + "@" + strconv.Itoa(promptVersion))
	defer unlock()

	cases, err := h.repo.ListActiveTestCases(ctx, agentID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list test cases", goerr.TV(apperr.AgentIDKey, agentID))
	}

	report := &eval.RegressionReport{
		AgentID:       agentID,
		PromptVersion: promptVersion,
		Results:       make([]*eval.TestRunResult, 0, len(cases)),
	}

	for _, tc := range cases {
		result := h.runTestCase(ctx, tc, promptVersion, execute)
		if result.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
		report.Results = append(report.Results, result)

		if err := h.repo.PutTestRun(ctx, result); err != nil {
			errors.Warn(ctx, goerr.Wrap(err, "failed to save test run", goerr.T(apperr.ErrTagPersistence)),
				"test run not saved", "agent_id", agentID, "test_case_id", tc.ID)
		}
	}

	ctxlog.From(ctx).Info("regression finished",
		"agent_id", agentID,
		"prompt_version", promptVersion,
		"passed", report.Passed,
		"failed", report.Failed)
	return report, nil
}

func (h *Harness) runTestCase(ctx context.Context, tc *eval.TestCase, promptVersion int, execute Executor) *eval.TestRunResult {
	result := &eval.TestRunResult{
		ID:            types.NewTestRunID(ctx),
		TestCaseID:    tc.ID,
		AgentID:       tc.AgentID,
		PromptVersion: promptVersion,
		CreatedAt:     h.now(),
	}

	out, err := execute(ctx, tc.Input)
	switch {
	case err != nil:
		result.FailureReasons = []string{fmt.Sprintf("execution failed: %s", err.Error())}
		return result
	case out == nil:
		result.FailureReasons = []string{"execution failed: no result"}
		return result
	case !out.Success:
		msg := "unknown error"
		if out.Error != nil {
			msg = out.Error.Error()
		}
		result.ExecutionID = out.Metadata.ExecutionID
		result.FailureReasons = []string{fmt.Sprintf("execution failed: %s", msg)}
		return result
	}

	result.ExecutionID = out.Metadata.ExecutionID
	result.Output = out.Data

	evaluation, err := h.EvaluateOutput(ctx, interfaces.EvaluateRequest{
		AgentID:  tc.AgentID,
		Input:    tc.Input,
		Output:   out.Data,
		Criteria: tc.ExpectedCriteria,
	})
	if err != nil || evaluation == nil {
		errors.Warn(ctx, err, "judge unavailable in regression", "test_case_id", tc.ID)
		result.FailureReasons = []string{"evaluation unavailable: judge returned no verdict"}
		return result
	}

	result.Scores = evaluation.Scores
	result.FailureReasons = tc.Check(evaluation.Scores)
	result.Passed = len(result.FailureReasons) == 0
	return result
}
