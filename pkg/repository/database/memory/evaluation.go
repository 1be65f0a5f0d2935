package memory

import (
	"context"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/model/eval"
	"github.com/m-mizutani/shikigami/pkg/domain/types"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
)

// PutFeedback stores a feedback row
func (c *Client) PutFeedback(ctx context.Context, fb *eval.Feedback) error {
	if fb == nil {
		return goerr.New("feedback cannot be nil")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	fbCopy := *fb
	c.feedback[fb.ID] = &fbCopy
	return nil
}

// ListFeedback returns feedback of agentID created in [start, end), oldest first
func (c *Client) ListFeedback(ctx context.Context, agentID string, start, end time.Time) ([]*eval.Feedback, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []*eval.Feedback
	for _, fb := range c.feedback {
		if fb.AgentID != agentID || !inWindow(fb.CreatedAt, start, end) {
			continue
		}
		fbCopy := *fb
		result = append(result, &fbCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// ListFeedbackByExecution returns every feedback row of one execution
func (c *Client) ListFeedbackByExecution(ctx context.Context, executionID types.ExecutionID) ([]*eval.Feedback, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []*eval.Feedback
	for _, fb := range c.feedback {
		if fb.ExecutionID != executionID {
			continue
		}
		fbCopy := *fb
		result = append(result, &fbCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// PutTestCase creates or replaces a test case
func (c *Client) PutTestCase(ctx context.Context, tc *eval.TestCase) error {
	if tc == nil {
		return goerr.New("test case cannot be nil")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tcCopy := *tc
	c.testCases[tc.ID] = &tcCopy
	return nil
}

// GetTestCase retrieves a test case
func (c *Client) GetTestCase(ctx context.Context, id types.TestCaseID) (*eval.TestCase, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tc, exists := c.testCases[id]
	if !exists {
		return nil, goerr.Wrap(apperr.ErrTestCaseNotFound, "test case not found", goerr.TV(apperr.TestCaseIDKey, id))
	}

	tcCopy := *tc
	return &tcCopy, nil
}

// ListActiveTestCases returns active test cases of agentID, highest priority first
func (c *Client) ListActiveTestCases(ctx context.Context, agentID string) ([]*eval.TestCase, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var cases []*eval.TestCase
	for _, tc := range c.testCases {
		if tc.AgentID != agentID || !tc.Active {
			continue
		}
		tcCopy := *tc
		cases = append(cases, &tcCopy)
	}

	eval.SortByPriority(cases)
	return cases, nil
}

// PutTestRun stores a regression outcome
func (c *Client) PutTestRun(ctx context.Context, result *eval.TestRunResult) error {
	if result == nil {
		return goerr.New("test run result cannot be nil")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	resultCopy := *result
	resultCopy.FailureReasons = append([]string(nil), result.FailureReasons...)
	c.testRuns[result.ID] = &resultCopy
	return nil
}

// ListTestRuns returns results of agentID for one prompt version, oldest first
func (c *Client) ListTestRuns(ctx context.Context, agentID string, promptVersion int) ([]*eval.TestRunResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var results []*eval.TestRunResult
	for _, r := range c.testRuns {
		if r.AgentID != agentID || r.PromptVersion != promptVersion {
			continue
		}
		rCopy := *r
		results = append(results, &rCopy)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.Before(results[j].CreatedAt)
	})
	return results, nil
}
