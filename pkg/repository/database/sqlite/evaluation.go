package sqlite

import (
	"context"
	"database/sql"
	"errors"
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

	data, err := encode(fb)
	if err != nil {
		return err
	}

	if _, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO feedback (id, agent_id, execution_id, created_at, data) VALUES (?, ?, ?, ?, ?)`,
		fb.ID.String(), fb.AgentID, fb.ExecutionID.String(), unixNano(fb.CreatedAt), data); err != nil {
		return goerr.Wrap(err, "failed to insert feedback",
			goerr.T(apperr.ErrTagSQLite), goerr.V("feedback_id", fb.ID))
	}
	return nil
}

// ListFeedback returns feedback of agentID created in [start, end), oldest first
func (c *Client) ListFeedback(ctx context.Context, agentID string, start, end time.Time) ([]*eval.Feedback, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT data FROM feedback WHERE agent_id = ? AND created_at >= ? AND created_at < ? ORDER BY created_at`,
		agentID, unixNano(start), unixNano(end))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list feedback",
			goerr.T(apperr.ErrTagSQLite), goerr.TV(apperr.AgentIDKey, agentID))
	}
	return scanAll[eval.Feedback](rows)
}

// ListFeedbackByExecution returns every feedback row of one execution
func (c *Client) ListFeedbackByExecution(ctx context.Context, executionID types.ExecutionID) ([]*eval.Feedback, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT data FROM feedback WHERE execution_id = ? ORDER BY created_at`, executionID.String())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list feedback",
			goerr.T(apperr.ErrTagSQLite), goerr.TV(apperr.ExecutionIDKey, executionID))
	}
	return scanAll[eval.Feedback](rows)
}

// PutTestCase creates or replaces a test case
func (c *Client) PutTestCase(ctx context.Context, tc *eval.TestCase) error {
	if tc == nil {
		return goerr.New("test case cannot be nil")
	}

	data, err := encode(tc)
	if err != nil {
		return err
	}

	if _, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO test_cases (id, agent_id, active, data) VALUES (?, ?, ?, ?)`,
		tc.ID.String(), tc.AgentID, tc.Active, data); err != nil {
		return goerr.Wrap(err, "failed to put test case",
			goerr.T(apperr.ErrTagSQLite), goerr.TV(apperr.TestCaseIDKey, tc.ID))
	}
	return nil
}

// GetTestCase retrieves a test case
func (c *Client) GetTestCase(ctx context.Context, id types.TestCaseID) (*eval.TestCase, error) {
	var data string
	err := c.db.QueryRowContext(ctx, `SELECT data FROM test_cases WHERE id = ?`, id.String()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(apperr.ErrTestCaseNotFound, "test case not found", goerr.TV(apperr.TestCaseIDKey, id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get test case",
			goerr.T(apperr.ErrTagSQLite), goerr.TV(apperr.TestCaseIDKey, id))
	}
	return decode[eval.TestCase](data)
}

// ListActiveTestCases returns active test cases of agentID, highest priority first
func (c *Client) ListActiveTestCases(ctx context.Context, agentID string) ([]*eval.TestCase, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT data FROM test_cases WHERE agent_id = ? AND active = 1`, agentID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list test cases",
			goerr.T(apperr.ErrTagSQLite), goerr.TV(apperr.AgentIDKey, agentID))
	}

	cases, err := scanAll[eval.TestCase](rows)
	if err != nil {
		return nil, err
	}
	eval.SortByPriority(cases)
	return cases, nil
}

// PutTestRun stores a regression outcome
func (c *Client) PutTestRun(ctx context.Context, result *eval.TestRunResult) error {
	if result == nil {
		return goerr.New("test run result cannot be nil")
	}

	data, err := encode(result)
	if err != nil {
		return err
	}

	if _, err := c.db.ExecContext(ctx,
		`INSERT INTO test_runs (id, agent_id, prompt_version, created_at, data) VALUES (?, ?, ?, ?, ?)`,
		result.ID.String(), result.AgentID, result.PromptVersion, unixNano(result.CreatedAt), data); err != nil {
		return goerr.Wrap(err, "failed to insert test run",
			goerr.T(apperr.ErrTagSQLite), goerr.TV(apperr.TestCaseIDKey, result.TestCaseID))
	}
	return nil
}

// ListTestRuns returns results of agentID for one prompt version, oldest first
func (c *Client) ListTestRuns(ctx context.Context, agentID string, promptVersion int) ([]*eval.TestRunResult, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT data FROM test_runs WHERE agent_id = ? AND prompt_version = ? ORDER BY created_at`,
		agentID, promptVersion)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list test runs",
			goerr.T(apperr.ErrTagSQLite), goerr.TV(apperr.AgentIDKey, agentID))
	}
	return scanAll[eval.TestRunResult](rows)
}
