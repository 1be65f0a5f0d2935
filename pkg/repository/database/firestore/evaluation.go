package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/model/eval"
	"github.com/m-mizutani/shikigami/pkg/domain/types"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// PutFeedback stores a feedback document
func (c *Client) PutFeedback(ctx context.Context, fb *eval.Feedback) error {
	if fb == nil {
		return goerr.New("feedback cannot be nil")
	}

	if _, err := c.client.Collection(collectionFeedback).Doc(fb.ID.String()).Set(ctx, fb); err != nil {
		return goerr.Wrap(err, "failed to put feedback",
			goerr.T(apperr.ErrTagFirestore), goerr.V("feedback_id", fb.ID))
	}
	return nil
}

// ListFeedback returns feedback of agentID created in [start, end), oldest first
func (c *Client) ListFeedback(ctx context.Context, agentID string, start, end time.Time) ([]*eval.Feedback, error) {
	query := c.client.Collection(collectionFeedback).
		Where("agent_id", "==", agentID).
		Where("created_at", ">=", start).
		Where("created_at", "<", end).
		OrderBy("created_at", firestore.Asc)
	return decodeAll[eval.Feedback](query.Documents(ctx), collectionFeedback)
}

// ListFeedbackByExecution returns every feedback document of one execution
func (c *Client) ListFeedbackByExecution(ctx context.Context, executionID types.ExecutionID) ([]*eval.Feedback, error) {
	query := c.client.Collection(collectionFeedback).
		Where("execution_id", "==", executionID.String()).
		OrderBy("created_at", firestore.Asc)
	return decodeAll[eval.Feedback](query.Documents(ctx), collectionFeedback)
}

// PutTestCase creates or replaces a test case
func (c *Client) PutTestCase(ctx context.Context, tc *eval.TestCase) error {
	if tc == nil {
		return goerr.New("test case cannot be nil")
	}

	if _, err := c.client.Collection(collectionTestCases).Doc(tc.ID.String()).Set(ctx, tc); err != nil {
		return goerr.Wrap(err, "failed to put test case",
			goerr.T(apperr.ErrTagFirestore), goerr.TV(apperr.TestCaseIDKey, tc.ID))
	}
	return nil
}

// GetTestCase retrieves a test case
func (c *Client) GetTestCase(ctx context.Context, id types.TestCaseID) (*eval.TestCase, error) {
	doc, err := c.client.Collection(collectionTestCases).Doc(id.String()).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, goerr.Wrap(apperr.ErrTestCaseNotFound, "test case not found", goerr.TV(apperr.TestCaseIDKey, id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get test case",
			goerr.T(apperr.ErrTagFirestore), goerr.TV(apperr.TestCaseIDKey, id))
	}

	var tc eval.TestCase
	if err := doc.DataTo(&tc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal test case",
			goerr.T(apperr.ErrTagFirestore), goerr.TV(apperr.TestCaseIDKey, id))
	}
	return &tc, nil
}

// ListActiveTestCases returns active test cases of agentID, highest priority first
func (c *Client) ListActiveTestCases(ctx context.Context, agentID string) ([]*eval.TestCase, error) {
	query := c.client.Collection(collectionTestCases).
		Where("agent_id", "==", agentID).
		Where("active", "==", true)

	cases, err := decodeAll[eval.TestCase](query.Documents(ctx), collectionTestCases)
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

	if _, err := c.client.Collection(collectionTestRuns).Doc(result.ID.String()).Set(ctx, result); err != nil {
		return goerr.Wrap(err, "failed to put test run",
			goerr.T(apperr.ErrTagFirestore), goerr.TV(apperr.TestCaseIDKey, result.TestCaseID))
	}
	return nil
}

// ListTestRuns returns results of agentID for one prompt version, oldest first
func (c *Client) ListTestRuns(ctx context.Context, agentID string, promptVersion int) ([]*eval.TestRunResult, error) {
	query := c.client.Collection(collectionTestRuns).
		Where("agent_id", "==", agentID).
		Where("prompt_version", "==", promptVersion).
		OrderBy("created_at", firestore.Asc)
	return decodeAll[eval.TestRunResult](query.Documents(ctx), collectionTestRuns)
}
