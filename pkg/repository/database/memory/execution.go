package memory

import (
	"context"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/model/agent"
	"github.com/m-mizutani/shikigami/pkg/domain/types"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
)

// CreateExecution stores a running execution record
func (c *Client) CreateExecution(ctx context.Context, rec *agent.ExecutionRecord) error {
	if rec == nil {
		return goerr.New("execution record cannot be nil")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.executions[rec.ID]; exists {
		return goerr.New("execution already exists", goerr.TV(apperr.ExecutionIDKey, rec.ID))
	}

	recCopy := *rec
	c.executions[rec.ID] = &recCopy
	return nil
}

// FinalizeExecution applies the outcome once to a running record
func (c *Client) FinalizeExecution(ctx context.Context, id types.ExecutionID, outcome agent.ExecutionOutcome) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, exists := c.executions[id]
	if !exists {
		return goerr.Wrap(apperr.ErrExecutionNotFound, "execution not found", goerr.TV(apperr.ExecutionIDKey, id))
	}
	if rec.Status != agent.ExecutionRunning {
		return goerr.Wrap(apperr.ErrExecutionAlreadyFinalized, "execution is not running",
			goerr.TV(apperr.ExecutionIDKey, id),
			goerr.V("status", rec.Status))
	}

	rec.Finalize(outcome)
	return nil
}

// GetExecution retrieves an execution record
func (c *Client) GetExecution(ctx context.Context, id types.ExecutionID) (*agent.ExecutionRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, exists := c.executions[id]
	if !exists {
		return nil, goerr.Wrap(apperr.ErrExecutionNotFound, "execution not found", goerr.TV(apperr.ExecutionIDKey, id))
	}

	recCopy := *rec
	return &recCopy, nil
}

// ListExecutions returns executions of agentID started in [start, end), oldest first
func (c *Client) ListExecutions(ctx context.Context, agentID string, start, end time.Time) ([]*agent.ExecutionRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var records []*agent.ExecutionRecord
	for _, rec := range c.executions {
		if rec.AgentID != agentID || !inWindow(rec.StartedAt, start, end) {
			continue
		}
		recCopy := *rec
		records = append(records, &recCopy)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.Before(records[j].StartedAt)
	})
	return records, nil
}

func inWindow(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}
