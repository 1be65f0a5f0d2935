package sqlite

import (
	"context"
	"database/sql"
	"errors"
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

	data, err := encode(rec)
	if err != nil {
		return err
	}

	if _, err := c.db.ExecContext(ctx,
		`INSERT INTO executions (id, agent_id, status, started_at, data) VALUES (?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.AgentID, string(rec.Status), unixNano(rec.StartedAt), data); err != nil {
		return goerr.Wrap(err, "failed to insert execution",
			goerr.T(apperr.ErrTagSQLite), goerr.TV(apperr.ExecutionIDKey, rec.ID))
	}
	return nil
}

// FinalizeExecution applies the outcome once to a running record
func (c *Client) FinalizeExecution(ctx context.Context, id types.ExecutionID, outcome agent.ExecutionOutcome) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		var data string
		err := tx.QueryRowContext(ctx, `SELECT data FROM executions WHERE id = ?`, id.String()).Scan(&data)
		if errors.Is(err, sql.ErrNoRows) {
			return goerr.Wrap(apperr.ErrExecutionNotFound, "execution not found", goerr.TV(apperr.ExecutionIDKey, id))
		}
		if err != nil {
			return goerr.Wrap(err, "failed to read execution",
				goerr.T(apperr.ErrTagSQLite), goerr.TV(apperr.ExecutionIDKey, id))
		}

		rec, err := decode[agent.ExecutionRecord](data)
		if err != nil {
			return err
		}
		if rec.Status != agent.ExecutionRunning {
			return goerr.Wrap(apperr.ErrExecutionAlreadyFinalized, "execution is not running",
				goerr.TV(apperr.ExecutionIDKey, id), goerr.V("status", rec.Status))
		}

		rec.Finalize(outcome)
		updated, err := encode(rec)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE executions SET status = ?, data = ? WHERE id = ? AND status = ?`,
			string(rec.Status), updated, id.String(), string(agent.ExecutionRunning)); err != nil {
			return goerr.Wrap(err, "failed to finalize execution",
				goerr.T(apperr.ErrTagSQLite), goerr.TV(apperr.ExecutionIDKey, id))
		}
		return nil
	})
}

// GetExecution retrieves an execution record
func (c *Client) GetExecution(ctx context.Context, id types.ExecutionID) (*agent.ExecutionRecord, error) {
	var data string
	err := c.db.QueryRowContext(ctx, `SELECT data FROM executions WHERE id = ?`, id.String()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(apperr.ErrExecutionNotFound, "execution not found", goerr.TV(apperr.ExecutionIDKey, id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get execution",
			goerr.T(apperr.ErrTagSQLite), goerr.TV(apperr.ExecutionIDKey, id))
	}
	return decode[agent.ExecutionRecord](data)
}

// ListExecutions returns executions of agentID started in [start, end), oldest first
func (c *Client) ListExecutions(ctx context.Context, agentID string, start, end time.Time) ([]*agent.ExecutionRecord, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT data FROM executions WHERE agent_id = ? AND started_at >= ? AND started_at < ? ORDER BY started_at`,
		agentID, unixNano(start), unixNano(end))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list executions",
			goerr.T(apperr.ErrTagSQLite), goerr.TV(apperr.AgentIDKey, agentID))
	}
	return scanAll[agent.ExecutionRecord](rows)
}
