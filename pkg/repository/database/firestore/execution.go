package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/model/agent"
	"github.com/m-mizutani/shikigami/pkg/domain/types"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// CreateExecution stores a running execution record
func (c *Client) CreateExecution(ctx context.Context, rec *agent.ExecutionRecord) error {
	if rec == nil {
		return goerr.New("execution record cannot be nil")
	}

	if _, err := c.client.Collection(collectionExecutions).Doc(rec.ID.String()).Set(ctx, rec); err != nil {
		return goerr.Wrap(err, "failed to create execution",
			goerr.T(apperr.ErrTagFirestore), goerr.TV(apperr.ExecutionIDKey, rec.ID))
	}
	return nil
}

// FinalizeExecution applies the outcome once to a running record
func (c *Client) FinalizeExecution(ctx context.Context, id types.ExecutionID, outcome agent.ExecutionOutcome) error {
	ref := c.client.Collection(collectionExecutions).Doc(id.String())

	err := c.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(apperr.ErrExecutionNotFound, "execution not found", goerr.TV(apperr.ExecutionIDKey, id))
		}
		if err != nil {
			return goerr.Wrap(err, "failed to read execution", goerr.T(apperr.ErrTagFirestore))
		}

		var rec agent.ExecutionRecord
		if err := doc.DataTo(&rec); err != nil {
			return goerr.Wrap(err, "failed to unmarshal execution", goerr.T(apperr.ErrTagFirestore))
		}
		if rec.Status != agent.ExecutionRunning {
			return goerr.Wrap(apperr.ErrExecutionAlreadyFinalized, "execution is not running",
				goerr.TV(apperr.ExecutionIDKey, id), goerr.V("status", rec.Status))
		}

		rec.Finalize(outcome)
		return tx.Set(ref, &rec)
	})
	if err != nil {
		return goerr.Wrap(err, "finalize transaction failed", goerr.TV(apperr.ExecutionIDKey, id))
	}
	return nil
}

// GetExecution retrieves an execution record
func (c *Client) GetExecution(ctx context.Context, id types.ExecutionID) (*agent.ExecutionRecord, error) {
	doc, err := c.client.Collection(collectionExecutions).Doc(id.String()).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, goerr.Wrap(apperr.ErrExecutionNotFound, "execution not found", goerr.TV(apperr.ExecutionIDKey, id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get execution",
			goerr.T(apperr.ErrTagFirestore), goerr.TV(apperr.ExecutionIDKey, id))
	}

	var rec agent.ExecutionRecord
	if err := doc.DataTo(&rec); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal execution",
			goerr.T(apperr.ErrTagFirestore), goerr.TV(apperr.ExecutionIDKey, id))
	}
	return &rec, nil
}

// ListExecutions returns executions of agentID started in [start, end), oldest first
func (c *Client) ListExecutions(ctx context.Context, agentID string, start, end time.Time) ([]*agent.ExecutionRecord, error) {
	query := c.client.Collection(collectionExecutions).
		Where("agent_id", "==", agentID).
		Where("started_at", ">=", start).
		Where("started_at", "<", end).
		OrderBy("started_at", firestore.Asc)
	return decodeAll[agent.ExecutionRecord](query.Documents(ctx), collectionExecutions)
}
