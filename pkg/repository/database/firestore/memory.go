package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/model/memory"
	"github.com/m-mizutani/shikigami/pkg/domain/types"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func (c *Client) memories() *firestore.CollectionRef {
	return c.client.Collection(collectionMemories)
}

func (c *Client) scopedQuery(agentID string, scope memory.Scope) firestore.Query {
	return c.memories().
		Where("agent_id", "==", agentID).
		Where("scope.campaign_id", "==", scope.CampaignID).
		Where("scope.artist_name", "==", scope.ArtistName)
}

// UpsertMemory inserts or replaces the record identified by (agent, scope, key)
func (c *Client) UpsertMemory(ctx context.Context, rec *memory.Record) (*memory.Record, error) {
	if rec == nil {
		return nil, goerr.New("memory record cannot be nil")
	}

	var stored *memory.Record
	err := c.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		query := c.scopedQuery(rec.AgentID, rec.Scope).Where("key", "==", rec.Key).Limit(1)
		docs, err := tx.Documents(query).GetAll()
		if err != nil {
			return goerr.Wrap(err, "failed to query memory", goerr.T(apperr.ErrTagFirestore))
		}

		stored = rec.Copy()
		if len(docs) > 0 {
			var existing memory.Record
			if err := docs[0].DataTo(&existing); err != nil {
				return goerr.Wrap(err, "failed to unmarshal memory",
					goerr.T(apperr.ErrTagFirestore), goerr.TV(apperr.DocumentIDKey, docs[0].Ref.ID))
			}
			stored = existing.Replace(rec)
		}

		return tx.Set(c.memories().Doc(stored.ID.String()), stored)
	})
	if err != nil {
		return nil, goerr.Wrap(err, "memory upsert transaction failed",
			goerr.TV(apperr.AgentIDKey, rec.AgentID), goerr.TV(apperr.MemoryKeyKey, rec.Key))
	}
	return stored, nil
}

// QueryMemories returns non-expired matches ordered for recall
func (c *Client) QueryMemories(ctx context.Context, q *memory.Query, now time.Time) ([]*memory.Record, error) {
	if q == nil {
		return nil, goerr.New("memory query cannot be nil")
	}

	var query firestore.Query
	if q.Scope != nil {
		query = c.scopedQuery(q.AgentID, *q.Scope)
	} else {
		query = c.memories().Where("agent_id", "==", q.AgentID)
	}

	candidates, err := decodeAll[memory.Record](query.Documents(ctx), collectionMemories)
	if err != nil {
		return nil, err
	}

	// Expiry, importance, type and key filters are applied on decoded records
	records := make([]*memory.Record, 0, len(candidates))
	for _, rec := range candidates {
		if q.Match(rec, now) {
			records = append(records, rec)
		}
	}

	memory.SortForRecall(records)
	if q.Limit > 0 && len(records) > q.Limit {
		records = records[:q.Limit]
	}
	return records, nil
}

// TouchMemories records one access on each record
func (c *Client) TouchMemories(ctx context.Context, ids []types.MemoryID, now time.Time) error {
	for _, id := range ids {
		_, err := c.memories().Doc(id.String()).Update(ctx, []firestore.Update{
			{Path: "access_count", Value: firestore.Increment(1)},
			{Path: "last_accessed_at", Value: now},
		})
		if status.Code(err) == codes.NotFound {
			continue
		}
		if err != nil {
			return goerr.Wrap(err, "failed to touch memory",
				goerr.T(apperr.ErrTagFirestore), goerr.TV(apperr.MemoryIDKey, id))
		}
	}
	return nil
}

// DeleteMemory removes one record
func (c *Client) DeleteMemory(ctx context.Context, agentID string, scope memory.Scope, key string) error {
	query := c.scopedQuery(agentID, scope).Where("key", "==", key)
	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return goerr.Wrap(err, "failed to query memory",
			goerr.T(apperr.ErrTagFirestore), goerr.TV(apperr.AgentIDKey, agentID))
	}

	for _, doc := range docs {
		if _, err := doc.Ref.Delete(ctx); err != nil {
			return goerr.Wrap(err, "failed to delete memory",
				goerr.T(apperr.ErrTagFirestore), goerr.TV(apperr.DocumentIDKey, doc.Ref.ID))
		}
	}
	return nil
}

// DeleteMemories removes every record of agentID, or only those in scope
func (c *Client) DeleteMemories(ctx context.Context, agentID string, scope *memory.Scope) (int, error) {
	var query firestore.Query
	if scope != nil {
		query = c.scopedQuery(agentID, *scope)
	} else {
		query = c.memories().Where("agent_id", "==", agentID)
	}
	return c.deleteAll(ctx, query)
}

// DeleteExpiredMemories purges every record expired at now
func (c *Client) DeleteExpiredMemories(ctx context.Context, now time.Time) (int, error) {
	return c.deleteAll(ctx, c.memories().Where("expires_at", "<=", now))
}

func (c *Client) deleteAll(ctx context.Context, query firestore.Query) (int, error) {
	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return 0, goerr.Wrap(err, "failed to query memories", goerr.T(apperr.ErrTagFirestore))
	}

	bw := c.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(docs))
	for _, doc := range docs {
		job, err := bw.Delete(doc.Ref)
		if err != nil {
			bw.End()
			return 0, goerr.Wrap(err, "failed to enqueue delete",
				goerr.T(apperr.ErrTagFirestore), goerr.TV(apperr.DocumentIDKey, doc.Ref.ID))
		}
		jobs = append(jobs, job)
	}
	bw.End()

	deleted := 0
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return deleted, goerr.Wrap(err, "failed to delete memory", goerr.T(apperr.ErrTagFirestore))
		}
		deleted++
	}
	return deleted, nil
}

// ConsolidateMemories trims (agentID, memoryType) down to maxRecords
func (c *Client) ConsolidateMemories(ctx context.Context, agentID, memoryType string, maxRecords int) (int, error) {
	if maxRecords < 0 {
		return 0, goerr.New("maxRecords must be non-negative", goerr.V("max_records", maxRecords))
	}

	deleted := 0
	err := c.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		deleted = 0
		query := c.memories().
			Where("agent_id", "==", agentID).
			Where("memory_type", "==", memoryType)
		docs, err := tx.Documents(query).GetAll()
		if err != nil {
			return goerr.Wrap(err, "failed to query memories", goerr.T(apperr.ErrTagFirestore))
		}

		candidates, err := decodeSnapshots[memory.Record](docs, collectionMemories)
		if err != nil {
			return err
		}

		excess := len(candidates) - maxRecords
		if excess <= 0 {
			return nil
		}

		memory.SortForEviction(candidates)
		for _, rec := range candidates[:excess] {
			if err := tx.Delete(c.memories().Doc(rec.ID.String())); err != nil {
				return goerr.Wrap(err, "failed to delete memory", goerr.T(apperr.ErrTagFirestore))
			}
		}
		deleted = excess
		return nil
	})
	if err != nil {
		return 0, goerr.Wrap(err, "consolidate transaction failed",
			goerr.TV(apperr.AgentIDKey, agentID), goerr.V("memory_type", memoryType))
	}
	return deleted, nil
}
