package memory

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/model/memory"
	"github.com/m-mizutani/shikigami/pkg/domain/types"
)

// UpsertMemory inserts or replaces the record identified by (agent, scope, key)
func (c *Client) UpsertMemory(ctx context.Context, rec *memory.Record) (*memory.Record, error) {
	if rec == nil {
		return nil, goerr.New("memory record cannot be nil")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	stored := rec.Copy()
	for id, existing := range c.memories {
		if existing.AgentID == rec.AgentID && existing.Scope == rec.Scope && existing.Key == rec.Key {
			stored = existing.Replace(rec)
			delete(c.memories, id)
			break
		}
	}

	c.memories[stored.ID] = stored
	return stored.Copy(), nil
}

// QueryMemories returns non-expired matches ordered for recall
func (c *Client) QueryMemories(ctx context.Context, q *memory.Query, now time.Time) ([]*memory.Record, error) {
	if q == nil {
		return nil, goerr.New("memory query cannot be nil")
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var records []*memory.Record
	for _, rec := range c.memories {
		if q.Match(rec, now) {
			records = append(records, rec.Copy())
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
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		if rec, exists := c.memories[id]; exists {
			rec.Touch(now)
		}
	}
	return nil
}

// DeleteMemory removes one record
func (c *Client) DeleteMemory(ctx context.Context, agentID string, scope memory.Scope, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, rec := range c.memories {
		if rec.AgentID == agentID && rec.Scope == scope && rec.Key == key {
			delete(c.memories, id)
			return nil
		}
	}
	return nil
}

// DeleteMemories removes every record of agentID, or only those in scope
func (c *Client) DeleteMemories(ctx context.Context, agentID string, scope *memory.Scope) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deleted := 0
	for id, rec := range c.memories {
		if rec.AgentID != agentID {
			continue
		}
		if scope != nil && rec.Scope != *scope {
			continue
		}
		delete(c.memories, id)
		deleted++
	}
	return deleted, nil
}

// ConsolidateMemories trims (agentID, memoryType) down to maxRecords
func (c *Client) ConsolidateMemories(ctx context.Context, agentID, memoryType string, maxRecords int) (int, error) {
	if maxRecords < 0 {
		return 0, goerr.New("maxRecords must be non-negative", goerr.V("max_records", maxRecords))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var candidates []*memory.Record
	for _, rec := range c.memories {
		if rec.AgentID == agentID && rec.MemoryType == memoryType {
			candidates = append(candidates, rec)
		}
	}

	excess := len(candidates) - maxRecords
	if excess <= 0 {
		return 0, nil
	}

	memory.SortForEviction(candidates)
	for _, rec := range candidates[:excess] {
		delete(c.memories, rec.ID)
	}
	return excess, nil
}

// DeleteExpiredMemories purges every record expired at now
func (c *Client) DeleteExpiredMemories(ctx context.Context, now time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deleted := 0
	for id, rec := range c.memories {
		if rec.IsExpired(now) {
			delete(c.memories, id)
			deleted++
		}
	}
	return deleted, nil
}
