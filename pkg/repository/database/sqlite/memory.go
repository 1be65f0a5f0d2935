package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/model/memory"
	"github.com/m-mizutani/shikigami/pkg/domain/types"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
)

func expiresAtValue(rec *memory.Record) any {
	if rec.ExpiresAt == nil {
		return nil
	}
	return unixNano(*rec.ExpiresAt)
}

func putMemory(ctx context.Context, tx *sql.Tx, rec *memory.Record) error {
	data, err := encode(rec)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO memories
			(id, agent_id, campaign_id, artist_name, memory_type, key, importance, last_accessed_at, expires_at, data)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.AgentID, rec.Scope.CampaignID, rec.Scope.ArtistName, rec.MemoryType, rec.Key,
		rec.Importance, unixNano(rec.LastAccessedAt), expiresAtValue(rec), data); err != nil {
		return goerr.Wrap(err, "failed to write memory",
			goerr.T(apperr.ErrTagSQLite), goerr.TV(apperr.MemoryIDKey, rec.ID))
	}
	return nil
}

// UpsertMemory inserts or replaces the record identified by (agent, scope, key)
func (c *Client) UpsertMemory(ctx context.Context, rec *memory.Record) (*memory.Record, error) {
	if rec == nil {
		return nil, goerr.New("memory record cannot be nil")
	}

	var stored *memory.Record
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		var data string
		err := tx.QueryRowContext(ctx,
			`SELECT data FROM memories WHERE agent_id = ? AND campaign_id = ? AND artist_name = ? AND key = ?`,
			rec.AgentID, rec.Scope.CampaignID, rec.Scope.ArtistName, rec.Key).Scan(&data)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			stored = rec.Copy()
		case err != nil:
			return goerr.Wrap(err, "failed to read memory",
				goerr.T(apperr.ErrTagSQLite), goerr.TV(apperr.MemoryKeyKey, rec.Key))
		default:
			existing, err := decode[memory.Record](data)
			if err != nil {
				return err
			}
			stored = existing.Replace(rec)
		}

		return putMemory(ctx, tx, stored)
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// QueryMemories returns non-expired matches ordered for recall
func (c *Client) QueryMemories(ctx context.Context, q *memory.Query, now time.Time) ([]*memory.Record, error) {
	if q == nil {
		return nil, goerr.New("memory query cannot be nil")
	}

	var sb strings.Builder
	sb.WriteString(`SELECT data FROM memories WHERE agent_id = ? AND importance >= ? AND (expires_at IS NULL OR expires_at > ?)`)
	args := []any{q.AgentID, q.MinImportance, unixNano(now)}
	if q.Scope != nil {
		sb.WriteString(` AND campaign_id = ? AND artist_name = ?`)
		args = append(args, q.Scope.CampaignID, q.Scope.ArtistName)
	}

	rows, err := c.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query memories",
			goerr.T(apperr.ErrTagSQLite), goerr.TV(apperr.AgentIDKey, q.AgentID))
	}
	candidates, err := scanAll[memory.Record](rows)
	if err != nil {
		return nil, err
	}

	// Type and key filters are applied on decoded rows
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
	if len(ids) == 0 {
		return nil
	}

	return c.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			var data string
			err := tx.QueryRowContext(ctx, `SELECT data FROM memories WHERE id = ?`, id.String()).Scan(&data)
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return goerr.Wrap(err, "failed to read memory",
					goerr.T(apperr.ErrTagSQLite), goerr.TV(apperr.MemoryIDKey, id))
			}

			rec, err := decode[memory.Record](data)
			if err != nil {
				return err
			}
			rec.Touch(now)
			if err := putMemory(ctx, tx, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteMemory removes one record
func (c *Client) DeleteMemory(ctx context.Context, agentID string, scope memory.Scope, key string) error {
	if _, err := c.db.ExecContext(ctx,
		`DELETE FROM memories WHERE agent_id = ? AND campaign_id = ? AND artist_name = ? AND key = ?`,
		agentID, scope.CampaignID, scope.ArtistName, key); err != nil {
		return goerr.Wrap(err, "failed to delete memory",
			goerr.T(apperr.ErrTagSQLite), goerr.TV(apperr.AgentIDKey, agentID), goerr.TV(apperr.MemoryKeyKey, key))
	}
	return nil
}

// DeleteMemories removes every record of agentID, or only those in scope
func (c *Client) DeleteMemories(ctx context.Context, agentID string, scope *memory.Scope) (int, error) {
	query := `DELETE FROM memories WHERE agent_id = ?`
	args := []any{agentID}
	if scope != nil {
		query += ` AND campaign_id = ? AND artist_name = ?`
		args = append(args, scope.CampaignID, scope.ArtistName)
	}

	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to delete memories",
			goerr.T(apperr.ErrTagSQLite), goerr.TV(apperr.AgentIDKey, agentID))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, goerr.Wrap(err, "failed to count deleted memories", goerr.T(apperr.ErrTagSQLite))
	}
	return int(n), nil
}

// ConsolidateMemories trims (agentID, memoryType) down to maxRecords
func (c *Client) ConsolidateMemories(ctx context.Context, agentID, memoryType string, maxRecords int) (int, error) {
	if maxRecords < 0 {
		return 0, goerr.New("maxRecords must be non-negative", goerr.V("max_records", maxRecords))
	}

	deleted := 0
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT data FROM memories WHERE agent_id = ? AND memory_type = ?`, agentID, memoryType)
		if err != nil {
			return goerr.Wrap(err, "failed to list memories",
				goerr.T(apperr.ErrTagSQLite), goerr.TV(apperr.AgentIDKey, agentID))
		}
		candidates, err := scanAll[memory.Record](rows)
		if err != nil {
			return err
		}

		excess := len(candidates) - maxRecords
		if excess <= 0 {
			return nil
		}

		memory.SortForEviction(candidates)
		for _, rec := range candidates[:excess] {
			if _, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, rec.ID.String()); err != nil {
				return goerr.Wrap(err, "failed to delete memory",
					goerr.T(apperr.ErrTagSQLite), goerr.TV(apperr.MemoryIDKey, rec.ID))
			}
		}
		deleted = excess
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// DeleteExpiredMemories purges every record expired at now
func (c *Client) DeleteExpiredMemories(ctx context.Context, now time.Time) (int, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM memories WHERE expires_at IS NOT NULL AND expires_at <= ?`, unixNano(now))
	if err != nil {
		return 0, goerr.Wrap(err, "failed to delete expired memories", goerr.T(apperr.ErrTagSQLite))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, goerr.Wrap(err, "failed to count expired memories", goerr.T(apperr.ErrTagSQLite))
	}
	return int(n), nil
}
