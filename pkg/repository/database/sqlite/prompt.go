package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/model/agent"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
)

// GetPromptConfig retrieves the live prompt config of an agent
func (c *Client) GetPromptConfig(ctx context.Context, agentID string) (*agent.PromptConfig, error) {
	var data string
	err := c.db.QueryRowContext(ctx, `SELECT data FROM prompt_configs WHERE agent_id = ?`, agentID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(apperr.ErrPromptNotFound, "prompt config not found",
			goerr.TV(apperr.AgentIDKey, agentID))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get prompt config",
			goerr.T(apperr.ErrTagSQLite), goerr.TV(apperr.AgentIDKey, agentID))
	}
	return decode[agent.PromptConfig](data)
}

// CreatePromptConfig stores the first live config of an agent
func (c *Client) CreatePromptConfig(ctx context.Context, cfg *agent.PromptConfig) error {
	if cfg == nil {
		return goerr.New("prompt config cannot be nil")
	}

	data, err := encode(cfg)
	if err != nil {
		return err
	}

	return c.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM prompt_configs WHERE agent_id = ?`, cfg.AgentID).Scan(&exists)
		if err != nil {
			return goerr.Wrap(err, "failed to check prompt config", goerr.T(apperr.ErrTagSQLite))
		}
		if exists > 0 {
			return goerr.Wrap(apperr.ErrPromptAlreadyExists, "prompt config already exists",
				goerr.TV(apperr.AgentIDKey, cfg.AgentID))
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO prompt_configs (agent_id, version, data) VALUES (?, ?, ?)`,
			cfg.AgentID, cfg.Version, data); err != nil {
			return goerr.Wrap(err, "failed to insert prompt config",
				goerr.T(apperr.ErrTagSQLite), goerr.TV(apperr.AgentIDKey, cfg.AgentID))
		}
		return nil
	})
}

// ApplyPromptChange appends snapshot to history and replaces the live config in one transaction
func (c *Client) ApplyPromptChange(ctx context.Context, snapshot *agent.PromptVersion, next *agent.PromptConfig) error {
	if snapshot == nil || next == nil {
		return goerr.New("snapshot and next config are required")
	}

	snapData, err := encode(snapshot)
	if err != nil {
		return err
	}
	nextData, err := encode(next)
	if err != nil {
		return err
	}

	return c.withTx(ctx, func(tx *sql.Tx) error {
		var liveVersion int
		err := tx.QueryRowContext(ctx, `SELECT version FROM prompt_configs WHERE agent_id = ?`, next.AgentID).Scan(&liveVersion)
		if errors.Is(err, sql.ErrNoRows) {
			return goerr.Wrap(apperr.ErrPromptNotFound, "prompt config not found",
				goerr.TV(apperr.AgentIDKey, next.AgentID))
		}
		if err != nil {
			return goerr.Wrap(err, "failed to read live version", goerr.T(apperr.ErrTagSQLite))
		}

		if liveVersion != snapshot.Version || next.Version != snapshot.Version+1 {
			return goerr.Wrap(apperr.ErrPromptVersionConflict, "live version has moved",
				goerr.TV(apperr.AgentIDKey, next.AgentID),
				goerr.TV(apperr.VersionKey, snapshot.Version),
				goerr.V("live_version", liveVersion))
		}

		var dup int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM prompt_versions WHERE agent_id = ? AND version = ?`,
			snapshot.AgentID, snapshot.Version).Scan(&dup); err != nil {
			return goerr.Wrap(err, "failed to check history", goerr.T(apperr.ErrTagSQLite))
		}
		if dup > 0 {
			return goerr.Wrap(apperr.ErrPromptVersionConflict, "history already has version",
				goerr.TV(apperr.AgentIDKey, snapshot.AgentID),
				goerr.TV(apperr.VersionKey, snapshot.Version))
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO prompt_versions (agent_id, version, data) VALUES (?, ?, ?)`,
			snapshot.AgentID, snapshot.Version, snapData); err != nil {
			return goerr.Wrap(err, "failed to insert prompt history",
				goerr.T(apperr.ErrTagSQLite), goerr.TV(apperr.AgentIDKey, snapshot.AgentID))
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE prompt_configs SET version = ?, data = ? WHERE agent_id = ?`,
			next.Version, nextData, next.AgentID); err != nil {
			return goerr.Wrap(err, "failed to update prompt config",
				goerr.T(apperr.ErrTagSQLite), goerr.TV(apperr.AgentIDKey, next.AgentID))
		}
		return nil
	})
}

// GetPromptVersion retrieves one history snapshot
func (c *Client) GetPromptVersion(ctx context.Context, agentID string, version int) (*agent.PromptVersion, error) {
	var data string
	err := c.db.QueryRowContext(ctx,
		`SELECT data FROM prompt_versions WHERE agent_id = ? AND version = ?`, agentID, version).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(apperr.ErrPromptVersionNotFound, "prompt version not found",
			goerr.TV(apperr.AgentIDKey, agentID), goerr.TV(apperr.VersionKey, version))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get prompt version",
			goerr.T(apperr.ErrTagSQLite), goerr.TV(apperr.AgentIDKey, agentID))
	}
	return decode[agent.PromptVersion](data)
}

// ListPromptVersions returns history newest first
func (c *Client) ListPromptVersions(ctx context.Context, agentID string, limit int) ([]*agent.PromptVersion, error) {
	query := `SELECT data FROM prompt_versions WHERE agent_id = ? ORDER BY version DESC`
	args := []any{agentID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list prompt versions",
			goerr.T(apperr.ErrTagSQLite), goerr.TV(apperr.AgentIDKey, agentID))
	}
	return scanAll[agent.PromptVersion](rows)
}

// ListPromptConfigs returns every live config ordered by agent ID
func (c *Client) ListPromptConfigs(ctx context.Context) ([]*agent.PromptConfig, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT data FROM prompt_configs ORDER BY agent_id`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list prompt configs", goerr.T(apperr.ErrTagSQLite))
	}
	return scanAll[agent.PromptConfig](rows)
}
