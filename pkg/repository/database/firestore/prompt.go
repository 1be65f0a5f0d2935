package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/model/agent"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// versionDocID keeps history documents in numeric order
func versionDocID(version int) string {
	return fmt.Sprintf("%010d", version)
}

func (c *Client) promptRef(agentID string) *firestore.DocumentRef {
	return c.client.Collection(collectionPrompts).Doc(agentID)
}

func (c *Client) versionRef(agentID string, version int) *firestore.DocumentRef {
	return c.promptRef(agentID).Collection(collectionVersions).Doc(versionDocID(version))
}

// GetPromptConfig retrieves the live prompt config of an agent
func (c *Client) GetPromptConfig(ctx context.Context, agentID string) (*agent.PromptConfig, error) {
	doc, err := c.promptRef(agentID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, goerr.Wrap(apperr.ErrPromptNotFound, "prompt config not found",
			goerr.TV(apperr.AgentIDKey, agentID))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get prompt config",
			goerr.T(apperr.ErrTagFirestore), goerr.TV(apperr.AgentIDKey, agentID))
	}

	var cfg agent.PromptConfig
	if err := doc.DataTo(&cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal prompt config",
			goerr.T(apperr.ErrTagFirestore), goerr.TV(apperr.AgentIDKey, agentID))
	}
	return &cfg, nil
}

// CreatePromptConfig stores the first live config of an agent
func (c *Client) CreatePromptConfig(ctx context.Context, cfg *agent.PromptConfig) error {
	if cfg == nil {
		return goerr.New("prompt config cannot be nil")
	}

	_, err := c.promptRef(cfg.AgentID).Create(ctx, cfg)
	if status.Code(err) == codes.AlreadyExists {
		return goerr.Wrap(apperr.ErrPromptAlreadyExists, "prompt config already exists",
			goerr.TV(apperr.AgentIDKey, cfg.AgentID))
	}
	if err != nil {
		return goerr.Wrap(err, "failed to create prompt config",
			goerr.T(apperr.ErrTagFirestore), goerr.TV(apperr.AgentIDKey, cfg.AgentID))
	}
	return nil
}

// ApplyPromptChange appends snapshot to history and replaces the live config in one transaction
func (c *Client) ApplyPromptChange(ctx context.Context, snapshot *agent.PromptVersion, next *agent.PromptConfig) error {
	if snapshot == nil || next == nil {
		return goerr.New("snapshot and next config are required")
	}

	liveRef := c.promptRef(next.AgentID)
	historyRef := c.versionRef(snapshot.AgentID, snapshot.Version)

	err := c.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(liveRef)
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(apperr.ErrPromptNotFound, "prompt config not found",
				goerr.TV(apperr.AgentIDKey, next.AgentID))
		}
		if err != nil {
			return goerr.Wrap(err, "failed to read live config", goerr.T(apperr.ErrTagFirestore))
		}

		var live agent.PromptConfig
		if err := doc.DataTo(&live); err != nil {
			return goerr.Wrap(err, "failed to unmarshal prompt config", goerr.T(apperr.ErrTagFirestore))
		}
		if live.Version != snapshot.Version || next.Version != snapshot.Version+1 {
			return goerr.Wrap(apperr.ErrPromptVersionConflict, "live version has moved",
				goerr.TV(apperr.AgentIDKey, next.AgentID),
				goerr.TV(apperr.VersionKey, snapshot.Version),
				goerr.V("live_version", live.Version))
		}

		// Create fails the commit when the history slot is taken
		if err := tx.Create(historyRef, snapshot); err != nil {
			return goerr.Wrap(err, "failed to write prompt history", goerr.T(apperr.ErrTagFirestore))
		}
		if err := tx.Set(liveRef, next); err != nil {
			return goerr.Wrap(err, "failed to write prompt config", goerr.T(apperr.ErrTagFirestore))
		}
		return nil
	})

	if status.Code(err) == codes.AlreadyExists {
		return goerr.Wrap(apperr.ErrPromptVersionConflict, "history already has version",
			goerr.TV(apperr.AgentIDKey, snapshot.AgentID),
			goerr.TV(apperr.VersionKey, snapshot.Version))
	}
	if err != nil {
		return goerr.Wrap(err, "prompt change transaction failed", goerr.TV(apperr.AgentIDKey, next.AgentID))
	}
	return nil
}

// GetPromptVersion retrieves one history snapshot
func (c *Client) GetPromptVersion(ctx context.Context, agentID string, version int) (*agent.PromptVersion, error) {
	doc, err := c.versionRef(agentID, version).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, goerr.Wrap(apperr.ErrPromptVersionNotFound, "prompt version not found",
			goerr.TV(apperr.AgentIDKey, agentID), goerr.TV(apperr.VersionKey, version))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get prompt version",
			goerr.T(apperr.ErrTagFirestore), goerr.TV(apperr.AgentIDKey, agentID))
	}

	var v agent.PromptVersion
	if err := doc.DataTo(&v); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal prompt version",
			goerr.T(apperr.ErrTagFirestore), goerr.TV(apperr.AgentIDKey, agentID))
	}
	return &v, nil
}

// ListPromptVersions returns history newest first
func (c *Client) ListPromptVersions(ctx context.Context, agentID string, limit int) ([]*agent.PromptVersion, error) {
	query := c.promptRef(agentID).Collection(collectionVersions).OrderBy("version", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}
	return decodeAll[agent.PromptVersion](query.Documents(ctx), collectionVersions)
}

// ListPromptConfigs returns every live config ordered by agent ID
func (c *Client) ListPromptConfigs(ctx context.Context) ([]*agent.PromptConfig, error) {
	query := c.client.Collection(collectionPrompts).OrderBy("agent_id", firestore.Asc)
	return decodeAll[agent.PromptConfig](query.Documents(ctx), collectionPrompts)
}
