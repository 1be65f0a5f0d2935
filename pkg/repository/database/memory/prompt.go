package memory

import (
	"context"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/model/agent"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
)

// GetPromptConfig retrieves the live prompt config of an agent
func (c *Client) GetPromptConfig(ctx context.Context, agentID string) (*agent.PromptConfig, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cfg, exists := c.prompts[agentID]
	if !exists {
		return nil, goerr.Wrap(apperr.ErrPromptNotFound, "prompt config not found",
			goerr.TV(apperr.AgentIDKey, agentID))
	}

	// Return a copy to avoid external modifications
	return cfg.Copy(), nil
}

// CreatePromptConfig stores the first live config of an agent
func (c *Client) CreatePromptConfig(ctx context.Context, cfg *agent.PromptConfig) error {
	if cfg == nil {
		return goerr.New("prompt config cannot be nil")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.prompts[cfg.AgentID]; exists {
		return goerr.Wrap(apperr.ErrPromptAlreadyExists, "prompt config already exists",
			goerr.TV(apperr.AgentIDKey, cfg.AgentID))
	}

	c.prompts[cfg.AgentID] = cfg.Copy()
	return nil
}

// ApplyPromptChange appends snapshot to history and replaces the live config atomically
func (c *Client) ApplyPromptChange(ctx context.Context, snapshot *agent.PromptVersion, next *agent.PromptConfig) error {
	if snapshot == nil || next == nil {
		return goerr.New("snapshot and next config are required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	live, exists := c.prompts[next.AgentID]
	if !exists {
		return goerr.Wrap(apperr.ErrPromptNotFound, "prompt config not found",
			goerr.TV(apperr.AgentIDKey, next.AgentID))
	}

	if live.Version != snapshot.Version || next.Version != snapshot.Version+1 {
		return goerr.Wrap(apperr.ErrPromptVersionConflict, "live version has moved",
			goerr.TV(apperr.AgentIDKey, next.AgentID),
			goerr.TV(apperr.VersionKey, snapshot.Version),
			goerr.V("live_version", live.Version))
	}

	history := c.promptVersions[snapshot.AgentID]
	if history == nil {
		history = make(map[int]*agent.PromptVersion)
		c.promptVersions[snapshot.AgentID] = history
	}
	if _, dup := history[snapshot.Version]; dup {
		return goerr.Wrap(apperr.ErrPromptVersionConflict, "history already has version",
			goerr.TV(apperr.AgentIDKey, snapshot.AgentID),
			goerr.TV(apperr.VersionKey, snapshot.Version))
	}

	snapCopy := *snapshot
	snapCopy.Templates = agent.CloneTemplates(snapshot.Templates)
	snapCopy.ModelOptions = snapshot.ModelOptions.Clone()
	history[snapshot.Version] = &snapCopy
	c.prompts[next.AgentID] = next.Copy()

	return nil
}

// GetPromptVersion retrieves one history snapshot
func (c *Client) GetPromptVersion(ctx context.Context, agentID string, version int) (*agent.PromptVersion, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, exists := c.promptVersions[agentID][version]
	if !exists {
		return nil, goerr.Wrap(apperr.ErrPromptVersionNotFound, "prompt version not found",
			goerr.TV(apperr.AgentIDKey, agentID),
			goerr.TV(apperr.VersionKey, version))
	}

	return copyVersion(v), nil
}

// ListPromptVersions returns history newest first
func (c *Client) ListPromptVersions(ctx context.Context, agentID string, limit int) ([]*agent.PromptVersion, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	history := c.promptVersions[agentID]
	versions := make([]*agent.PromptVersion, 0, len(history))
	for _, v := range history {
		versions = append(versions, copyVersion(v))
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Version > versions[j].Version
	})

	if limit > 0 && len(versions) > limit {
		versions = versions[:limit]
	}
	return versions, nil
}

// ListPromptConfigs returns every live config ordered by agent ID
func (c *Client) ListPromptConfigs(ctx context.Context) ([]*agent.PromptConfig, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	configs := make([]*agent.PromptConfig, 0, len(c.prompts))
	for _, cfg := range c.prompts {
		configs = append(configs, cfg.Copy())
	}
	sort.Slice(configs, func(i, j int) bool {
		return configs[i].AgentID < configs[j].AgentID
	})
	return configs, nil
}

func copyVersion(v *agent.PromptVersion) *agent.PromptVersion {
	c := *v
	c.Templates = agent.CloneTemplates(v.Templates)
	c.ModelOptions = v.ModelOptions.Clone()
	return &c
}
