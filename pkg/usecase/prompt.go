package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/interfaces"
	"github.com/m-mizutani/shikigami/pkg/domain/model/agent"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
	"github.com/m-mizutani/shikigami/pkg/service/cache"
	"golang.org/x/sync/singleflight"
)

// PromptStore is the versioned, audited configuration store of agents. Reads
// go through a TTL cache; every write invalidates the agent's entry.
type PromptStore struct {
	repo  interfaces.PromptRepository
	cache interfaces.PromptCache
	group singleflight.Group
	now   func() time.Time
}

var _ interfaces.PromptStore = (*PromptStore)(nil)

// PromptStoreOption configures PromptStore
type PromptStoreOption func(*PromptStore)

// WithPromptCache replaces the default TTL cache
func WithPromptCache(c interfaces.PromptCache) PromptStoreOption {
	return func(s *PromptStore) {
		s.cache = c
	}
}

// WithPromptClock sets the clock used for audit timestamps
func WithPromptClock(now func() time.Time) PromptStoreOption {
	return func(s *PromptStore) {
		s.now = now
	}
}

// NewPromptStore creates a prompt store backed by repo
func NewPromptStore(repo interfaces.PromptRepository, opts ...PromptStoreOption) *PromptStore {
	s := &PromptStore{
		repo: repo,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = cache.NewPromptCache(cache.DefaultPromptTTL)
	}
	return s
}

// GetActive returns the live config of agentID. Concurrent cache misses for
// the same agent share one repository read.
func (s *PromptStore) GetActive(ctx context.Context, agentID string) (*agent.PromptConfig, error) {
	if cfg, ok := s.cache.Get(agentID); ok {
		return cfg, nil
	}

	v, err, _ := s.group.Do(agentID, func() (any, error) {
		gen := s.cache.Generation(agentID)
		cfg, err := s.repo.GetPromptConfig(ctx, agentID)
		if err != nil {
			return nil, err
		}
		s.cache.Set(agentID, cfg, gen)
		return cfg, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*agent.PromptConfig).Copy(), nil
}

// Create establishes version 1 of an agent's config
func (s *PromptStore) Create(ctx context.Context, cfg *agent.PromptConfig, who string) (*agent.PromptConfig, error) {
	if cfg == nil {
		return nil, goerr.New("prompt config is required", goerr.T(apperr.ErrTagValidation))
	}

	created := cfg.Copy()
	created.Version = 1
	created.IsActive = true
	created.UpdatedBy = who
	created.UpdatedAt = s.now()
	if created.ChangeNotes == "" {
		created.ChangeNotes = "initial version"
	}

	if err := created.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid prompt config", goerr.T(apperr.ErrTagValidation))
	}

	defer s.invalidate(created.AgentID)
	if err := s.repo.CreatePromptConfig(ctx, created); err != nil {
		return nil, goerr.Wrap(err, "failed to create prompt config", goerr.TV(apperr.AgentIDKey, created.AgentID))
	}

	ctxlog.From(ctx).Info("prompt config created", "agent_id", created.AgentID, "by", who)
	return created, nil
}

// UpdateWithHistory snapshots the live config into history and applies delta
// in one repository transaction. The live version grows by exactly one.
func (s *PromptStore) UpdateWithHistory(ctx context.Context, agentID string, delta *agent.PromptDelta, who, why string) (*agent.PromptConfig, error) {
	if delta.IsEmpty() {
		return nil, goerr.New("prompt delta is empty",
			goerr.T(apperr.ErrTagValidation), goerr.TV(apperr.AgentIDKey, agentID))
	}

	current, err := s.repo.GetPromptConfig(ctx, agentID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read live prompt config", goerr.TV(apperr.AgentIDKey, agentID))
	}

	next := current.Apply(delta, who, why, s.now())
	if err := next.Validate(); err != nil {
		return nil, goerr.Wrap(err, "prompt delta produces an invalid config",
			goerr.T(apperr.ErrTagValidation), goerr.TV(apperr.AgentIDKey, agentID))
	}

	if err := s.commit(ctx, current, next); err != nil {
		return nil, err
	}

	ctxlog.From(ctx).Info("prompt config updated",
		"agent_id", agentID, "version", next.Version, "by", who)
	return next, nil
}

// RollbackToVersion makes the content of history version target live again
// under a new version number. A target missing from history fails without
// touching the store.
func (s *PromptStore) RollbackToVersion(ctx context.Context, agentID string, target int, who, why string) (*agent.PromptConfig, error) {
	snapshot, err := s.repo.GetPromptVersion(ctx, agentID, target)
	if err != nil {
		return nil, goerr.Wrap(err, "rollback target is not in history",
			goerr.TV(apperr.AgentIDKey, agentID), goerr.TV(apperr.VersionKey, target))
	}

	current, err := s.repo.GetPromptConfig(ctx, agentID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read live prompt config", goerr.TV(apperr.AgentIDKey, agentID))
	}

	if why == "" {
		why = "rollback"
	}
	next := current.RestoreFrom(snapshot, who, why, s.now())

	if err := s.commit(ctx, current, next); err != nil {
		return nil, err
	}

	ctxlog.From(ctx).Info("prompt config rolled back",
		"agent_id", agentID, "target", target, "version", next.Version, "by", who)
	return next, nil
}

func (s *PromptStore) commit(ctx context.Context, current, next *agent.PromptConfig) error {
	defer s.invalidate(next.AgentID)

	if err := s.repo.ApplyPromptChange(ctx, current.Snapshot(), next); err != nil {
		return goerr.Wrap(err, "failed to apply prompt change",
			goerr.TV(apperr.AgentIDKey, next.AgentID), goerr.TV(apperr.VersionKey, next.Version))
	}
	return nil
}

// invalidate drops the cached entry and detaches any in-flight read so later
// callers load the committed config
func (s *PromptStore) invalidate(agentID string) {
	s.cache.Invalidate(agentID)
	s.group.Forget(agentID)
}

// List returns every live config ordered by agent ID. It bypasses the cache.
func (s *PromptStore) List(ctx context.Context) ([]*agent.PromptConfig, error) {
	configs, err := s.repo.ListPromptConfigs(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list prompt configs")
	}
	return configs, nil
}

// GetHistory returns history snapshots newest first. limit <= 0 returns all.
func (s *PromptStore) GetHistory(ctx context.Context, agentID string, limit int) ([]*agent.PromptVersion, error) {
	versions, err := s.repo.ListPromptVersions(ctx, agentID, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list prompt history", goerr.TV(apperr.AgentIDKey, agentID))
	}
	return versions, nil
}

// GetVersion returns exactly version v, looking at history first and then at
// the live config
func (s *PromptStore) GetVersion(ctx context.Context, agentID string, v int) (*agent.PromptVersion, error) {
	version, err := s.repo.GetPromptVersion(ctx, agentID, v)
	if err == nil {
		return version, nil
	}
	if !errors.Is(err, apperr.ErrPromptVersionNotFound) {
		return nil, goerr.Wrap(err, "failed to get prompt version",
			goerr.TV(apperr.AgentIDKey, agentID), goerr.TV(apperr.VersionKey, v))
	}

	live, liveErr := s.repo.GetPromptConfig(ctx, agentID)
	if liveErr == nil && live.Version == v {
		return live.Snapshot(), nil
	}
	return nil, err
}
