package usecase_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/shikigami/pkg/domain/model/agent"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
	repo "github.com/m-mizutani/shikigami/pkg/repository/database/memory"
	"github.com/m-mizutani/shikigami/pkg/service/cache"
	"github.com/m-mizutani/shikigami/pkg/usecase"
)

// countingPromptRepo counts live config reads
type countingPromptRepo struct {
	*repo.Client
	reads atomic.Int32
}

func (r *countingPromptRepo) GetPromptConfig(ctx context.Context, agentID string) (*agent.PromptConfig, error) {
	r.reads.Add(1)
	return r.Client.GetPromptConfig(ctx, agentID)
}

// blockingPromptRepo holds the first armed live config read until released.
// The config is loaded before blocking, so the caller sees what was live
// when the read started.
type blockingPromptRepo struct {
	*repo.Client
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (r *blockingPromptRepo) GetPromptConfig(ctx context.Context, agentID string) (*agent.PromptConfig, error) {
	cfg, err := r.Client.GetPromptConfig(ctx, agentID)
	if r.armed.CompareAndSwap(true, false) {
		close(r.entered)
		<-r.release
	}
	return cfg, err
}

func strPtr(s string) *string {
	return &s
}

func setupPromptStore(t *testing.T) (*usecase.PromptStore, *countingPromptRepo) {
	t.Helper()
	ctx := context.Background()
	r := &countingPromptRepo{Client: repo.New()}
	store := usecase.NewPromptStore(r, usecase.WithPromptClock(fixedClock(baseTime(), time.Minute)))

	_, err := store.Create(ctx, &agent.PromptConfig{
		AgentID:      "script_writer",
		SystemPrompt: "v1 prompt",
		Templates:    map[string]string{"default": "about {{.topic}}"},
		ModelOptions: agent.ModelOptions{Model: "gpt-4o"},
	}, "alice")
	gt.NoError(t, err).Required()
	return store, r
}

func TestPromptStoreCreate(t *testing.T) {
	ctx := context.Background()
	store, _ := setupPromptStore(t)

	cfg, err := store.GetActive(ctx, "script_writer")
	gt.NoError(t, err).Required()
	gt.Equal(t, cfg.Version, 1)
	gt.True(t, cfg.IsActive)
	gt.Equal(t, cfg.UpdatedBy, "alice")
	gt.Equal(t, cfg.ChangeNotes, "initial version")

	_, err = store.Create(ctx, &agent.PromptConfig{AgentID: "script_writer"}, "bob")
	gt.True(t, errors.Is(err, apperr.ErrPromptAlreadyExists))

	_, err = store.Create(ctx, &agent.PromptConfig{AgentID: "bad id!"}, "bob")
	gt.True(t, goerr.HasTag(err, apperr.ErrTagValidation))
}

func TestPromptStoreUpdateWithHistory(t *testing.T) {
	ctx := context.Background()
	store, _ := setupPromptStore(t)

	before, err := store.GetActive(ctx, "script_writer")
	gt.NoError(t, err).Required()

	updated, err := store.UpdateWithHistory(ctx, "script_writer", &agent.PromptDelta{
		SystemPrompt: strPtr("v2 prompt"),
		Templates:    map[string]string{"short": "short {{.topic}}"},
	}, "bob", "sharper tone")
	gt.NoError(t, err).Required()
	gt.Equal(t, updated.Version, 2)

	history, err := store.GetHistory(ctx, "script_writer", 1)
	gt.NoError(t, err).Required()
	gt.A(t, history).Length(1)
	gt.Equal(t, history[0].Version, before.Version)
	gt.Equal(t, history[0].SystemPrompt, before.SystemPrompt)
	gt.Equal(t, history[0].Templates, before.Templates)
	gt.Equal(t, history[0].ChangedBy, "alice")

	active, err := store.GetActive(ctx, "script_writer")
	gt.NoError(t, err).Required()
	gt.Equal(t, active.Version, 2)
	gt.Equal(t, active.SystemPrompt, "v2 prompt")
	gt.Equal(t, active.Templates["default"], "about {{.topic}}")
	gt.Equal(t, active.Templates["short"], "short {{.topic}}")
	gt.Equal(t, active.UpdatedBy, "bob")
	gt.Equal(t, active.ChangeNotes, "sharper tone")

	_, err = store.UpdateWithHistory(ctx, "script_writer", &agent.PromptDelta{}, "bob", "nothing")
	gt.True(t, goerr.HasTag(err, apperr.ErrTagValidation))

	_, err = store.UpdateWithHistory(ctx, "unknown", &agent.PromptDelta{SystemPrompt: strPtr("x")}, "bob", "x")
	gt.True(t, errors.Is(err, apperr.ErrPromptNotFound))
}

func TestPromptStoreCachesReads(t *testing.T) {
	ctx := context.Background()
	store, r := setupPromptStore(t)

	for i := 0; i < 3; i++ {
		_, err := store.GetActive(ctx, "script_writer")
		gt.NoError(t, err).Required()
	}
	gt.Equal(t, r.reads.Load(), int32(1))

	// a write invalidates the entry
	_, err := store.UpdateWithHistory(ctx, "script_writer", &agent.PromptDelta{SystemPrompt: strPtr("v2")}, "bob", "x")
	gt.NoError(t, err).Required()
	reads := r.reads.Load()

	cfg, err := store.GetActive(ctx, "script_writer")
	gt.NoError(t, err).Required()
	gt.Equal(t, cfg.SystemPrompt, "v2")
	gt.Equal(t, r.reads.Load(), reads+1)

	// returned configs are copies
	cfg.Templates["default"] = "tampered"
	again, err := store.GetActive(ctx, "script_writer")
	gt.NoError(t, err).Required()
	gt.Equal(t, again.Templates["default"], "about {{.topic}}")
}

func TestPromptStoreWriteDuringInFlightRead(t *testing.T) {
	ctx := context.Background()
	r := &blockingPromptRepo{
		Client:  repo.New(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	store := usecase.NewPromptStore(r)

	_, err := store.Create(ctx, &agent.PromptConfig{
		AgentID:      "script_writer",
		SystemPrompt: "v1",
	}, "alice")
	gt.NoError(t, err).Required()

	r.armed.Store(true)
	type readResult struct {
		cfg *agent.PromptConfig
		err error
	}
	done := make(chan readResult)
	go func() {
		cfg, err := store.GetActive(ctx, "script_writer")
		done <- readResult{cfg: cfg, err: err}
	}()
	<-r.entered

	updated, err := store.UpdateWithHistory(ctx, "script_writer", &agent.PromptDelta{
		SystemPrompt: strPtr("v2"),
	}, "bob", "rewrite")
	gt.NoError(t, err).Required()
	gt.Equal(t, updated.Version, 2)

	close(r.release)
	old := <-done
	gt.NoError(t, old.err).Required()
	gt.Equal(t, old.cfg.Version, 1)

	cfg, err := store.GetActive(ctx, "script_writer")
	gt.NoError(t, err).Required()
	gt.Equal(t, cfg.Version, 2)
	gt.Equal(t, cfg.SystemPrompt, "v2")
}

func TestPromptStoreList(t *testing.T) {
	ctx := context.Background()
	store, _ := setupPromptStore(t)

	_, err := store.Create(ctx, &agent.PromptConfig{AgentID: "image_prompter", SystemPrompt: "draw"}, "alice")
	gt.NoError(t, err).Required()

	configs, err := store.List(ctx)
	gt.NoError(t, err).Required()
	gt.Equal(t, len(configs), 2)
	gt.Equal(t, configs[0].AgentID, "image_prompter")
	gt.Equal(t, configs[1].AgentID, "script_writer")
}

func TestPromptStoreCacheExpires(t *testing.T) {
	ctx := context.Background()
	now := baseTime()
	clock := func() time.Time { return now }

	r := &countingPromptRepo{Client: repo.New()}
	store := usecase.NewPromptStore(r,
		usecase.WithPromptCache(cache.NewPromptCache(5*time.Minute, cache.WithClock(clock))))
	_, err := store.Create(ctx, &agent.PromptConfig{AgentID: "keyword_generator", SystemPrompt: "x"}, "alice")
	gt.NoError(t, err).Required()

	_, err = store.GetActive(ctx, "keyword_generator")
	gt.NoError(t, err).Required()
	_, err = store.GetActive(ctx, "keyword_generator")
	gt.NoError(t, err).Required()
	gt.Equal(t, r.reads.Load(), int32(1))

	now = now.Add(6 * time.Minute)
	_, err = store.GetActive(ctx, "keyword_generator")
	gt.NoError(t, err).Required()
	gt.Equal(t, r.reads.Load(), int32(2))
}

func TestPromptStoreRollback(t *testing.T) {
	ctx := context.Background()
	store, _ := setupPromptStore(t)

	_, err := store.UpdateWithHistory(ctx, "script_writer", &agent.PromptDelta{SystemPrompt: strPtr("v2 prompt")}, "bob", "v2")
	gt.NoError(t, err).Required()
	_, err = store.UpdateWithHistory(ctx, "script_writer", &agent.PromptDelta{SystemPrompt: strPtr("v3 prompt")}, "bob", "v3")
	gt.NoError(t, err).Required()

	t.Run("missing target does not mutate", func(t *testing.T) {
		_, err := store.RollbackToVersion(ctx, "script_writer", 9, "carol", "")
		gt.Error(t, err)
		gt.True(t, errors.Is(err, apperr.ErrPromptVersionNotFound))

		active, err := store.GetActive(ctx, "script_writer")
		gt.NoError(t, err).Required()
		gt.Equal(t, active.Version, 3)
		gt.Equal(t, active.SystemPrompt, "v3 prompt")

		history, err := store.GetHistory(ctx, "script_writer", 0)
		gt.NoError(t, err).Required()
		gt.A(t, history).Length(2)
	})

	t.Run("restores old content under a new version", func(t *testing.T) {
		restored, err := store.RollbackToVersion(ctx, "script_writer", 1, "carol", "")
		gt.NoError(t, err).Required()
		gt.Equal(t, restored.Version, 4)
		gt.Equal(t, restored.SystemPrompt, "v1 prompt")
		gt.Equal(t, restored.ChangeNotes, "rollback")
		gt.Equal(t, restored.UpdatedBy, "carol")

		history, err := store.GetHistory(ctx, "script_writer", 0)
		gt.NoError(t, err).Required()
		gt.A(t, history).Length(3)
		gt.Equal(t, history[0].Version, 3)
		gt.Equal(t, history[0].SystemPrompt, "v3 prompt")
		gt.Equal(t, history[2].Version, 1)

		active, err := store.GetActive(ctx, "script_writer")
		gt.NoError(t, err).Required()
		gt.Equal(t, active.Version, 4)
		gt.Equal(t, active.SystemPrompt, "v1 prompt")
	})
}

func TestPromptStoreGetVersion(t *testing.T) {
	ctx := context.Background()
	store, _ := setupPromptStore(t)

	_, err := store.UpdateWithHistory(ctx, "script_writer", &agent.PromptDelta{SystemPrompt: strPtr("v2 prompt")}, "bob", "v2")
	gt.NoError(t, err).Required()

	v1, err := store.GetVersion(ctx, "script_writer", 1)
	gt.NoError(t, err).Required()
	gt.Equal(t, v1.SystemPrompt, "v1 prompt")

	v2, err := store.GetVersion(ctx, "script_writer", 2)
	gt.NoError(t, err).Required()
	gt.Equal(t, v2.SystemPrompt, "v2 prompt")
	gt.Equal(t, v2.ChangedBy, "bob")

	_, err = store.GetVersion(ctx, "script_writer", 3)
	gt.True(t, errors.Is(err, apperr.ErrPromptVersionNotFound))
}
