package cli

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/catalog"
	"github.com/m-mizutani/shikigami/pkg/cli/config"
	"github.com/m-mizutani/shikigami/pkg/domain/interfaces"
	"github.com/m-mizutani/shikigami/pkg/repository/storage"
	"github.com/m-mizutani/shikigami/pkg/service/cache"
	"github.com/m-mizutani/shikigami/pkg/usecase"
	"github.com/m-mizutani/shikigami/pkg/utils/async"
	"github.com/urfave/cli/v3"
)

// pendingSideEffectTimeout bounds how long a command waits for execution
// logging, transcripts and evaluations to land before closing the store
const pendingSideEffectTimeout = 30 * time.Second

// runtimeConfig collects the infrastructure settings shared by all commands
type runtimeConfig struct {
	database config.Database
	llm      config.LLMConfig
	storage  config.Storage
	catalog  config.Catalog
	judge    config.Judge
	cacheTTL time.Duration
}

func (x *runtimeConfig) Flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, x.database.Flags()...)
	flags = append(flags, x.llm.Flags()...)
	flags = append(flags, x.storage.Flags()...)
	flags = append(flags, x.catalog.Flags()...)
	flags = append(flags, x.judge.Flags()...)
	flags = append(flags, &cli.DurationFlag{
		Name:        "prompt-cache-ttl",
		Usage:       "How long live prompt configs are cached",
		Sources:     cli.EnvVars("SHIKIGAMI_PROMPT_CACHE_TTL"),
		Value:       cache.DefaultPromptTTL,
		Destination: &x.cacheTTL,
	})
	return flags
}

// services are the use cases wired on top of the configured store
type services struct {
	catalog     *catalog.Catalog
	repo        interfaces.Repository
	prompts     *usecase.PromptStore
	memories    *usecase.MemoryStore
	transcripts *storage.Client
	cleanups    []func()
}

// open builds the store side of the runtime. No LLM client is created.
func (x *runtimeConfig) open(ctx context.Context) (*services, error) {
	cat, err := x.catalog.Load()
	if err != nil {
		return nil, err
	}

	ctxlog.From(ctx).Debug("opening database", "database", x.database)
	repo, closeRepo, err := x.database.NewRepository(ctx)
	if err != nil {
		return nil, err
	}

	svc := &services{
		catalog:  cat,
		repo:     repo,
		prompts:  usecase.NewPromptStore(repo, usecase.WithPromptCache(cache.NewPromptCache(x.cacheTTL))),
		memories: usecase.NewMemoryStore(repo),
		cleanups: []func(){closeRepo},
	}

	if x.storage.IsEnabled() {
		adapter, closeAdapter, err := x.storage.CreateAdapter(ctx)
		if err != nil {
			svc.Close(ctx)
			return nil, err
		}
		svc.transcripts = storage.New(adapter)
		svc.cleanups = append(svc.cleanups, closeAdapter)
	}

	return svc, nil
}

// Close waits for dispatched side effects and releases the store
func (s *services) Close(ctx context.Context) {
	if !async.Wait(pendingSideEffectTimeout) {
		ctxlog.From(ctx).Warn("side effects still running at shutdown")
	}
	for i := len(s.cleanups) - 1; i >= 0; i-- {
		s.cleanups[i]()
	}
}

// models carries the LLM backed parts of the runtime
type models struct {
	client  interfaces.ModelClient
	harness *usecase.Harness
}

// openModels builds the LLM factory and the evaluation harness judging with it
func (x *runtimeConfig) openModels(ctx context.Context, svc *services) (*models, error) {
	providers, err := x.llm.LoadAndValidate()
	if err != nil {
		return nil, err
	}

	factory, err := x.llm.BuildFactory(ctx, providers)
	if err != nil {
		return nil, err
	}

	return &models{
		client:  factory,
		harness: usecase.NewHarness(factory, svc.repo, x.judge.HarnessOptions(providers)...),
	}, nil
}

// newAgent wires the runtime agent of agentID
func (s *services) newAgent(agentID string, m *models) (*usecase.Agent, error) {
	def, err := s.catalog.Get(agentID)
	if err != nil {
		return nil, err
	}

	opts := []usecase.AgentOption{
		usecase.WithModelClient(m.client),
		usecase.WithPromptStore(s.prompts),
		usecase.WithMemoryStore(s.memories),
		usecase.WithExecutionRepository(s.repo),
		usecase.WithEvaluator(m.harness),
	}
	if s.transcripts != nil {
		opts = append(opts, usecase.WithTranscriptStorage(s.transcripts))
	}

	return usecase.NewAgent(def, opts...)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return goerr.Wrap(err, "failed to write output")
	}
	return nil
}
