package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/interfaces"
	"github.com/m-mizutani/shikigami/pkg/domain/model/agent"
	"github.com/m-mizutani/shikigami/pkg/domain/model/llm"
	"github.com/m-mizutani/shikigami/pkg/domain/model/memory"
	"github.com/m-mizutani/shikigami/pkg/domain/model/schema"
	"github.com/m-mizutani/shikigami/pkg/domain/types"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
	"github.com/m-mizutani/shikigami/pkg/service/image"
	"github.com/m-mizutani/shikigami/pkg/utils/async"
	"github.com/m-mizutani/shikigami/pkg/utils/errors"
)

// Agent runs one agent definition against the model. Execute never returns
// an error; failures are reported in the Result.
type Agent struct {
	defaults    *agent.Definition
	client      interfaces.ModelClient
	prompts     interfaces.PromptStore
	memories    interfaces.MemoryContextBuilder
	executions  interfaces.ExecutionRepository
	transcripts interfaces.TranscriptStore
	evaluator   interfaces.OutputEvaluator
	images      *image.Processor
	now         func() time.Time

	mu            sync.Mutex
	initialized   bool
	effective     *agent.Definition
	promptVersion int
}

// AgentOption configures Agent
type AgentOption func(*Agent)

// WithModelClient sets the model client
func WithModelClient(client interfaces.ModelClient) AgentOption {
	return func(a *Agent) {
		a.client = client
	}
}

// WithPromptStore sets the source of live prompt overrides
func WithPromptStore(store interfaces.PromptStore) AgentOption {
	return func(a *Agent) {
		a.prompts = store
	}
}

// WithMemoryStore enables memory context injection
func WithMemoryStore(store interfaces.MemoryContextBuilder) AgentOption {
	return func(a *Agent) {
		a.memories = store
	}
}

// WithExecutionRepository enables execution logging
func WithExecutionRepository(repo interfaces.ExecutionRepository) AgentOption {
	return func(a *Agent) {
		a.executions = repo
	}
}

// WithTranscriptStorage enables archiving of raw model exchanges
func WithTranscriptStorage(store interfaces.TranscriptStore) AgentOption {
	return func(a *Agent) {
		a.transcripts = store
	}
}

// WithEvaluator enables auto-evaluation of successful results
func WithEvaluator(evaluator interfaces.OutputEvaluator) AgentOption {
	return func(a *Agent) {
		a.evaluator = evaluator
	}
}

// WithImageRules replaces the default attachment rules
func WithImageRules(rules image.Rules) AgentOption {
	return func(a *Agent) {
		a.images = image.NewProcessor(rules)
	}
}

// WithClock sets the clock used for timestamps and latency
func WithClock(now func() time.Time) AgentOption {
	return func(a *Agent) {
		a.now = now
	}
}

// NewAgent creates a runtime for def. The definition is copied.
func NewAgent(def *agent.Definition, opts ...AgentOption) (*Agent, error) {
	if def == nil {
		return nil, goerr.New("agent definition is required", goerr.T(apperr.ErrTagInvalidInput))
	}
	if err := def.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid agent definition",
			goerr.T(apperr.ErrTagValidation), goerr.TV(apperr.AgentIDKey, def.ID))
	}

	a := &Agent{
		defaults: def.Clone(),
		images:   image.NewProcessor(image.DefaultRules()),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.effective = a.defaults
	return a, nil
}

// ID returns the agent ID
func (a *Agent) ID() string {
	return a.defaults.ID
}

// Initialize loads the live prompt config and merges it onto the compiled-in
// defaults. After one successful load further calls do nothing. When the
// prompt store fails the defaults stay in effect and the next call retries.
func (a *Agent) Initialize(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.initialized {
		return
	}
	if a.prompts == nil {
		a.initialized = true
		return
	}

	cfg, err := a.prompts.GetActive(ctx, a.defaults.ID)
	switch {
	case goerr.HasTag(err, apperr.ErrTagPromptNotFound):
		a.effective = a.defaults
		a.promptVersion = 0
	case err != nil:
		errors.Warn(ctx, goerr.Wrap(err, "failed to load prompt config",
			goerr.T(apperr.ErrTagPersistence), goerr.TV(apperr.AgentIDKey, a.defaults.ID)),
			"using default prompt", "agent_id", a.defaults.ID)
		return
	case cfg == nil || !cfg.IsActive:
		a.effective = a.defaults
		a.promptVersion = 0
	default:
		a.effective = applyPromptConfig(a.defaults, cfg)
		a.promptVersion = cfg.Version
	}

	a.initialized = true
	ctxlog.From(ctx).Debug("agent initialized",
		"agent_id", a.defaults.ID, "prompt_version", a.promptVersion)
}

// applyPromptConfig overlays a live config on the defaults key by key
func applyPromptConfig(def *agent.Definition, cfg *agent.PromptConfig) *agent.Definition {
	merged := def.Clone()
	if cfg.SystemPrompt != "" {
		merged.SystemPrompt = cfg.SystemPrompt
	}
	merged.Templates = agent.MergeTemplates(def.Templates, cfg.Templates)
	merged.Model = def.Model.Merge(cfg.ModelOptions)
	return merged
}

// PromptVersion returns the live prompt version in effect, 0 for the defaults
func (a *Agent) PromptVersion(ctx context.Context) int {
	a.Initialize(ctx)
	_, v := a.current()
	return v
}

func (a *Agent) current() (*agent.Definition, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.effective, a.promptVersion
}

type executeConfig struct {
	template string
	criteria string
	evaluate bool
}

// ExecuteOption configures one Execute call
type ExecuteOption func(*executeConfig)

// WithTemplate renders the named template instead of the default one
func WithTemplate(name string) ExecuteOption {
	return func(c *executeConfig) {
		c.template = name
	}
}

// WithEvaluationCriteria is passed to the judge on auto-evaluation
func WithEvaluationCriteria(criteria string) ExecuteOption {
	return func(c *executeConfig) {
		c.criteria = criteria
	}
}

// WithoutEvaluation disables auto-evaluation of the result
func WithoutEvaluation() ExecuteOption {
	return func(c *executeConfig) {
		c.evaluate = false
	}
}

// Execute runs the agent on input
func (a *Agent) Execute(ctx context.Context, input any, ictx agent.InvocationContext, opts ...ExecuteOption) *agent.Result {
	return a.run(ctx, input, nil, ictx, opts)
}

// ExecuteWithImages runs the agent on input with image attachments. Agents
// without vision reject attachments.
func (a *Agent) ExecuteWithImages(ctx context.Context, input any, images []llm.Image, ictx agent.InvocationContext, opts ...ExecuteOption) *agent.Result {
	return a.run(ctx, input, images, ictx, opts)
}

// execution is the state of one run shared with its side effects
type execution struct {
	def        *agent.Definition
	meta       agent.Metadata
	input      any
	startedAt  time.Time
	started    chan error
	transcript *agent.Transcript
}

func (a *Agent) run(ctx context.Context, input any, images []llm.Image, ictx agent.InvocationContext, opts []ExecuteOption) (result *agent.Result) {
	cfg := &executeConfig{evaluate: true}
	for _, opt := range opts {
		opt(cfg)
	}

	x := &execution{startedAt: a.now()}
	x.meta = agent.Metadata{
		AgentID:     a.defaults.ID,
		ExecutionID: types.NewExecutionID(ctx),
		Model:       a.defaults.Model.Model,
		Timestamp:   x.startedAt,
	}
	ctx = ctxlog.With(ctx, ctxlog.From(ctx).With("agent_id", a.defaults.ID, "execution_id", x.meta.ExecutionID))

	defer func() {
		if r := recover(); r != nil {
			errors.Handle(ctx, goerr.New("panic in agent execution",
				goerr.T(apperr.ErrTagModelInvocation), goerr.V("recover", r)))
			result = agent.NewFailure(agent.ErrorKindModelInvocation, "internal error during execution", x.meta)
		}
		result.Metadata.LatencyMs = a.now().Sub(x.startedAt).Milliseconds()

		a.finish(ctx, x, result)
		if result.Success && cfg.evaluate {
			a.evaluate(ctx, x, result, cfg.criteria)
		}
	}()

	a.Initialize(ctx)
	var version int
	x.def, version = a.current()
	x.meta.Model = x.def.Model.Model
	x.meta.PromptVersion = version

	normalized, normErr := schema.Normalize(input)
	x.input = normalized
	a.start(ctx, x, ictx)

	if normErr != nil {
		return a.fail(agent.ErrorKindValidation, fmt.Sprintf("input is not serializable: %s", normErr.Error()), x)
	}
	if err := x.def.InputSchema.Validate(normalized); err != nil {
		return a.fail(agent.ErrorKindValidation, fmt.Sprintf("invalid input: %s", err.Error()), x)
	}

	prepared, err := a.prepareImages(x.def, images)
	if err != nil {
		return a.fail(agent.ErrorKindValidation, err.Error(), x)
	}

	data := templateData(normalized)
	if x.def.Memory.Enabled && a.memories != nil {
		data["memory_context"] = a.memoryContext(ctx, x.def, ictx)
	}

	name := cfg.template
	if name == "" {
		name = x.def.TemplateName()
	}
	userPrompt, err := renderPrompt(x.def.Templates, name, data)
	if err != nil {
		return a.fail(agent.ErrorKindValidation, fmt.Sprintf("failed to render prompt: %s", err.Error()), x)
	}

	if a.client == nil {
		return a.fail(agent.ErrorKindModelInvocation, "model client is not configured", x)
	}

	req := &llm.Request{
		Provider:     llm.ProviderFromString(x.def.Model.Provider),
		Model:        x.def.Model.Model,
		SystemPrompt: x.def.SystemPrompt,
		UserPrompt:   userPrompt,
		Images:       prepared,
		Sampling: llm.SamplingOptions{
			Temperature: x.def.Model.Temperature,
			TopP:        x.def.Model.TopP,
			MaxTokens:   x.def.Model.MaxTokens,
		},
		ResponseFormat: llm.ResponseFormatText,
	}
	if x.def.OutputSchema != nil && x.def.OutputSchema.Type == schema.TypeObject {
		req.ResponseFormat = llm.ResponseFormatJSON
	}

	x.transcript = &agent.Transcript{
		ExecutionID:   x.meta.ExecutionID,
		AgentID:       x.def.ID,
		Model:         req.Model,
		PromptVersion: version,
		SystemPrompt:  req.SystemPrompt,
		UserPrompt:    req.UserPrompt,
		ImageCount:    len(prepared),
	}

	resp, err := a.client.Generate(ctx, req)
	if err != nil {
		errors.Warn(ctx, err, "model invocation failed")
		return a.fail(agent.ErrorKindModelInvocation, fmt.Sprintf("model invocation failed: %s", err.Error()), x)
	}
	x.meta.TokenUsage = resp.Usage

	parsed, method := llm.ParseContent(resp.Content)
	x.transcript.RawResponse = resp.Content
	x.transcript.ParseMethod = method
	x.transcript.Usage = resp.Usage

	if method == llm.ParseRaw && x.def.OutputSchema.IsStructured() {
		return a.fail(agent.ErrorKindModelInvocation, "model output could not be parsed as JSON", x)
	}
	if err := x.def.OutputSchema.Validate(parsed); err != nil {
		return a.fail(agent.ErrorKindValidation, fmt.Sprintf("invalid output: %s", err.Error()), x)
	}

	ctxlog.From(ctx).Debug("agent executed", "parse_method", method, "tokens", resp.Usage.Total)
	return agent.NewSuccess(parsed, x.meta)
}

func (a *Agent) fail(kind agent.ErrorKind, msg string, x *execution) *agent.Result {
	return agent.NewFailure(kind, msg, x.meta)
}

func (a *Agent) prepareImages(def *agent.Definition, images []llm.Image) ([]llm.Image, error) {
	if len(images) == 0 {
		return nil, nil
	}
	if !def.Vision {
		return nil, goerr.New("agent does not accept images", goerr.T(apperr.ErrTagValidation))
	}
	prepared, err := a.images.Prepare(images)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid image attachment", goerr.T(apperr.ErrTagValidation))
	}
	return prepared, nil
}

func (a *Agent) memoryContext(ctx context.Context, def *agent.Definition, ictx agent.InvocationContext) string {
	scope := &memory.Scope{CampaignID: ictx.CampaignID, ArtistName: ictx.ArtistName}
	text, err := a.memories.BuildContext(ctx, def.ID, scope, def.Memory.Types, def.Memory.Limit)
	if err != nil {
		errors.Warn(ctx, goerr.Wrap(err, "failed to build memory context", goerr.T(apperr.ErrTagPersistence)),
			"memory context skipped")
		return ""
	}
	return text
}

// start logs the running record. x.started receives the outcome so that
// finalization never races ahead of creation.
func (a *Agent) start(ctx context.Context, x *execution, ictx agent.InvocationContext) {
	if a.executions == nil {
		return
	}

	rec := agent.NewExecutionRecord(x.meta.ExecutionID, x.def.ID, x.input, ictx,
		x.meta.PromptVersion, x.meta.Model, x.startedAt)
	x.started = make(chan error, 1)
	started := x.started

	async.Dispatch(ctx, func(ctx context.Context) error {
		err := a.executions.CreateExecution(ctx, rec)
		started <- err
		if err != nil {
			errors.Warn(ctx, goerr.Wrap(err, "failed to log execution start", goerr.T(apperr.ErrTagPersistence)),
				"execution not logged", "execution_id", rec.ID)
		}
		return nil
	})
}

// finish archives the transcript and finalizes the record
func (a *Agent) finish(ctx context.Context, x *execution, result *agent.Result) {
	transcript := x.transcript
	started := x.started
	if transcript == nil && started == nil {
		return
	}

	outcome := agent.ExecutionOutcome{
		Status:      agent.ExecutionSuccess,
		Output:      result.Data,
		TokenUsage:  result.Metadata.TokenUsage,
		LatencyMs:   result.Metadata.LatencyMs,
		CompletedAt: x.startedAt.Add(time.Duration(result.Metadata.LatencyMs) * time.Millisecond),
	}
	if !result.Success && result.Error != nil {
		outcome.Status = agent.ExecutionError
		outcome.ErrorKind = result.Error.Kind
		outcome.ErrorMessage = result.Error.Message
	}

	async.Dispatch(ctx, func(ctx context.Context) error {
		if transcript != nil && transcript.RawResponse != "" && a.transcripts != nil {
			transcript.CreatedAt = outcome.CompletedAt
			key, err := a.transcripts.SaveTranscript(ctx, transcript)
			if err != nil {
				errors.Warn(ctx, goerr.Wrap(err, "failed to save transcript", goerr.T(apperr.ErrTagPersistence)),
					"transcript not saved", "execution_id", transcript.ExecutionID)
			}
			outcome.TranscriptKey = key
		}

		if started == nil {
			return nil
		}
		if err := <-started; err != nil {
			return nil
		}
		if err := a.executions.FinalizeExecution(ctx, x.meta.ExecutionID, outcome); err != nil {
			errors.Warn(ctx, goerr.Wrap(err, "failed to finalize execution", goerr.T(apperr.ErrTagPersistence)),
				"execution not finalized", "execution_id", x.meta.ExecutionID)
		}
		return nil
	})
}

func (a *Agent) evaluate(ctx context.Context, x *execution, result *agent.Result, criteria string) {
	if a.evaluator == nil {
		return
	}

	req := interfaces.EvaluateRequest{
		AgentID:     x.meta.AgentID,
		ExecutionID: x.meta.ExecutionID,
		Input:       x.input,
		Output:      result.Data,
		Criteria:    criteria,
	}
	async.Dispatch(ctx, func(ctx context.Context) error {
		if _, err := a.evaluator.EvaluateOutput(ctx, req); err != nil {
			errors.Warn(ctx, err, "auto evaluation skipped", "execution_id", req.ExecutionID)
		}
		return nil
	})
}
