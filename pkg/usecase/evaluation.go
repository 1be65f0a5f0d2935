package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/interfaces"
	"github.com/m-mizutani/shikigami/pkg/domain/model/eval"
	"github.com/m-mizutani/shikigami/pkg/domain/model/llm"
	"github.com/m-mizutani/shikigami/pkg/domain/types"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
	"github.com/m-mizutani/shikigami/pkg/utils/errors"
)

// judgeTemperature keeps judge verdicts close to deterministic
const judgeTemperature = 0.2

const judgeSystemPrompt = `You are a strict reviewer of marketing content produced by an AI agent.
Score the agent output on a 1 to 5 integer scale for each of:
- overall: how well the output serves the request as a whole
- relevance: how closely it follows the input and the criteria
- quality: writing quality, structure and correctness
- creativity: originality and appeal

Respond with a single JSON object and nothing else:
{"overall": n, "relevance": n, "quality": n, "creativity": n,
 "feedback": "one paragraph", "strengths": ["..."], "weaknesses": ["..."], "suggestions": ["..."]}`

// Harness scores agent output with a judge model, runs regression suites and
// aggregates metrics
type Harness struct {
	client   interfaces.ModelClient
	repo     interfaces.EvaluationRepository
	provider llm.ProviderType
	model    string
	now      func() time.Time

	locks keyedMutex
}

var _ interfaces.OutputEvaluator = (*Harness)(nil)

// HarnessOption configures Harness
type HarnessOption func(*Harness)

// WithJudgeModel selects the judge provider and model
func WithJudgeModel(provider llm.ProviderType, model string) HarnessOption {
	return func(h *Harness) {
		h.provider = provider
		h.model = model
	}
}

// WithHarnessClock sets the clock used for feedback and test run timestamps
func WithHarnessClock(now func() time.Time) HarnessOption {
	return func(h *Harness) {
		h.now = now
	}
}

// NewHarness creates an evaluation harness
func NewHarness(client interfaces.ModelClient, repo interfaces.EvaluationRepository, opts ...HarnessOption) *Harness {
	h := &Harness{
		client: client,
		repo:   repo,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// EvaluateOutput asks the judge model to score an output. A nil Evaluation
// with an error tagged ErrTagJudgeUnavailable means no verdict was produced;
// it is never a zero score. The verdict is stored as llm_judge feedback when
// req.ExecutionID is set.
func (h *Harness) EvaluateOutput(ctx context.Context, req interfaces.EvaluateRequest) (*eval.Evaluation, error) {
	if h.client == nil {
		return nil, goerr.Wrap(apperr.ErrJudgeNotConfigured, "judge is not available",
			goerr.T(apperr.ErrTagJudgeUnavailable), goerr.TV(apperr.AgentIDKey, req.AgentID))
	}

	userPrompt, err := buildJudgePrompt(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build judge prompt",
			goerr.T(apperr.ErrTagJudgeUnavailable), goerr.TV(apperr.AgentIDKey, req.AgentID))
	}

	temperature := judgeTemperature
	resp, err := h.client.Generate(ctx, &llm.Request{
		Provider:       h.provider,
		Model:          h.model,
		SystemPrompt:   judgeSystemPrompt,
		UserPrompt:     userPrompt,
		ResponseFormat: llm.ResponseFormatJSON,
		Sampling:       llm.SamplingOptions{Temperature: &temperature},
	})
	if err != nil {
		return nil, goerr.Wrap(err, "judge call failed",
			goerr.T(apperr.ErrTagJudgeUnavailable), goerr.TV(apperr.AgentIDKey, req.AgentID))
	}

	evaluation, err := parseVerdict(resp.Content)
	if err != nil {
		return nil, goerr.Wrap(err, "judge returned an unusable verdict",
			goerr.T(apperr.ErrTagJudgeUnavailable), goerr.TV(apperr.AgentIDKey, req.AgentID))
	}
	evaluation.JudgeModel = h.model

	if req.ExecutionID != "" {
		fb := evaluation.ToFeedback(types.NewFeedbackID(ctx), req.ExecutionID, req.AgentID, h.now())
		if err := h.repo.PutFeedback(ctx, fb); err != nil {
			errors.Warn(ctx, goerr.Wrap(err, "failed to save judge feedback", goerr.T(apperr.ErrTagPersistence)),
				"judge feedback not saved", "agent_id", req.AgentID, "execution_id", req.ExecutionID)
		}
	}

	ctxlog.From(ctx).Debug("output evaluated",
		"agent_id", req.AgentID, "execution_id", req.ExecutionID, "overall", evaluation.Scores.Overall)
	return evaluation, nil
}

// SaveUserFeedback stores an operator's verdict on an execution
func (h *Harness) SaveUserFeedback(ctx context.Context, executionID types.ExecutionID, agentID string, input eval.UserFeedback) (*eval.Feedback, error) {
	if input.OverallScore < eval.MinScore || input.OverallScore > eval.MaxScore {
		return nil, goerr.New("overall score must be between 1 and 5",
			goerr.T(apperr.ErrTagValidation), goerr.V("overall_score", input.OverallScore))
	}
	if agentID == "" || executionID == "" {
		return nil, goerr.New("agent ID and execution ID are required", goerr.T(apperr.ErrTagValidation))
	}

	fb := &eval.Feedback{
		ID:           types.NewFeedbackID(ctx),
		ExecutionID:  executionID,
		AgentID:      agentID,
		Source:       eval.SourceUser,
		Scores:       eval.Scores{Overall: input.OverallScore},
		FeedbackText: input.FeedbackText,
		CreatedAt:    h.now(),
	}
	if err := h.repo.PutFeedback(ctx, fb); err != nil {
		return nil, goerr.Wrap(err, "failed to save user feedback",
			goerr.TV(apperr.AgentIDKey, agentID), goerr.TV(apperr.ExecutionIDKey, executionID))
	}
	return fb, nil
}

func buildJudgePrompt(req interfaces.EvaluateRequest) (string, error) {
	input, err := json.MarshalIndent(req.Input, "", "  ")
	if err != nil {
		return "", goerr.Wrap(err, "input is not serializable")
	}
	output, err := json.MarshalIndent(req.Output, "", "  ")
	if err != nil {
		return "", goerr.Wrap(err, "output is not serializable")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Agent: %s\n\n", req.AgentID)
	fmt.Fprintf(&sb, "Input:\n%s\n\n", input)
	fmt.Fprintf(&sb, "Output:\n%s\n", output)
	if req.Criteria != "" {
		fmt.Fprintf(&sb, "\nExpected criteria:\n%s\n", req.Criteria)
	}
	return sb.String(), nil
}

// parseVerdict reads the judge JSON. Overall is required; a missing
// sub-score takes the overall value.
func parseVerdict(content string) (*eval.Evaluation, error) {
	parsed, method := llm.ParseContent(content)
	obj, ok := parsed.(map[string]any)
	if method == llm.ParseRaw || !ok {
		return nil, goerr.New("verdict is not a JSON object", goerr.V("content", content))
	}

	overall, ok := obj["overall"].(float64)
	if !ok {
		return nil, goerr.New("verdict has no overall score", goerr.V("content", content))
	}
	score := func(name string) int {
		if v, ok := obj[name].(float64); ok {
			return eval.ClampScore(v)
		}
		return eval.ClampScore(overall)
	}

	feedback, _ := obj["feedback"].(string)
	return &eval.Evaluation{
		Scores: eval.Scores{
			Overall:    eval.ClampScore(overall),
			Relevance:  score("relevance"),
			Quality:    score("quality"),
			Creativity: score("creativity"),
		},
		Feedback:    feedback,
		Strengths:   stringList(obj["strengths"]),
		Weaknesses:  stringList(obj["weaknesses"]),
		Suggestions: stringList(obj["suggestions"]),
	}, nil
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// keyedMutex serializes work per key and drops idle entries
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
