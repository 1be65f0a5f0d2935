package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/shikigami/pkg/domain/interfaces"
	"github.com/m-mizutani/shikigami/pkg/domain/model/agent"
	"github.com/m-mizutani/shikigami/pkg/domain/model/eval"
	"github.com/m-mizutani/shikigami/pkg/domain/model/llm"
	"github.com/m-mizutani/shikigami/pkg/domain/model/schema"
	"github.com/m-mizutani/shikigami/pkg/domain/types"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
)

// Mock for ModelClient
type ModelClientMock struct {
	GenerateFunc func(ctx context.Context, req *llm.Request) (*llm.Response, error)

	mu       sync.Mutex
	requests []*llm.Request
}

var _ interfaces.ModelClient = (*ModelClientMock)(nil)

func (m *ModelClientMock) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return &llm.Response{Content: `{}`, Usage: llm.NewUsage(1, 1)}, nil
}

func (m *ModelClientMock) Requests() []*llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*llm.Request(nil), m.requests...)
}

// Mock for PromptStore
type PromptStoreMock struct {
	GetActiveFunc func(ctx context.Context, agentID string) (*agent.PromptConfig, error)

	mu    sync.Mutex
	calls int
}

func (m *PromptStoreMock) GetActive(ctx context.Context, agentID string) (*agent.PromptConfig, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.GetActiveFunc != nil {
		return m.GetActiveFunc(ctx, agentID)
	}
	return nil, apperr.ErrPromptNotFound
}

func (m *PromptStoreMock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Mock for TranscriptStore
type TranscriptStoreMock struct {
	SaveTranscriptFunc func(ctx context.Context, transcript *agent.Transcript) (string, error)
}

func (m *TranscriptStoreMock) SaveTranscript(ctx context.Context, transcript *agent.Transcript) (string, error) {
	if m.SaveTranscriptFunc != nil {
		return m.SaveTranscriptFunc(ctx, transcript)
	}
	return "transcripts/" + transcript.AgentID + "/" + transcript.ExecutionID.String() + ".json.gz", nil
}

// Mock for OutputEvaluator
type OutputEvaluatorMock struct {
	EvaluateOutputFunc func(ctx context.Context, req interfaces.EvaluateRequest) (*eval.Evaluation, error)
}

func (m *OutputEvaluatorMock) EvaluateOutput(ctx context.Context, req interfaces.EvaluateRequest) (*eval.Evaluation, error) {
	if m.EvaluateOutputFunc != nil {
		return m.EvaluateOutputFunc(ctx, req)
	}
	return nil, nil
}

// fixedClock returns a clock that advances by step on every call
func fixedClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := now
		now = now.Add(step)
		return t
	}
}

func baseTime() time.Time {
	return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
}

func newScriptWriter() *agent.Definition {
	return &agent.Definition{
		ID:           "script_writer",
		Category:     "content",
		Model:        agent.ModelOptions{Provider: "openai", Model: "gpt-4o"},
		SystemPrompt: "You write short video scripts.",
		Templates: map[string]string{
			"default": `Write a script about {{.topic}} for {{default "everyone" .audience}}.
{{if .points}}Points: {{join .points ", "}}{{end}}
{{.memory_context}}`,
			"short": `One line about {{.topic}}.`,
		},
		DefaultTemplate: "default",
		InputSchema: &schema.Schema{
			Type: schema.TypeObject,
			Properties: map[string]*schema.Schema{
				"topic":    {Type: schema.TypeString},
				"audience": {Type: schema.TypeString},
				"points":   {Type: schema.TypeArray, Items: &schema.Schema{Type: schema.TypeString}},
			},
			Required: []string{"topic"},
		},
		OutputSchema: &schema.Schema{
			Type: schema.TypeObject,
			Properties: map[string]*schema.Schema{
				"title": {Type: schema.TypeString},
			},
			Required: []string{"title"},
		},
		Memory: agent.MemoryConfig{Enabled: true, Types: []string{"preference"}, Limit: 5},
	}
}

// Mock for ExecutionRepository
type ExecutionRepositoryMock struct {
	CreateExecutionFunc   func(ctx context.Context, rec *agent.ExecutionRecord) error
	FinalizeExecutionFunc func(ctx context.Context, id types.ExecutionID, outcome agent.ExecutionOutcome) error
}

func (m *ExecutionRepositoryMock) CreateExecution(ctx context.Context, rec *agent.ExecutionRecord) error {
	if m.CreateExecutionFunc != nil {
		return m.CreateExecutionFunc(ctx, rec)
	}
	return nil
}

func (m *ExecutionRepositoryMock) FinalizeExecution(ctx context.Context, id types.ExecutionID, outcome agent.ExecutionOutcome) error {
	if m.FinalizeExecutionFunc != nil {
		return m.FinalizeExecutionFunc(ctx, id, outcome)
	}
	return nil
}

func (m *ExecutionRepositoryMock) GetExecution(ctx context.Context, id types.ExecutionID) (*agent.ExecutionRecord, error) {
	return nil, apperr.ErrExecutionNotFound
}

func (m *ExecutionRepositoryMock) ListExecutions(ctx context.Context, agentID string, start, end time.Time) ([]*agent.ExecutionRecord, error) {
	return []*agent.ExecutionRecord{}, nil
}
