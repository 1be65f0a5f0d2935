package interfaces

import (
	"context"

	"github.com/m-mizutani/shikigami/pkg/domain/model/agent"
	"github.com/m-mizutani/shikigami/pkg/domain/model/eval"
	"github.com/m-mizutani/shikigami/pkg/domain/model/memory"
	"github.com/m-mizutani/shikigami/pkg/domain/types"
)

// PromptStore is the read side of the prompt store used by agents
type PromptStore interface {
	GetActive(ctx context.Context, agentID string) (*agent.PromptConfig, error)
}

// MemoryContextBuilder renders recalled memories for prompt injection
type MemoryContextBuilder interface {
	BuildContext(ctx context.Context, agentID string, scope *memory.Scope, memoryTypes []string, limit int) (string, error)
}

// EvaluateRequest is the input of an LLM-as-judge evaluation
type EvaluateRequest struct {
	AgentID     string
	ExecutionID types.ExecutionID
	Input       any
	Output      any
	Criteria    string
}

// OutputEvaluator scores an agent output. A nil Evaluation means no verdict.
type OutputEvaluator interface {
	EvaluateOutput(ctx context.Context, req EvaluateRequest) (*eval.Evaluation, error)
}

// TranscriptStore archives raw model exchanges. SaveTranscript returns the
// storage key.
type TranscriptStore interface {
	SaveTranscript(ctx context.Context, transcript *agent.Transcript) (string, error)
}
