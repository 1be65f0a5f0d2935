package interfaces

import (
	"context"

	"github.com/m-mizutani/shikigami/pkg/domain/model/agent"
	"github.com/m-mizutani/shikigami/pkg/domain/model/llm"
)

// ModelClient invokes a language model once. Implementations route on
// Request.Provider and Request.Model.
type ModelClient interface {
	Generate(ctx context.Context, req *llm.Request) (*llm.Response, error)
}

// PromptCache is a process-local cache of live prompt configs keyed by agent ID
type PromptCache interface {
	Get(agentID string) (*agent.PromptConfig, bool)
	Generation(agentID string) uint64
	Set(agentID string, cfg *agent.PromptConfig, gen uint64) bool
	Invalidate(agentID string)
}
