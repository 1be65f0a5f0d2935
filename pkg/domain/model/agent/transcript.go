package agent

import (
	"time"

	"github.com/m-mizutani/shikigami/pkg/domain/model/llm"
	"github.com/m-mizutani/shikigami/pkg/domain/types"
)

// Transcript is the archived exchange with the model for one execution
type Transcript struct {
	ExecutionID   types.ExecutionID `json:"execution_id"`
	AgentID       string            `json:"agent_id"`
	Model         string            `json:"model"`
	PromptVersion int               `json:"prompt_version"`
	SystemPrompt  string            `json:"system_prompt"`
	UserPrompt    string            `json:"user_prompt"`
	ImageCount    int               `json:"image_count,omitempty"`
	RawResponse   string            `json:"raw_response"`
	ParseMethod   llm.ParseMethod   `json:"parse_method,omitempty"`
	Usage         llm.Usage         `json:"usage"`
	CreatedAt     time.Time         `json:"created_at"`
}
