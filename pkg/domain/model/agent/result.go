package agent

import (
	"time"

	"github.com/m-mizutani/shikigami/pkg/domain/model/llm"
	"github.com/m-mizutani/shikigami/pkg/domain/types"
)

// ErrorKind classifies a failed agent result
type ErrorKind string

const (
	ErrorKindValidation      ErrorKind = "validation"
	ErrorKindModelInvocation ErrorKind = "model_invocation"
)

// ExecError is the failure carried by a Result
type ExecError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *ExecError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Metadata describes how a Result was produced
type Metadata struct {
	AgentID       string            `json:"agent_id"`
	ExecutionID   types.ExecutionID `json:"execution_id"`
	Model         string            `json:"model"`
	PromptVersion int               `json:"prompt_version"`
	TokenUsage    llm.Usage         `json:"token_usage"`
	LatencyMs     int64             `json:"latency_ms"`
	Timestamp     time.Time         `json:"timestamp"`
}

// Result is the outcome of Agent.Execute. It is always returned, never an error.
type Result struct {
	Success  bool       `json:"success"`
	Data     any        `json:"data,omitempty"`
	Error    *ExecError `json:"error,omitempty"`
	Metadata Metadata   `json:"metadata"`
}

// NewSuccess builds a successful result
func NewSuccess(data any, meta Metadata) *Result {
	return &Result{Success: true, Data: data, Metadata: meta}
}

// NewFailure builds a failed result
func NewFailure(kind ErrorKind, msg string, meta Metadata) *Result {
	return &Result{
		Success:  false,
		Error:    &ExecError{Kind: kind, Message: msg},
		Metadata: meta,
	}
}
