package agent

import (
	"time"

	"github.com/m-mizutani/shikigami/pkg/domain/model/llm"
	"github.com/m-mizutani/shikigami/pkg/domain/types"
)

// ExecutionStatus is the lifecycle state of an ExecutionRecord
type ExecutionStatus string

const (
	ExecutionRunning ExecutionStatus = "running"
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionError   ExecutionStatus = "error"
)

// IsFinal reports whether the status is terminal
func (s ExecutionStatus) IsFinal() bool {
	return s == ExecutionSuccess || s == ExecutionError
}

// InvocationContext carries caller identifiers. It is passed through as-is.
type InvocationContext struct {
	SessionID  string `json:"session_id,omitempty" firestore:"session_id"`
	CampaignID string `json:"campaign_id,omitempty" firestore:"campaign_id"`
	ArtistName string `json:"artist_name,omitempty" firestore:"artist_name"`
}

// ExecutionRecord is the durable log of one agent invocation
type ExecutionRecord struct {
	ID            types.ExecutionID `json:"id" firestore:"id"`
	AgentID       string            `json:"agent_id" firestore:"agent_id"`
	SessionID     string            `json:"session_id,omitempty" firestore:"session_id"`
	CampaignID    string            `json:"campaign_id,omitempty" firestore:"campaign_id"`
	ArtistName    string            `json:"artist_name,omitempty" firestore:"artist_name"`
	Input         any               `json:"input" firestore:"input"`
	Output        any               `json:"output,omitempty" firestore:"output"`
	Status        ExecutionStatus   `json:"status" firestore:"status"`
	ErrorKind     ErrorKind         `json:"error_kind,omitempty" firestore:"error_kind"`
	ErrorMessage  string            `json:"error_message,omitempty" firestore:"error_message"`
	TokenUsage    llm.Usage         `json:"token_usage" firestore:"token_usage"`
	LatencyMs     int64             `json:"latency_ms" firestore:"latency_ms"`
	PromptVersion int               `json:"prompt_version" firestore:"prompt_version"`
	Model         string            `json:"model" firestore:"model"`
	TranscriptKey string            `json:"transcript_key,omitempty" firestore:"transcript_key"`
	StartedAt     time.Time         `json:"started_at" firestore:"started_at"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty" firestore:"completed_at"`
}

// NewExecutionRecord creates a record in running state
func NewExecutionRecord(id types.ExecutionID, agentID string, input any, ictx InvocationContext, promptVersion int, model string, now time.Time) *ExecutionRecord {
	return &ExecutionRecord{
		ID:            id,
		AgentID:       agentID,
		SessionID:     ictx.SessionID,
		CampaignID:    ictx.CampaignID,
		ArtistName:    ictx.ArtistName,
		Input:         input,
		Status:        ExecutionRunning,
		PromptVersion: promptVersion,
		Model:         model,
		StartedAt:     now,
	}
}

// ExecutionOutcome is what finalization writes onto a running record
type ExecutionOutcome struct {
	Status        ExecutionStatus
	Output        any
	ErrorKind     ErrorKind
	ErrorMessage  string
	TokenUsage    llm.Usage
	LatencyMs     int64
	TranscriptKey string
	CompletedAt   time.Time
}

// Finalize applies the outcome to the record
func (r *ExecutionRecord) Finalize(outcome ExecutionOutcome) {
	completedAt := outcome.CompletedAt
	r.Status = outcome.Status
	r.Output = outcome.Output
	r.ErrorKind = outcome.ErrorKind
	r.ErrorMessage = outcome.ErrorMessage
	r.TokenUsage = outcome.TokenUsage
	r.LatencyMs = outcome.LatencyMs
	r.TranscriptKey = outcome.TranscriptKey
	r.CompletedAt = &completedAt
}
