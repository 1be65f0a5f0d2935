package interfaces

import (
	"context"
	"time"

	"github.com/m-mizutani/shikigami/pkg/domain/model/agent"
	"github.com/m-mizutani/shikigami/pkg/domain/model/eval"
	"github.com/m-mizutani/shikigami/pkg/domain/model/memory"
	"github.com/m-mizutani/shikigami/pkg/domain/types"
)

// PromptRepository manages live prompt configs and their append-only history
type PromptRepository interface {
	// GetPromptConfig returns apperr.ErrPromptNotFound when the agent has no live config
	GetPromptConfig(ctx context.Context, agentID string) (*agent.PromptConfig, error)
	// CreatePromptConfig stores version 1. apperr.ErrPromptAlreadyExists if a live config exists.
	CreatePromptConfig(ctx context.Context, cfg *agent.PromptConfig) error
	// ApplyPromptChange atomically appends snapshot to history and replaces the
	// live config with next. It fails with apperr.ErrPromptVersionConflict when
	// the live version is no longer snapshot.Version or the history already has
	// that version. Nothing is written on failure.
	ApplyPromptChange(ctx context.Context, snapshot *agent.PromptVersion, next *agent.PromptConfig) error
	// GetPromptVersion returns apperr.ErrPromptVersionNotFound when absent from history
	GetPromptVersion(ctx context.Context, agentID string, version int) (*agent.PromptVersion, error)
	// ListPromptVersions returns history newest first. limit <= 0 means all.
	ListPromptVersions(ctx context.Context, agentID string, limit int) ([]*agent.PromptVersion, error)
	ListPromptConfigs(ctx context.Context) ([]*agent.PromptConfig, error)
}

// ExecutionRepository logs agent invocations
type ExecutionRepository interface {
	CreateExecution(ctx context.Context, rec *agent.ExecutionRecord) error
	// FinalizeExecution fails with apperr.ErrExecutionAlreadyFinalized unless the record is running
	FinalizeExecution(ctx context.Context, id types.ExecutionID, outcome agent.ExecutionOutcome) error
	GetExecution(ctx context.Context, id types.ExecutionID) (*agent.ExecutionRecord, error)
	// ListExecutions returns records of agentID started in [start, end)
	ListExecutions(ctx context.Context, agentID string, start, end time.Time) ([]*agent.ExecutionRecord, error)
}

// FeedbackRepository stores judge and user feedback
type FeedbackRepository interface {
	PutFeedback(ctx context.Context, fb *eval.Feedback) error
	// ListFeedback returns feedback of agentID created in [start, end)
	ListFeedback(ctx context.Context, agentID string, start, end time.Time) ([]*eval.Feedback, error)
	ListFeedbackByExecution(ctx context.Context, executionID types.ExecutionID) ([]*eval.Feedback, error)
}

// TestCaseRepository stores regression scenarios
type TestCaseRepository interface {
	PutTestCase(ctx context.Context, tc *eval.TestCase) error
	GetTestCase(ctx context.Context, id types.TestCaseID) (*eval.TestCase, error)
	// ListActiveTestCases returns active cases of agentID, highest priority first
	ListActiveTestCases(ctx context.Context, agentID string) ([]*eval.TestCase, error)
}

// TestRunRepository stores regression outcomes
type TestRunRepository interface {
	PutTestRun(ctx context.Context, result *eval.TestRunResult) error
	ListTestRuns(ctx context.Context, agentID string, promptVersion int) ([]*eval.TestRunResult, error)
}

// MemoryRepository stores agent memories unique by (agent, scope, key)
type MemoryRepository interface {
	// UpsertMemory inserts rec or, when (agent, scope, key) exists, replaces
	// the existing record through memory.Record.Replace. Returns what is stored.
	UpsertMemory(ctx context.Context, rec *memory.Record) (*memory.Record, error)
	// QueryMemories returns non-expired matches ordered by memory.SortForRecall
	QueryMemories(ctx context.Context, q *memory.Query, now time.Time) ([]*memory.Record, error)
	// TouchMemories records one access on each record
	TouchMemories(ctx context.Context, ids []types.MemoryID, now time.Time) error
	// DeleteMemory removes one record. Absent records are not an error.
	DeleteMemory(ctx context.Context, agentID string, scope memory.Scope, key string) error
	// DeleteMemories removes every record of agentID, or only those in scope when given
	DeleteMemories(ctx context.Context, agentID string, scope *memory.Scope) (int, error)
	// ConsolidateMemories atomically trims records of (agentID, memoryType)
	// down to maxRecords in memory.SortForEviction order
	ConsolidateMemories(ctx context.Context, agentID, memoryType string, maxRecords int) (int, error)
	// DeleteExpiredMemories purges every record expired at now
	DeleteExpiredMemories(ctx context.Context, now time.Time) (int, error)
}

// EvaluationRepository is the slice of the store used by the evaluation harness
type EvaluationRepository interface {
	ExecutionRepository
	FeedbackRepository
	TestCaseRepository
	TestRunRepository
}

// Repository is the durable store of the whole subsystem
type Repository interface {
	PromptRepository
	ExecutionRepository
	FeedbackRepository
	TestCaseRepository
	TestRunRepository
	MemoryRepository
}
