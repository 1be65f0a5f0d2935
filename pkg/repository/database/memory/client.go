package memory

import (
	"sync"

	"github.com/m-mizutani/shikigami/pkg/domain/interfaces"
	"github.com/m-mizutani/shikigami/pkg/domain/model/agent"
	"github.com/m-mizutani/shikigami/pkg/domain/model/eval"
	"github.com/m-mizutani/shikigami/pkg/domain/model/memory"
	"github.com/m-mizutani/shikigami/pkg/domain/types"
)

// Client is an in-memory implementation of interfaces.Repository
type Client struct {
	mu sync.RWMutex

	prompts        map[string]*agent.PromptConfig
	promptVersions map[string]map[int]*agent.PromptVersion // agentID -> version -> snapshot

	executions map[types.ExecutionID]*agent.ExecutionRecord
	feedback   map[types.FeedbackID]*eval.Feedback
	testCases  map[types.TestCaseID]*eval.TestCase
	testRuns   map[types.TestRunID]*eval.TestRunResult

	memories map[types.MemoryID]*memory.Record
}

var _ interfaces.Repository = (*Client)(nil)

// New creates a new in-memory client
func New() *Client {
	return &Client{
		prompts:        make(map[string]*agent.PromptConfig),
		promptVersions: make(map[string]map[int]*agent.PromptVersion),
		executions:     make(map[types.ExecutionID]*agent.ExecutionRecord),
		feedback:       make(map[types.FeedbackID]*eval.Feedback),
		testCases:      make(map[types.TestCaseID]*eval.TestCase),
		testRuns:       make(map[types.TestRunID]*eval.TestRunResult),
		memories:       make(map[types.MemoryID]*memory.Record),
	}
}

// Close is a no-op kept for symmetry with durable clients
func (c *Client) Close() error {
	return nil
}
