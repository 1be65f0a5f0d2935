package types

import "context"

// ExecutionID identifies a single agent invocation
type ExecutionID string

func NewExecutionID(ctx context.Context) ExecutionID {
	return ExecutionID(newUUID(ctx))
}

func (id ExecutionID) String() string {
	return string(id)
}

// IsValid checks if the ExecutionID is valid
func (id ExecutionID) IsValid() bool {
	return isValidUUID(string(id))
}

// FeedbackID identifies a feedback row
type FeedbackID string

func NewFeedbackID(ctx context.Context) FeedbackID {
	return FeedbackID(newUUID(ctx))
}

func (id FeedbackID) String() string {
	return string(id)
}

// MemoryID identifies a memory record
type MemoryID string

func NewMemoryID(ctx context.Context) MemoryID {
	return MemoryID(newUUID(ctx))
}

func (id MemoryID) String() string {
	return string(id)
}

// IsValid checks if the MemoryID is valid
func (id MemoryID) IsValid() bool {
	return isValidUUID(string(id))
}

// TestCaseID identifies a regression test case
type TestCaseID string

func NewTestCaseID(ctx context.Context) TestCaseID {
	return TestCaseID(newUUID(ctx))
}

func (id TestCaseID) String() string {
	return string(id)
}

// IsValid checks if the TestCaseID is valid
func (id TestCaseID) IsValid() bool {
	return isValidUUID(string(id))
}

// TestRunID identifies a persisted regression test result
type TestRunID string

func NewTestRunID(ctx context.Context) TestRunID {
	return TestRunID(newUUID(ctx))
}

func (id TestRunID) String() string {
	return string(id)
}
