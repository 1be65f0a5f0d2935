package apperr

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/types"
)

// Domain entity keys
var (
	AgentIDKey     = goerr.NewTypedKey[string]("agent_id")
	ExecutionIDKey = goerr.NewTypedKey[types.ExecutionID]("execution_id")
	MemoryIDKey    = goerr.NewTypedKey[types.MemoryID]("memory_id")
	TestCaseIDKey  = goerr.NewTypedKey[types.TestCaseID]("test_case_id")
	VersionKey     = goerr.NewTypedKey[int]("version")
	MemoryKeyKey   = goerr.NewTypedKey[string]("memory_key")
)

// Processing keys
var (
	OperationKey = goerr.NewTypedKey[string]("operation")
	FieldKey     = goerr.NewTypedKey[string]("field")
)

// LLM keys
var (
	LLMProviderKey = goerr.NewTypedKey[string]("llm_provider")
	LLMModelKey    = goerr.NewTypedKey[string]("llm_model")
)

// Store keys
var (
	CollectionKey = goerr.NewTypedKey[string]("collection")
	DocumentIDKey = goerr.NewTypedKey[string]("document_id")
	TableKey      = goerr.NewTypedKey[string]("table")
)
