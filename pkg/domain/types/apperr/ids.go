package apperr

import "github.com/m-mizutani/goerr/v2"

// Prompt store errors
var (
	ErrPromptNotFound = goerr.New("prompt config not found",
		goerr.T(ErrTagPromptNotFound), goerr.T(ErrTagNotFound)).ID("ERR_PROMPT_NOT_FOUND")

	ErrPromptVersionNotFound = goerr.New("prompt version not found",
		goerr.T(ErrTagNotFound)).ID("ERR_PROMPT_VERSION_NOT_FOUND")

	ErrPromptAlreadyExists = goerr.New("prompt config already exists",
		goerr.T(ErrTagConflict)).ID("ERR_PROMPT_ALREADY_EXISTS")

	ErrPromptVersionConflict = goerr.New("prompt version conflict",
		goerr.T(ErrTagConflict)).ID("ERR_PROMPT_VERSION_CONFLICT")
)

// Agent errors
var (
	ErrAgentNotFound = goerr.New("agent not found",
		goerr.T(ErrTagAgentNotFound), goerr.T(ErrTagNotFound)).ID("ERR_AGENT_NOT_FOUND")

	ErrInvalidAgentID = goerr.New("invalid agent ID format",
		goerr.T(ErrTagValidation)).ID("ERR_INVALID_AGENT_ID")
)

// Execution log errors
var (
	ErrExecutionNotFound = goerr.New("execution not found",
		goerr.T(ErrTagNotFound)).ID("ERR_EXECUTION_NOT_FOUND")

	ErrExecutionAlreadyFinalized = goerr.New("execution already finalized",
		goerr.T(ErrTagConflict)).ID("ERR_EXECUTION_ALREADY_FINALIZED")
)

// Evaluation errors
var (
	ErrTestCaseNotFound = goerr.New("test case not found",
		goerr.T(ErrTagNotFound)).ID("ERR_TEST_CASE_NOT_FOUND")

	ErrJudgeNotConfigured = goerr.New("judge model not configured",
		goerr.T(ErrTagInternal)).ID("ERR_JUDGE_NOT_CONFIGURED")
)

// Memory errors
var (
	ErrMemoryNotFound = goerr.New("memory not found",
		goerr.T(ErrTagNotFound)).ID("ERR_MEMORY_NOT_FOUND")
)

// LLM errors
var (
	ErrLLMNotConfigured = goerr.New("LLM not configured",
		goerr.T(ErrTagInternal)).ID("ERR_LLM_NOT_CONFIGURED")

	ErrLLMProviderNotSupported = goerr.New("LLM provider not supported",
		goerr.T(ErrTagValidation)).ID("ERR_LLM_PROVIDER_NOT_SUPPORTED")

	ErrLLMAPIFailed = goerr.New("LLM API call failed",
		goerr.T(ErrTagLLMError)).ID("ERR_LLM_API_FAILED")
)
