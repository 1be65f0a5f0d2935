package apperr

import "github.com/m-mizutani/goerr/v2"

// Not found
var (
	ErrTagNotFound       = goerr.NewTag("not_found")
	ErrTagAgentNotFound  = goerr.NewTag("agent_not_found")
	ErrTagPromptNotFound = goerr.NewTag("prompt_not_found")
)

// Caller errors
var (
	ErrTagValidation   = goerr.NewTag("validation")
	ErrTagInvalidInput = goerr.NewTag("invalid_input")
	ErrTagConflict     = goerr.NewTag("conflict")
)

// Failures crossing the agent runtime boundary as a failed result
var (
	ErrTagModelInvocation = goerr.NewTag("model_invocation")
)

// Contained failures. These are logged and never surface as a failed result.
var (
	ErrTagPersistence      = goerr.NewTag("persistence")
	ErrTagJudgeUnavailable = goerr.NewTag("judge_unavailable")
)

// External systems
var (
	ErrTagLLMError  = goerr.NewTag("llm_error")
	ErrTagFirestore = goerr.NewTag("firestore")
	ErrTagSQLite    = goerr.NewTag("sqlite")
	ErrTagStorage   = goerr.NewTag("storage")
)

// System errors
var (
	ErrTagInternal = goerr.NewTag("internal")
)
