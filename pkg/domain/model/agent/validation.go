package agent

import (
	"regexp"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
)

const maxSystemPromptLength = 20000

var (
	// AgentID format: alphanumeric characters + '_', '-', '.' allowed except at the beginning and end
	// Examples: "script_writer", "keyword-generator", "planner.v2"
	agentIDRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9._-]*[a-zA-Z0-9])?$`)
)

// ValidateAgentID validates the format of an agent ID
func ValidateAgentID(agentID string) error {
	if agentID == "" {
		return goerr.Wrap(apperr.ErrInvalidAgentID, "agent ID cannot be empty")
	}

	if len(agentID) > 64 {
		return goerr.Wrap(apperr.ErrInvalidAgentID, "agent ID cannot be longer than 64 characters",
			goerr.TV(apperr.AgentIDKey, agentID))
	}

	if !agentIDRegex.MatchString(agentID) {
		return goerr.Wrap(apperr.ErrInvalidAgentID, "agent ID format is invalid",
			goerr.V("format", "alphanumeric characters with '_', '-', '.' allowed except at beginning and end"),
			goerr.TV(apperr.AgentIDKey, agentID))
	}

	return nil
}
