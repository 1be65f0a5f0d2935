package eval

import (
	"time"

	"github.com/m-mizutani/shikigami/pkg/domain/types"
)

// Source tells who produced a Feedback
type Source string

const (
	SourceUser      Source = "user"
	SourceLLMJudge  Source = "llm_judge"
	SourceAutomated Source = "automated"
)

// Feedback is a scored assessment of one execution
type Feedback struct {
	ID           types.FeedbackID  `json:"id" firestore:"id"`
	ExecutionID  types.ExecutionID `json:"execution_id" firestore:"execution_id"`
	AgentID      string            `json:"agent_id" firestore:"agent_id"`
	Source       Source            `json:"source" firestore:"source"`
	Scores       Scores            `json:"scores" firestore:"scores"`
	FeedbackText string            `json:"feedback_text,omitempty" firestore:"feedback_text"`
	Strengths    []string          `json:"strengths,omitempty" firestore:"strengths"`
	Weaknesses   []string          `json:"weaknesses,omitempty" firestore:"weaknesses"`
	Suggestions  []string          `json:"suggestions,omitempty" firestore:"suggestions"`
	JudgeModel   string            `json:"judge_model,omitempty" firestore:"judge_model"`
	CreatedAt    time.Time         `json:"created_at" firestore:"created_at"`
}

// UserFeedback is a human rating submitted for an execution
type UserFeedback struct {
	OverallScore int
	FeedbackText string
}

// Evaluation is the parsed verdict of the judge model
type Evaluation struct {
	Scores      Scores   `json:"scores"`
	Feedback    string   `json:"feedback"`
	Strengths   []string `json:"strengths,omitempty"`
	Weaknesses  []string `json:"weaknesses,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	JudgeModel  string   `json:"judge_model"`
}

// ToFeedback converts the evaluation into a judge Feedback row
func (e *Evaluation) ToFeedback(id types.FeedbackID, executionID types.ExecutionID, agentID string, now time.Time) *Feedback {
	return &Feedback{
		ID:           id,
		ExecutionID:  executionID,
		AgentID:      agentID,
		Source:       SourceLLMJudge,
		Scores:       e.Scores,
		FeedbackText: e.Feedback,
		Strengths:    e.Strengths,
		Weaknesses:   e.Weaknesses,
		Suggestions:  e.Suggestions,
		JudgeModel:   e.JudgeModel,
		CreatedAt:    now,
	}
}
