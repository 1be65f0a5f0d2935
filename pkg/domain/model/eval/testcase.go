package eval

import (
	"fmt"
	"sort"
	"time"

	"github.com/m-mizutani/shikigami/pkg/domain/types"
)

// TestCase is a regression scenario for an agent
type TestCase struct {
	ID               types.TestCaseID `json:"id" yaml:"id" firestore:"id"`
	AgentID          string           `json:"agent_id" yaml:"agent_id" firestore:"agent_id"`
	Name             string           `json:"name" yaml:"name" firestore:"name"`
	Input            any              `json:"input" yaml:"input" firestore:"input"`
	ExpectedCriteria string           `json:"expected_criteria" yaml:"expected_criteria" firestore:"expected_criteria"`
	MinOverall       int              `json:"min_overall" yaml:"min_overall" firestore:"min_overall"`
	MinRelevance     int              `json:"min_relevance,omitempty" yaml:"min_relevance" firestore:"min_relevance"`
	MinQuality       int              `json:"min_quality,omitempty" yaml:"min_quality" firestore:"min_quality"`
	Priority         int              `json:"priority" yaml:"priority" firestore:"priority"`
	Active           bool             `json:"active" yaml:"active" firestore:"active"`
}

// Check compares scores with the thresholds of the test case. Each unmet
// threshold produces its own reason.
func (tc *TestCase) Check(s Scores) []string {
	var reasons []string
	if tc.MinOverall > 0 && s.Overall < tc.MinOverall {
		reasons = append(reasons, fmt.Sprintf("overall score %d below minimum %d", s.Overall, tc.MinOverall))
	}
	if tc.MinRelevance > 0 && s.Relevance < tc.MinRelevance {
		reasons = append(reasons, fmt.Sprintf("relevance score %d below minimum %d", s.Relevance, tc.MinRelevance))
	}
	if tc.MinQuality > 0 && s.Quality < tc.MinQuality {
		reasons = append(reasons, fmt.Sprintf("quality score %d below minimum %d", s.Quality, tc.MinQuality))
	}
	return reasons
}

// SortByPriority orders test cases by priority desc, name asc
func SortByPriority(cases []*TestCase) {
	sort.SliceStable(cases, func(i, j int) bool {
		if cases[i].Priority != cases[j].Priority {
			return cases[i].Priority > cases[j].Priority
		}
		return cases[i].Name < cases[j].Name
	})
}

// TestRunResult is the outcome of one TestCase against one prompt version
type TestRunResult struct {
	ID             types.TestRunID   `json:"id" firestore:"id"`
	TestCaseID     types.TestCaseID  `json:"test_case_id" firestore:"test_case_id"`
	AgentID        string            `json:"agent_id" firestore:"agent_id"`
	PromptVersion  int               `json:"prompt_version" firestore:"prompt_version"`
	ExecutionID    types.ExecutionID `json:"execution_id,omitempty" firestore:"execution_id"`
	Passed         bool              `json:"passed" firestore:"passed"`
	Scores         Scores            `json:"scores" firestore:"scores"`
	FailureReasons []string          `json:"failure_reasons,omitempty" firestore:"failure_reasons"`
	Output         any               `json:"output,omitempty" firestore:"output"`
	CreatedAt      time.Time         `json:"created_at" firestore:"created_at"`
}

// RegressionReport summarizes a regression run
type RegressionReport struct {
	AgentID       string           `json:"agent_id"`
	PromptVersion int              `json:"prompt_version"`
	Passed        int              `json:"passed"`
	Failed        int              `json:"failed"`
	Results       []*TestRunResult `json:"results"`
}
