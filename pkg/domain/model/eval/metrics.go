package eval

import "time"

// Metrics aggregates executions and feedback of an agent for a time window
type Metrics struct {
	AgentID            string    `json:"agent_id"`
	Start              time.Time `json:"start"`
	End                time.Time `json:"end"`
	TotalExecutions    int       `json:"total_executions"`
	SuccessCount       int       `json:"success_count"`
	SuccessRate        float64   `json:"success_rate"`
	AvgLatencyMs       float64   `json:"avg_latency_ms"`
	AvgJudgeScore      float64   `json:"avg_judge_score"`
	JudgeFeedbackCount int       `json:"judge_feedback_count"`
	AvgUserScore       float64   `json:"avg_user_score"`
	UserFeedbackCount  int       `json:"user_feedback_count"`
	TotalTokens        int       `json:"total_tokens"`
}
