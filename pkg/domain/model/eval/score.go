package eval

import "math"

const (
	MinScore = 1
	MaxScore = 5
)

// ClampScore rounds a raw judge score to the nearest integer and clamps it
// into [MinScore, MaxScore]. NaN maps to MinScore.
func ClampScore(v float64) int {
	if math.IsNaN(v) {
		return MinScore
	}
	r := math.Round(v)
	if r < MinScore {
		return MinScore
	}
	if r > MaxScore {
		return MaxScore
	}
	return int(r)
}

// Scores holds rubric scores. A zero value is "absent".
type Scores struct {
	Overall    int `json:"overall" firestore:"overall"`
	Relevance  int `json:"relevance,omitempty" firestore:"relevance"`
	Quality    int `json:"quality,omitempty" firestore:"quality"`
	Creativity int `json:"creativity,omitempty" firestore:"creativity"`
}
