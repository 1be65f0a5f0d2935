package eval_test

import (
	"math"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/shikigami/pkg/domain/model/eval"
)

func TestClampScore(t *testing.T) {
	testCases := []struct {
		in   float64
		want int
	}{
		{in: 0, want: 1},
		{in: -3, want: 1},
		{in: 1, want: 1},
		{in: 2.4, want: 2},
		{in: 2.5, want: 3},
		{in: 4.6, want: 5},
		{in: 5, want: 5},
		{in: 7, want: 5},
		{in: 100.2, want: 5},
		{in: math.NaN(), want: 1},
		{in: math.Inf(1), want: 5},
	}

	for _, tc := range testCases {
		got := eval.ClampScore(tc.in)
		gt.Equal(t, got, tc.want)
		gt.True(t, got >= eval.MinScore && got <= eval.MaxScore)
	}
}

func TestTestCaseCheck(t *testing.T) {
	tc := &eval.TestCase{MinOverall: 4, MinRelevance: 3, MinQuality: 4}

	gt.A(t, tc.Check(eval.Scores{Overall: 5, Relevance: 3, Quality: 4})).Length(0)

	reasons := tc.Check(eval.Scores{Overall: 3, Relevance: 2, Quality: 4})
	gt.A(t, reasons).Length(2)
	gt.S(t, reasons[0]).Contains("overall score 3 below minimum 4")
	gt.S(t, reasons[1]).Contains("relevance score 2 below minimum 3")

	// zero threshold means not checked
	gt.A(t, (&eval.TestCase{}).Check(eval.Scores{Overall: 1})).Length(0)
}

func TestSortByPriority(t *testing.T) {
	cases := []*eval.TestCase{
		{Name: "b", Priority: 1},
		{Name: "a", Priority: 5},
		{Name: "c", Priority: 5},
		{Name: "d", Priority: 0},
	}
	eval.SortByPriority(cases)

	var names []string
	for _, c := range cases {
		names = append(names, c.Name)
	}
	gt.Equal(t, names, []string{"a", "c", "b", "d"})
}
