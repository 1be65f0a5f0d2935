package usecase

import (
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
)

func TestRenderPrompt(t *testing.T) {
	tmpls := map[string]string{
		"full": `Topic: {{.topic}}
Audience: {{default "general" .audience}}
{{- if .tags}}
Tags: {{join .tags ", "}}{{end}}
{{- range .scenes}}
- {{.name | upper}} ({{.seconds}}s){{end}}
Raw: {{json .input}}
{{.missing}}`,
		"scalar": `Say {{.input}}`,
		"plain":  `Topic: {{.topic}}{{with $.note}} ({{.}}){{end}}`,
		"broken": `{{.topic`,
		"fails":  `{{index .topic 5}}`,
	}

	testCases := []struct {
		name     string
		template string
		input    any
		want     string
		err      bool
		tag      bool
	}{
		{
			name:     "object input",
			template: "full",
			input: map[string]any{
				"topic":  "cats",
				"tags":   []any{"cute", "funny"},
				"scenes": []any{map[string]any{"name": "intro", "seconds": 3.0}},
			},
			want: "Topic: cats\nAudience: general\nTags: cute, funny\n- INTRO (3s)\n" +
				`Raw: {"scenes":[{"name":"intro","seconds":3}],"tags":["cute","funny"],"topic":"cats"}`,
		},
		{
			name:     "default not applied when set",
			template: "scalar",
			input:    "hello",
			want:     "Say hello",
		},
		{
			name:     "literal placeholder text in input is kept",
			template: "plain",
			input:    map[string]any{"topic": "the <no value> bug"},
			want:     "Topic: the <no value> bug",
		},
		{
			name:     "missing key referenced through root variable",
			template: "plain",
			input:    map[string]any{},
			want:     "Topic:",
		},
		{
			name:     "unknown template",
			template: "nope",
			input:    map[string]any{},
			err:      true,
			tag:      true,
		},
		{
			name:     "parse error",
			template: "broken",
			input:    map[string]any{},
			err:      true,
		},
		{
			name:     "execution error",
			template: "fails",
			input:    map[string]any{"topic": 1.0},
			err:      true,
			tag:      true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := renderPrompt(tmpls, tc.template, templateData(tc.input))
			if tc.err {
				gt.Error(t, err)
				gt.Equal(t, goerr.HasTag(err, apperr.ErrTagValidation), tc.tag)
				return
			}
			gt.NoError(t, err)
			gt.Equal(t, got, tc.want)
		})
	}
}

func TestTemplateHelpers(t *testing.T) {
	gt.Equal(t, defaultValue("x"), any("x"))
	gt.Equal(t, defaultValue("x", ""), any("x"))
	gt.Equal(t, defaultValue("x", []any{}), any("x"))
	gt.Equal(t, defaultValue("x", "y"), any("y"))
	gt.Equal(t, defaultValue(1, 0.0), any(0.0))

	gt.Equal(t, joinList([]string{"a", "b"}, "|"), "a|b")
	gt.Equal(t, joinList([]any{1, "b"}, ", "), "1, b")
	gt.Equal(t, joinList(nil, ","), "")
	gt.Equal(t, joinList("solo", ","), "solo")
}

func TestParseVerdict(t *testing.T) {
	v, err := parseVerdict(`{"overall": 0, "relevance": 6, "quality": 3.6, "strengths": ["a", "", 3]}`)
	gt.NoError(t, err)
	gt.Equal(t, v.Scores.Overall, 1)
	gt.Equal(t, v.Scores.Relevance, 5)
	gt.Equal(t, v.Scores.Quality, 4)
	gt.Equal(t, v.Scores.Creativity, 1)
	gt.Equal(t, v.Strengths, []string{"a"})

	_, err = parseVerdict("excellent work")
	gt.Error(t, err)
}
