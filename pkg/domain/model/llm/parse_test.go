package llm_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/shikigami/pkg/domain/model/llm"
)

func TestParseContent(t *testing.T) {
	testCases := []struct {
		name   string
		text   string
		method llm.ParseMethod
		check  func(t *testing.T, v any)
	}{
		{
			name:   "strict JSON object",
			text:   `{"title": "Teaser", "score": 4}`,
			method: llm.ParseDirect,
			check: func(t *testing.T, v any) {
				obj := v.(map[string]any)
				gt.Equal(t, obj["title"].(string), "Teaser")
			},
		},
		{
			name:   "strict JSON array with whitespace",
			text:   "\n  [\"a\", \"b\"]  \n",
			method: llm.ParseDirect,
			check: func(t *testing.T, v any) {
				gt.A(t, v.([]any)).Length(2)
			},
		},
		{
			name:   "fenced json block",
			text:   "Here you go:\n```json\n{\"keywords\": [\"summer\"]}\n```\nEnjoy!",
			method: llm.ParseFenced,
			check: func(t *testing.T, v any) {
				obj := v.(map[string]any)
				gt.A(t, obj["keywords"].([]any)).Length(1)
			},
		},
		{
			name:   "fenced block without language",
			text:   "```\n{\"ok\": true}\n```",
			method: llm.ParseFenced,
			check: func(t *testing.T, v any) {
				gt.True(t, v.(map[string]any)["ok"].(bool))
			},
		},
		{
			name:   "JSON embedded in prose",
			text:   `Sure! The result is {"overall": 4, "nested": {"a": 1}} as requested.`,
			method: llm.ParseBraces,
			check: func(t *testing.T, v any) {
				obj := v.(map[string]any)
				gt.Equal(t, obj["overall"].(float64), 4.0)
			},
		},
		{
			name:   "array embedded in prose",
			text:   `Keywords: ["a", "b", "c"] - done`,
			method: llm.ParseBraces,
			check: func(t *testing.T, v any) {
				gt.A(t, v.([]any)).Length(3)
			},
		},
		{
			name:   "plain text",
			text:   "  I cannot help with that.  ",
			method: llm.ParseRaw,
			check: func(t *testing.T, v any) {
				gt.Equal(t, v.(string), "I cannot help with that.")
			},
		},
		{
			name:   "broken JSON falls back to raw",
			text:   `{"title": "unterminated`,
			method: llm.ParseRaw,
			check: func(t *testing.T, v any) {
				gt.Equal(t, v.(string), `{"title": "unterminated`)
			},
		},
		{
			name:   "bare scalar is not structured",
			text:   `42`,
			method: llm.ParseRaw,
			check: func(t *testing.T, v any) {
				gt.Equal(t, v.(string), "42")
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v, method := llm.ParseContent(tc.text)
			gt.Equal(t, method, tc.method)
			tc.check(t, v)
		})
	}
}

func TestUsage(t *testing.T) {
	u := llm.NewUsage(10, 5)
	gt.Equal(t, u.Total, 15)

	sum := u.Add(llm.NewUsage(1, 2))
	gt.Equal(t, sum, llm.Usage{Input: 11, Output: 7, Total: 18})
}

func TestProvidersConfig(t *testing.T) {
	cfg := &llm.ProvidersConfig{
		Providers: map[string]llm.Provider{
			"openai": {DisplayName: "OpenAI", Models: []llm.Model{{ID: "gpt-4o", Vision: true}}},
		},
	}

	gt.True(t, cfg.ValidateProviderModel("openai", "gpt-4o"))
	gt.False(t, cfg.ValidateProviderModel("openai", "gpt-3"))
	gt.False(t, cfg.ValidateProviderModel("", "gpt-4o"))

	m, ok := cfg.GetModel("openai", "gpt-4o")
	gt.True(t, ok)
	gt.True(t, m.Vision)

	p, ok := cfg.GetProvider("openai")
	gt.True(t, ok)
	gt.Equal(t, p.ID, "openai")

	gt.Equal(t, llm.ProviderFromString("Claude"), llm.ProviderClaude)
	gt.False(t, llm.ProviderType("mistral").IsValid())
}
