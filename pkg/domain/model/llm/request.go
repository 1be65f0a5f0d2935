package llm

// ResponseFormat is the output format requested from the model
type ResponseFormat string

const (
	ResponseFormatText ResponseFormat = "text"
	ResponseFormatJSON ResponseFormat = "json"
)

// SamplingOptions are optional generation parameters. Nil means provider default.
type SamplingOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

// Image is an inline image attachment
type Image struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

// Request is a single model invocation
type Request struct {
	Provider       ProviderType
	Model          string
	SystemPrompt   string
	UserPrompt     string
	Images         []Image
	ResponseFormat ResponseFormat
	Sampling       SamplingOptions
}

// Usage is token accounting of one invocation
type Usage struct {
	Input  int `json:"input" firestore:"input"`
	Output int `json:"output" firestore:"output"`
	Total  int `json:"total" firestore:"total"`
}

// Add returns the sum of two usages
func (u Usage) Add(other Usage) Usage {
	return Usage{
		Input:  u.Input + other.Input,
		Output: u.Output + other.Output,
		Total:  u.Total + other.Total,
	}
}

// NewUsage builds Usage from input and output counts
func NewUsage(input, output int) Usage {
	return Usage{Input: input, Output: output, Total: input + output}
}

// Response is the raw model output
type Response struct {
	Content string
	Usage   Usage
}
