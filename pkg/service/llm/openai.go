package llm

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/model/llm"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
	"github.com/sashabaranov/go-openai"
)

// openaiBackend serves OpenAI chat completions, including image input and
// per-request sampling options
type openaiBackend struct {
	client *openai.Client
	model  string
}

func newOpenAIBackend(cred Credential, model string) *openaiBackend {
	cfg := openai.DefaultConfig(cred.APIKey)
	if cred.BaseURL != "" {
		cfg.BaseURL = cred.BaseURL
	}
	return &openaiBackend{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (b *openaiBackend) generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	var messages []openai.ChatCompletionMessage
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}

	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if len(req.Images) == 0 {
		user.Content = req.UserPrompt
	} else {
		parts := []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: req.UserPrompt},
		}
		for _, img := range req.Images {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    dataURL(img),
					Detail: openai.ImageURLDetailAuto,
				},
			})
		}
		user.MultiContent = parts
	}
	messages = append(messages, user)

	chatReq := openai.ChatCompletionRequest{
		Model:    b.model,
		Messages: messages,
	}
	if v := req.Sampling.Temperature; v != nil {
		chatReq.Temperature = float32(*v)
	}
	if v := req.Sampling.TopP; v != nil {
		chatReq.TopP = float32(*v)
	}
	if v := req.Sampling.MaxTokens; v != nil {
		chatReq.MaxTokens = *v
	}
	// JSON mode is rejected by the API unless a message mentions JSON
	if req.ResponseFormat == llm.ResponseFormatJSON && mentionsJSON(req) {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := b.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, goerr.Wrap(apperr.ErrLLMAPIFailed, "OpenAI chat completion failed",
			goerr.V("error", err.Error()),
			goerr.TV(apperr.LLMModelKey, b.model))
	}
	if len(resp.Choices) == 0 {
		return nil, goerr.Wrap(apperr.ErrLLMAPIFailed, "OpenAI returned no choices",
			goerr.TV(apperr.LLMModelKey, b.model))
	}

	return &llm.Response{
		Content: resp.Choices[0].Message.Content,
		Usage: llm.Usage{
			Input:  resp.Usage.PromptTokens,
			Output: resp.Usage.CompletionTokens,
			Total:  resp.Usage.TotalTokens,
		},
	}, nil
}

func dataURL(img llm.Image) string {
	return "data:" + img.MimeType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

func mentionsJSON(req *llm.Request) bool {
	return strings.Contains(strings.ToLower(req.SystemPrompt), "json") ||
		strings.Contains(strings.ToLower(req.UserPrompt), "json")
}
