package llm

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/shikigami/pkg/domain/model/llm"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
)

// gollemBackend serves Claude and Gemini through gollem sessions. Sampling
// options are bound to the client when the factory builds it.
type gollemBackend struct {
	client   gollem.LLMClient
	provider llm.ProviderType
	model    string
}

func newGollemBackend(client gollem.LLMClient, provider llm.ProviderType, model string) *gollemBackend {
	return &gollemBackend{client: client, provider: provider, model: model}
}

func (b *gollemBackend) generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if len(req.Images) > 0 {
		return nil, goerr.New("image input is not supported for this provider",
			goerr.T(apperr.ErrTagValidation),
			goerr.TV(apperr.LLMProviderKey, b.provider.String()))
	}

	var opts []gollem.SessionOption
	if req.SystemPrompt != "" {
		opts = append(opts, gollem.WithSessionSystemPrompt(req.SystemPrompt))
	}

	session, err := b.client.NewSession(ctx, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create LLM session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(req.UserPrompt))
	if err != nil {
		return nil, goerr.Wrap(apperr.ErrLLMAPIFailed, "failed to generate content",
			goerr.TV(apperr.LLMModelKey, b.model),
			goerr.V("error", err.Error()))
	}

	return &llm.Response{
		Content: strings.Join(resp.Texts, ""),
		Usage:   llm.NewUsage(resp.InputToken, resp.OutputToken),
	}, nil
}
