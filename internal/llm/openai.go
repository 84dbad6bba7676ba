package llm

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

const ProviderOpenAI = "openai"

// OpenAIGenerator calls the OpenAI Responses API
type OpenAIGenerator struct {
	client openai.Client
	model  string
}

// NewOpenAIGenerator creates a generator for model
func NewOpenAIGenerator(apiKey, model string, opts ...option.RequestOption) *OpenAIGenerator {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, opts...)
	return &OpenAIGenerator{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// Generate implements Generator
func (o *OpenAIGenerator) Generate(ctx context.Context, instruction, prompt string) (string, error) {
	params := responses.ResponseNewParams{
		Model: o.model,
		Input: responses.ResponseNewParamsInputUnion{OfString: openai.String(prompt)},
	}
	if instruction != "" {
		params.Instructions = openai.String(instruction)
	}

	resp, err := o.client.Responses.New(ctx, params)
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	if resp == nil {
		return "", &Error{Kind: KindServiceError, Provider: ProviderOpenAI, Err: errors.New("empty response")}
	}
	return resp.OutputText(), nil
}

func classifyOpenAIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return NewStatusError(ProviderOpenAI, apiErr.StatusCode, err)
	}
	return NewStatusError(ProviderOpenAI, statusFromMessage(err.Error()), err)
}
