package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

const ProviderGemini = "gemini"

// GeminiGenerator calls the Gemini API through google.golang.org/genai
type GeminiGenerator struct {
	apiKey string
	model  string

	mu     sync.Mutex
	client *genai.Client
}

// NewGeminiGenerator creates a generator; the SDK client is built lazily
func NewGeminiGenerator(apiKey, model string) *GeminiGenerator {
	return &GeminiGenerator{apiKey: apiKey, model: model}
}

func (g *GeminiGenerator) getClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &Error{Kind: KindServiceError, Provider: ProviderGemini, Err: fmt.Errorf("create client: %w", err)}
	}
	g.client = client
	return client, nil
}

// Generate implements Generator
func (g *GeminiGenerator) Generate(ctx context.Context, instruction, prompt string) (string, error) {
	client, err := g.getClient(ctx)
	if err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{}
	if instruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: instruction}},
		}
	}
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: prompt}},
	}}

	result, err := client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", classifyGeminiError(err)
	}
	if result == nil {
		return "", &Error{Kind: KindServiceError, Provider: ProviderGemini, Err: errors.New("empty response")}
	}
	return result.Text(), nil
}

func classifyGeminiError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return NewStatusError(ProviderGemini, apiErr.Code, err)
	}
	return NewStatusError(ProviderGemini, statusFromMessage(err.Error()), err)
}
