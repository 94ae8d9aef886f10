// Package gemini adapts the Google Gemini API to the copilot providers.
package gemini

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/flarexio/copilot"
	"github.com/flarexio/copilot/provider"
)

const (
	DefaultEmbeddingModel = "text-embedding-004"
	DefaultChatModel      = "gemini-2.5-flash"

	Temperature = 0.2
)

var (
	_ copilot.EmbeddingProvider = (*Client)(nil)
	_ copilot.AnswerProvider    = (*Client)(nil)
)

type Client struct {
	client *genai.Client
	guard  *provider.Guard
	model  string
}

func NewEmbeddingClient(ctx context.Context, cfg copilot.ProviderConfig) (*Client, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultEmbeddingModel
	}

	return newClient(ctx, "gemini-embedding", cfg)
}

func NewChatClient(ctx context.Context, cfg copilot.ProviderConfig) (*Client, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultChatModel
	}

	return newClient(ctx, "gemini-chat", cfg)
}

func newClient(ctx context.Context, name string, cfg copilot.ProviderConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}

	opts := []option.ClientOption{
		option.WithAPIKey(cfg.APIKey),
	}

	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return &Client{
		client: client,
		guard:  provider.NewGuard(name, cfg),
		model:  cfg.Model,
	}, nil
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	return provider.Do(ctx, c.guard, func(ctx context.Context) ([]float32, error) {
		em := c.client.EmbeddingModel(c.model)

		resp, err := em.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, err
		}

		if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
			return nil, errors.New("gemini: no embedding returned")
		}

		return resp.Embedding.Values, nil
	})
}

func (c *Client) Complete(ctx context.Context, prompt string) (copilot.Completion, error) {
	return provider.Do(ctx, c.guard, func(ctx context.Context) (copilot.Completion, error) {
		model := c.client.GenerativeModel(c.model)
		model.SetTemperature(Temperature)
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(copilot.SystemPrompt)},
		}

		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return copilot.Completion{}, err
		}

		text := responseText(resp)
		if text == "" {
			return copilot.Completion{}, errors.New("gemini: empty response")
		}

		completion := copilot.Completion{
			Text:  text,
			Model: c.model,
		}

		if resp.UsageMetadata != nil {
			completion.TokensUsed = int(resp.UsageMetadata.TotalTokenCount)
		}

		return completion, nil
	})
}

func responseText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}

		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}

		// The first candidate with content is the answer.
		if sb.Len() > 0 {
			break
		}
	}

	return sb.String()
}
