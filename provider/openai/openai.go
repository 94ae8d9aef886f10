// Package openai talks to OpenAI compatible embedding and chat completion
// endpoints.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/flarexio/copilot"
	"github.com/flarexio/copilot/provider"
)

const (
	DefaultBaseURL        = "https://api.openai.com/v1"
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultChatModel      = "gpt-4o-mini"

	Temperature = 0.2
)

var (
	_ copilot.EmbeddingProvider = (*Client)(nil)
	_ copilot.AnswerProvider    = (*Client)(nil)
)

type Client struct {
	client     *http.Client
	guard      *provider.Guard
	baseURL    string
	apiKey     string
	model      string
	dimensions int
}

// NewEmbeddingClient builds a client for the embeddings endpoint.
func NewEmbeddingClient(cfg copilot.ProviderConfig) (*Client, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultEmbeddingModel
	}

	return newClient("openai-embedding", cfg)
}

// NewChatClient builds a client for the chat completions endpoint.
func NewChatClient(cfg copilot.ProviderConfig) (*Client, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultChatModel
	}

	return newClient("openai-chat", cfg)
}

func newClient(name string, cfg copilot.ProviderConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	return &Client{
		client: &http.Client{
			Timeout: cfg.Timeout.Duration(),
		},
		guard:      provider.NewGuard(name, cfg),
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

func (c *Client) Model() string {
	return c.model
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *apiError `json:"error,omitempty"`
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	return provider.Do(ctx, c.guard, func(ctx context.Context) ([]float32, error) {
		req := embeddingRequest{
			Model:      c.model,
			Input:      []string{text},
			Dimensions: c.dimensions,
		}

		var resp embeddingResponse
		if err := c.post(ctx, "/embeddings", req, &resp); err != nil {
			return nil, err
		}

		if resp.Error != nil {
			return nil, fmt.Errorf("openai error: %s", resp.Error.Message)
		}

		if len(resp.Data) == 0 {
			return nil, errors.New("openai: no embedding returned")
		}

		return resp.Data[0].Embedding, nil
	})
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *apiError `json:"error,omitempty"`
}

func (c *Client) Complete(ctx context.Context, prompt string) (copilot.Completion, error) {
	return provider.Do(ctx, c.guard, func(ctx context.Context) (copilot.Completion, error) {
		req := chatRequest{
			Model: c.model,
			Messages: []chatMessage{
				{Role: "system", Content: copilot.SystemPrompt},
				{Role: "user", Content: prompt},
			},
			Temperature: Temperature,
		}

		var resp chatResponse
		if err := c.post(ctx, "/chat/completions", req, &resp); err != nil {
			return copilot.Completion{}, err
		}

		if resp.Error != nil {
			return copilot.Completion{}, fmt.Errorf("openai error: %s", resp.Error.Message)
		}

		if len(resp.Choices) == 0 {
			return copilot.Completion{}, errors.New("openai: no choices returned")
		}

		return copilot.Completion{
			Text:       resp.Choices[0].Message.Content,
			TokensUsed: resp.Usage.TotalTokens,
			Model:      c.model,
		}, nil
	})
}

func (c *Client) post(ctx context.Context, path string, in any, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("openai error (status %d): %s", resp.StatusCode, string(data))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
