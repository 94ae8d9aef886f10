package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/flarexio/copilot"
)

func testConfig(url string) copilot.ProviderConfig {
	return copilot.ProviderConfig{
		Provider:   copilot.ProviderTypeOpenAI,
		APIKey:     "sk-test",
		BaseURL:    url,
		Dimensions: 3,
		Timeout:    copilot.Duration(5 * time.Second),
	}
}

func TestEmbed(t *testing.T) {
	assert := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/embeddings", r.URL.Path)
		assert.Equal("Bearer sk-test", r.Header.Get("Authorization"))

		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		assert.Equal(DefaultEmbeddingModel, req.Model)
		assert.Equal([]string{"hello"}, req.Input)
		assert.Equal(3, req.Dimensions)

		w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3],"index":0}]}`))
	}))
	defer server.Close()

	client, err := NewEmbeddingClient(testConfig(server.URL))
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	vec, err := client.Embed(context.Background(), "hello")
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal([]float32{0.1, 0.2, 0.3}, vec)
}

func TestEmbedStatusError(t *testing.T) {
	assert := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	client, err := NewEmbeddingClient(testConfig(server.URL))
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	_, err = client.Embed(context.Background(), "hello")
	assert.ErrorContains(err, "status 401")
}

func TestComplete(t *testing.T) {
	assert := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/chat/completions", r.URL.Path)

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		assert.Equal(DefaultChatModel, req.Model)
		assert.Equal(Temperature, req.Temperature)

		if assert.Len(req.Messages, 2) {
			assert.Equal("system", req.Messages[0].Role)
			assert.Equal(copilot.SystemPrompt, req.Messages[0].Content)
			assert.Equal("user", req.Messages[1].Role)
			assert.Equal("the prompt", req.Messages[1].Content)
		}

		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"an answer [1]"}}],"usage":{"total_tokens":77}}`))
	}))
	defer server.Close()

	client, err := NewChatClient(testConfig(server.URL))
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	completion, err := client.Complete(context.Background(), "the prompt")
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal("an answer [1]", completion.Text)
	assert.Equal(77, completion.TokensUsed)
	assert.Equal(DefaultChatModel, completion.Model)
}

func TestCompleteWithoutChoices(t *testing.T) {
	assert := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client, err := NewChatClient(testConfig(server.URL))
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	_, err = client.Complete(context.Background(), "the prompt")
	assert.ErrorContains(err, "no choices")
}

func TestMissingAPIKey(t *testing.T) {
	assert := assert.New(t)

	_, err := NewChatClient(copilot.ProviderConfig{})
	assert.Error(err)
}
