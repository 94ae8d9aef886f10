package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/flarexio/copilot"
	"github.com/flarexio/copilot/persistence/redis"
	"github.com/flarexio/copilot/provider/gemini"
	"github.com/flarexio/copilot/provider/openai"
)

// loadAPIKeys fills missing credentials from the environment.
func loadAPIKeys(cfg *copilot.Config) {
	for _, p := range []*copilot.ProviderConfig{&cfg.Embedding, &cfg.Chat} {
		if p.APIKey != "" {
			continue
		}

		switch p.Provider {
		case copilot.ProviderTypeGemini:
			p.APIKey = os.Getenv("GEMINI_API_KEY")
		default:
			p.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
}

type embeddingProvider interface {
	copilot.EmbeddingProvider
	Model() string
}

func newEmbeddingProvider(ctx context.Context, cfg copilot.ProviderConfig) (embeddingProvider, io.Closer, error) {
	switch cfg.Provider {
	case copilot.ProviderTypeOpenAI:
		client, err := openai.NewEmbeddingClient(cfg)
		return client, nil, err

	case copilot.ProviderTypeGemini:
		client, err := gemini.NewEmbeddingClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}

		return client, client, nil

	default:
		return nil, nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

func newAnswerProvider(ctx context.Context, cfg copilot.ProviderConfig) (copilot.AnswerProvider, io.Closer, error) {
	switch cfg.Provider {
	case copilot.ProviderTypeOpenAI:
		client, err := openai.NewChatClient(cfg)
		return client, nil, err

	case copilot.ProviderTypeGemini:
		client, err := gemini.NewChatClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}

		return client, client, nil

	default:
		return nil, nil, fmt.Errorf("unsupported chat provider: %s", cfg.Provider)
	}
}

type closers []io.Closer

func (cs closers) Close() error {
	for i := len(cs) - 1; i >= 0; i-- {
		if err := cs[i].Close(); err != nil {
			zap.L().Warn(err.Error())
		}
	}

	return nil
}

// buildModels wires the embedding and answer backends. A missing credential
// leaves the local implementation in place.
func buildModels(ctx context.Context, cfg copilot.Config, log *zap.Logger) (copilot.Embedder, copilot.Generator, closers, error) {
	var cs closers

	var embedder copilot.EmbeddingProvider
	if cfg.Embedding.Enabled() {
		p, closer, err := newEmbeddingProvider(ctx, cfg.Embedding)
		if err != nil {
			return nil, nil, cs, err
		}

		if closer != nil {
			cs = append(cs, closer)
		}

		embedder = p

		if cfg.Cache.Enabled {
			client, err := redis.NewClient(ctx, cfg.Cache.URL)
			if err != nil {
				return nil, nil, cs, err
			}

			cs = append(cs, client)
			embedder = redis.NewEmbeddingCache(client, p, p.Model(), cfg.Cache.TTL.Duration())
		}

		log.Info("embedding provider enabled",
			zap.String("provider", string(cfg.Embedding.Provider)),
			zap.String("model", p.Model()),
			zap.Bool("cache", cfg.Cache.Enabled),
		)
	} else {
		log.Info("embedding provider disabled, using local embeddings")
	}

	var answerer copilot.AnswerProvider
	if cfg.Chat.Enabled() {
		p, closer, err := newAnswerProvider(ctx, cfg.Chat)
		if err != nil {
			return nil, nil, cs, err
		}

		if closer != nil {
			cs = append(cs, closer)
		}

		answerer = p

		log.Info("chat provider enabled",
			zap.String("provider", string(cfg.Chat.Provider)),
		)
	} else {
		log.Info("chat provider disabled, using local answers")
	}

	return copilot.NewEmbedder(embedder), copilot.NewGenerator(answerer), cs, nil
}
