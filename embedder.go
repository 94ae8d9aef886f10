package copilot

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// Embedder turns text into a vector. It never fails: when no provider is
// configured, or the provider call fails, the local embedding is used.
type Embedder interface {
	Embed(ctx context.Context, text string) []float32
	EmbedMany(ctx context.Context, texts []string) [][]float32
}

// EmbeddingProvider is an external embedding backend.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NewEmbedder returns the local embedder when provider is nil and a
// provider-backed embedder with local fallback otherwise.
func NewEmbedder(provider EmbeddingProvider) Embedder {
	if provider == nil {
		return localEmbedder{}
	}

	log := zap.L().With(
		zap.String("component", "embedder"),
	)

	return &providerEmbedder{
		provider: provider,
		log:      log,
	}
}

type localEmbedder struct{}

func (localEmbedder) Embed(ctx context.Context, text string) []float32 {
	return LocalEmbedding(text)
}

func (e localEmbedder) EmbedMany(ctx context.Context, texts []string) [][]float32 {
	return embedMany(ctx, e, texts)
}

type providerEmbedder struct {
	provider EmbeddingProvider
	log      *zap.Logger
}

func (e *providerEmbedder) Embed(ctx context.Context, text string) []float32 {
	vec, err := e.provider.Embed(ctx, text)
	if err == nil && len(vec) == 0 {
		err = errors.New("empty embedding returned")
	}

	if err != nil {
		e.log.Warn("falling back to local embedding",
			zap.Error(ErrProviderUnavailable),
			zap.String("cause", err.Error()),
		)

		return LocalEmbedding(text)
	}

	return vec
}

func (e *providerEmbedder) EmbedMany(ctx context.Context, texts []string) [][]float32 {
	return embedMany(ctx, e, texts)
}

func embedMany(ctx context.Context, e Embedder, texts []string) [][]float32 {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = e.Embed(ctx, text)
	}

	return vectors
}

// LocalEmbedding computes a hashed bag-of-words vector of EmbeddingDimension
// buckets. Each token lands in the bucket given by its 4-byte BLAKE2b digest
// read big-endian, modulo the dimension. The result is L2-normalized unless
// it is all zeros.
func LocalEmbedding(text string) []float32 {
	vec := make([]float32, EmbeddingDimension)

	tokens := localTokens(text)
	if len(tokens) == 0 {
		return vec
	}

	for _, token := range tokens {
		vec[bucket(token)] += 1.0
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}

	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}

	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}

	return vec
}

func localTokens(text string) []string {
	text = strings.ReplaceAll(strings.ToLower(text), "\n", " ")

	var tokens []string
	for _, token := range strings.Split(text, " ") {
		if token != "" {
			tokens = append(tokens, token)
		}
	}

	return tokens
}

func bucket(token string) int {
	// New only fails for sizes outside 1..64 or oversized keys.
	h, _ := blake2b.New(4, nil)
	h.Write([]byte(token))

	digest := binary.BigEndian.Uint32(h.Sum(nil))
	return int(digest % EmbeddingDimension)
}
