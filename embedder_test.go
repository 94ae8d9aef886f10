package copilot

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeEmbeddingProvider struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (p *fakeEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.calls++

	if p.err != nil {
		return nil, p.err
	}

	return p.vectors[text], nil
}

func TestLocalEmbeddingDeterministic(t *testing.T) {
	assert := assert.New(t)

	text := "이 프로젝트는 문서 기반 질의 응답 시스템입니다."

	first := LocalEmbedding(text)
	second := LocalEmbedding(text)

	assert.Len(first, EmbeddingDimension)
	assert.Equal(first, second)
}

func TestLocalEmbeddingNormalized(t *testing.T) {
	assert := assert.New(t)

	vec := LocalEmbedding("Retrieval augmented generation\nwith local fallback")

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}

	assert.InDelta(1.0, math.Sqrt(sum), 1e-5)
}

func TestLocalEmbeddingZero(t *testing.T) {
	assert := assert.New(t)

	for _, text := range []string{"", " ", "\n\n", "   \n  "} {
		vec := LocalEmbedding(text)

		assert.Len(vec, EmbeddingDimension)
		assert.Equal(make([]float32, EmbeddingDimension), vec)
	}
}

func TestLocalEmbeddingCaseAndNewlines(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(LocalEmbedding("hello world"), LocalEmbedding("HELLO\nWorld"))
	assert.Equal(LocalEmbedding("a b"), LocalEmbedding("b  a"))
}

func TestLocalEmbeddingBagOfWords(t *testing.T) {
	assert := assert.New(t)

	vec := LocalEmbedding("token token token")

	var nonZero int
	for i, v := range vec {
		if v != 0 {
			nonZero++
			assert.Equal(i, bucket("token"))
			assert.InDelta(1.0, v, 1e-6)
		}
	}

	assert.Equal(1, nonZero)
}

func TestEmbedderWithoutProvider(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	embedder := NewEmbedder(nil)

	vectors := embedder.EmbedMany(ctx, []string{"alpha", "beta", ""})
	assert.Len(vectors, 3)
	assert.Equal(LocalEmbedding("alpha"), vectors[0])
	assert.Equal(LocalEmbedding("beta"), vectors[1])
	assert.Equal(make([]float32, EmbeddingDimension), vectors[2])
}

func TestEmbedderDelegatesToProvider(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	provider := &fakeEmbeddingProvider{
		vectors: map[string][]float32{
			"alpha": {0.5, 2, -1},
		},
	}

	embedder := NewEmbedder(provider)

	assert.Equal([]float32{0.5, 2, -1}, embedder.Embed(ctx, "alpha"))
	assert.Equal(1, provider.calls)
}

func TestEmbedderFallsBackPerItem(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	provider := &fakeEmbeddingProvider{
		vectors: map[string][]float32{
			"alpha": {1, 2, 3},
		},
	}

	embedder := NewEmbedder(provider)

	vectors := embedder.EmbedMany(ctx, []string{"alpha", "missing"})
	assert.Equal([]float32{1, 2, 3}, vectors[0])
	assert.Equal(LocalEmbedding("missing"), vectors[1], "empty provider vector is malformed")
	assert.Equal(2, provider.calls)
}

func TestEmbedderFallsBackOnError(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	provider := &fakeEmbeddingProvider{
		err: errors.New("connection refused"),
	}

	embedder := NewEmbedder(provider)

	assert.Equal(LocalEmbedding("hello"), embedder.Embed(ctx, "hello"))
}
