package chromem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flarexio/copilot/vector"
)

func TestCollectionQuery(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	db, err := NewChromemVectorDB(vector.Config{Collection: "chunks"})
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	c, err := db.Collection("chunks-default")
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	docs := []vector.Document{
		{ID: "a", Content: "alpha", Embedding: []float32{1, 0, 0}},
		{ID: "b", Content: "beta", Embedding: []float32{0, 1, 0}},
		{ID: "c", Content: "gamma", Embedding: []float32{0.8, 0.6, 0}},
	}

	for _, doc := range docs {
		if err := c.AddDocument(ctx, doc); err != nil {
			assert.Fail(err.Error())
			return
		}
	}

	assert.Equal(3, c.Count())

	doc, err := c.FindDocument(ctx, "b")
	assert.NoError(err)
	assert.Equal("beta", doc.Content)

	results, err := c.Query(ctx, []float32{1, 0, 0}, 10)
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Len(results, 3)
	assert.Equal("a", results[0].ID)
	assert.Equal("c", results[1].ID)
	assert.InDelta(1.0, results[0].Score, 1e-5)
	assert.InDelta(0.8, results[1].Score, 1e-5)
}

func TestCollectionRejectsZeroVector(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	db, err := NewChromemVectorDB(vector.Config{})
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	c, err := db.Collection("zero")
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	err = c.AddDocument(ctx, vector.Document{ID: "z", Embedding: make([]float32, 8)})
	assert.ErrorIs(err, vector.ErrDegenerateVector)

	_, err = c.Query(ctx, make([]float32, 8), 1)
	assert.ErrorIs(err, vector.ErrDegenerateVector)

	results, err := c.Query(ctx, []float32{1, 0, 0, 0, 0, 0, 0, 0}, 3)
	assert.NoError(err)
	assert.Empty(results)
}
