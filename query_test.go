package copilot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flarexio/copilot/persistence/chromem"
	"github.com/flarexio/copilot/vector"
)

type fixedEmbedder struct {
	vector []float32
}

func (e fixedEmbedder) Embed(ctx context.Context, text string) []float32 {
	return e.vector
}

func (e fixedEmbedder) EmbedMany(ctx context.Context, texts []string) [][]float32 {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = e.vector
	}

	return vectors
}

type memoryChunks struct {
	chunks []Chunk
}

func (m *memoryChunks) PersistChunk(ctx context.Context, chunk Chunk) error {
	m.chunks = append(m.chunks, chunk)
	return nil
}

func (m *memoryChunks) ChunksByProject(ctx context.Context, projectID string) ([]Chunk, error) {
	return m.chunks, nil
}

func (m *memoryChunks) ChunksByDocument(ctx context.Context, documentID string) ([]Chunk, error) {
	return m.chunks, nil
}

type countingVectorDB struct {
	vector.VectorDB
	finds int
}

func (db *countingVectorDB) Collection(name string) (vector.Collection, error) {
	c, err := db.VectorDB.Collection(name)
	if err != nil {
		return nil, err
	}

	return &countingCollection{c, db}, nil
}

type countingCollection struct {
	vector.Collection
	db *countingVectorDB
}

func (c *countingCollection) FindDocument(ctx context.Context, id string) (vector.Document, error) {
	c.db.finds++
	return c.Collection.FindDocument(ctx, id)
}

func negativeAndZeroChunks() *memoryChunks {
	return &memoryChunks{
		chunks: []Chunk{
			{ID: "neg", DocumentID: "d-neg", Text: "opposite", Embedding: []float32{-1, 0.1}},
			{ID: "zero", DocumentID: "d-zero", Text: "empty", Embedding: []float32{0, 0}},
		},
	}
}

func citationIDs(answer *Answer) []string {
	ids := make([]string, len(answer.Citations))
	for i, c := range answer.Citations {
		ids[i] = c.ChunkID
	}

	return ids
}

func TestAnswerRanksZeroAboveNegative(t *testing.T) {
	assert := assert.New(t)

	ctx := context.Background()
	embedder := fixedEmbedder{[]float32{1, 0}}

	db, err := chromem.NewChromemVectorDB(vector.Config{})
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	for _, db := range []vector.VectorDB{nil, db} {
		answerer := NewAnswerer(embedder, NewGenerator(nil), negativeAndZeroChunks(), db, "")

		top1, err := answerer.Answer(ctx, "p1", "q", 1)
		if err != nil {
			assert.Fail(err.Error())
			return
		}

		assert.Equal([]string{"zero"}, citationIDs(top1))
		assert.Equal(0.0, top1.Citations[0].Score)

		top2, err := answerer.Answer(ctx, "p1", "q", 2)
		if err != nil {
			assert.Fail(err.Error())
			return
		}

		assert.Equal([]string{"zero", "neg"}, citationIDs(top2))
		assert.Less(top2.Citations[1].Score, 0.0)
	}
}

func TestAnswerIndexesChunksOnce(t *testing.T) {
	assert := assert.New(t)

	ctx := context.Background()

	inner, err := chromem.NewChromemVectorDB(vector.Config{})
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	db := &countingVectorDB{VectorDB: inner}

	chunks := &memoryChunks{
		chunks: []Chunk{
			{ID: "a", DocumentID: "d-1", Text: "a", Embedding: []float32{1, 0}},
			{ID: "b", DocumentID: "d-1", Text: "b", Embedding: []float32{0, 1}},
		},
	}

	answerer := NewAnswerer(fixedEmbedder{[]float32{1, 0.2}}, NewGenerator(nil), chunks, db, "")

	answer, err := answerer.Answer(ctx, "p1", "q", 5)
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal([]string{"a", "b"}, citationIDs(answer))
	assert.Equal(2, db.finds)

	_, err = answerer.Answer(ctx, "p1", "q", 5)
	assert.NoError(err)
	assert.Equal(2, db.finds, "an up-to-date collection is not rescanned")

	chunks.chunks = append(chunks.chunks, Chunk{ID: "c", DocumentID: "d-2", Text: "c", Embedding: []float32{1, 0.2}})

	answer, err = answerer.Answer(ctx, "p1", "q", 1)
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal([]string{"c"}, citationIDs(answer))
	assert.Equal(5, db.finds)
}
