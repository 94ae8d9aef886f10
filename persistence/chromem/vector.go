package chromem

import (
	"context"
	"errors"

	"github.com/philippgille/chromem-go"

	"github.com/flarexio/copilot/vector"
)

var errNoEmbeddingFunc = errors.New("chunk embeddings must be precomputed")

func NewChromemVectorDB(cfg vector.Config) (vector.VectorDB, error) {
	var db *chromem.DB
	if !cfg.Persistent {
		db = chromem.NewDB()
	} else {
		d, err := chromem.NewPersistentDB(cfg.Path, false)
		if err != nil {
			return nil, err
		}

		db = d
	}

	return &chromemVectorDB{db}, nil
}

type chromemVectorDB struct {
	db *chromem.DB
}

// Documents always carry an embedding, so the collection never calls
// this function.
func precomputed(ctx context.Context, text string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}

func (vector *chromemVectorDB) Collection(name string) (vector.Collection, error) {
	c, err := vector.db.GetOrCreateCollection(name, nil, precomputed)
	if err != nil {
		return nil, err
	}

	return &collection{c}, nil
}

type collection struct {
	collection *chromem.Collection
}

func (c *collection) AddDocument(ctx context.Context, doc vector.Document) error {
	// chromem normalizes on insert, which is undefined for a zero vector.
	if vector.Norm(doc.Embedding) == 0 {
		return vector.ErrDegenerateVector
	}

	document := chromem.Document{
		ID:        doc.ID,
		Metadata:  doc.Metadata,
		Embedding: doc.Embedding,
		Content:   doc.Content,
	}

	return c.collection.AddDocument(ctx, document)
}

func (c *collection) FindDocument(ctx context.Context, id string) (vector.Document, error) {
	document, err := c.collection.GetByID(ctx, id)
	if err != nil {
		return vector.Document{}, err
	}

	return vector.Document{
		ID:        document.ID,
		Metadata:  document.Metadata,
		Embedding: document.Embedding,
		Content:   document.Content,
	}, nil
}

func (c *collection) Query(ctx context.Context, embedding []float32, k int) ([]vector.Result, error) {
	if vector.Norm(embedding) == 0 {
		return nil, vector.ErrDegenerateVector
	}

	if k > c.collection.Count() {
		k = c.collection.Count()
	}

	if k <= 0 {
		return []vector.Result{}, nil
	}

	results, err := c.collection.QueryEmbedding(ctx, embedding, k, nil, nil)
	if err != nil {
		return nil, err
	}

	docs := make([]vector.Result, len(results))
	for i, result := range results {
		docs[i] = vector.Result{
			Document: vector.Document{
				ID:        result.ID,
				Metadata:  result.Metadata,
				Embedding: result.Embedding,
				Content:   result.Content,
			},
			Score: float64(result.Similarity),
		}
	}

	return docs, nil
}

func (c *collection) Count() int {
	return c.collection.Count()
}
