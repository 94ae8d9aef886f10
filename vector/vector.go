package vector

import (
	"context"
	"errors"
	"math"
	"sort"
)

var ErrDegenerateVector = errors.New("degenerate vector")

type Config struct {
	Enabled    bool   `yaml:"enabled"`
	Persistent bool   `yaml:"persistent"`
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
}

// VectorDB is an optional index over chunk embeddings. The brute-force
// Rank is used whenever no VectorDB is configured.
type VectorDB interface {
	Collection(name string) (Collection, error)
}

type Collection interface {
	AddDocument(ctx context.Context, doc Document) error
	FindDocument(ctx context.Context, id string) (Document, error)
	Query(ctx context.Context, embedding []float32, k int) ([]Result, error)
	Count() int
}

type Document struct {
	ID        string            `json:"id"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Content   string            `json:"content"`
	Embedding []float32         `json:"embedding,omitempty"`
}

type Result struct {
	Document
	Score float64 `json:"score"`
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}

	return math.Sqrt(sum)
}

// Similarity returns the cosine similarity of a and b in [-1, 1].
// Empty, zero-norm and mismatched vectors have no similarity.
func Similarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])

		dot += x * y
		na += x * x
		nb += y * y
	}

	if na == 0 || nb == 0 {
		return 0
	}

	score := dot / (math.Sqrt(na) * math.Sqrt(nb))

	switch {
	case math.IsNaN(score):
		return 0
	case score > 1:
		return 1
	case score < -1:
		return -1
	}

	return score
}

// Rank scores every document against query and orders them by descending
// score. Equal scores keep their input order.
func Rank(query []float32, docs []Document) []Result {
	results := make([]Result, len(docs))
	for i, doc := range docs {
		results[i] = Result{
			Document: doc,
			Score:    Similarity(query, doc.Embedding),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results
}

// TopK ranks docs and keeps at most k results.
func TopK(query []float32, docs []Document, k int) []Result {
	results := Rank(query, docs)
	if k >= 0 && k < len(results) {
		results = results[:k]
	}

	return results
}
