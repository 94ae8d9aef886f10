package copilot

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/flarexio/copilot/vector"
)

// Answerer retrieves the chunks most similar to a question and hands them
// to the generator.
type Answerer struct {
	embedder   Embedder
	generator  Generator
	chunks     ChunkRepository
	db         vector.VectorDB
	collection string
	log        *zap.Logger
}

// NewAnswerer ranks by brute force unless db is given. The index is
// optional; any index failure falls back to the brute-force ranking.
func NewAnswerer(embedder Embedder, generator Generator, chunks ChunkRepository, db vector.VectorDB, collection string) *Answerer {
	if collection == "" {
		collection = "chunks"
	}

	log := zap.L().With(
		zap.String("component", "answerer"),
	)

	return &Answerer{
		embedder:   embedder,
		generator:  generator,
		chunks:     chunks,
		db:         db,
		collection: collection,
		log:        log,
	}
}

func (a *Answerer) Answer(ctx context.Context, projectID string, question string, topK int) (*Answer, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	embedding := a.embedder.Embed(ctx, question)

	chunks, err := a.chunks.ChunksByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if len(chunks) == 0 {
		return &Answer{
			Answer:           EmptyCorpusAnswer,
			Citations:        []Citation{},
			Model:            ModelLocalFallback,
			RelatedDocuments: []string{},
		}, nil
	}

	ranked := a.rank(ctx, projectID, embedding, chunks, topK)

	selected := make([]Chunk, len(ranked))
	citations := make([]Citation, len(ranked))
	for i, r := range ranked {
		selected[i] = r.chunk
		citations[i] = Citation{
			ChunkID:    r.chunk.ID,
			DocumentID: r.chunk.DocumentID,
			Text:       r.chunk.Text,
			Score:      round(r.score, 4),
		}
	}

	completion, err := a.generator.Generate(ctx, question, selected)
	if err != nil {
		return nil, err
	}

	return &Answer{
		Answer:           completion.Text,
		Citations:        citations,
		Model:            completion.Model,
		TokensUsed:       completion.TokensUsed,
		RelatedDocuments: relatedDocuments(selected),
	}, nil
}

type rankedChunk struct {
	chunk Chunk
	score float64
}

func (a *Answerer) rank(ctx context.Context, projectID string, query []float32, chunks []Chunk, k int) []rankedChunk {
	if a.db != nil {
		ranked, err := a.rankWithIndex(ctx, projectID, query, chunks, k)
		if err == nil {
			return ranked
		}

		a.log.Warn("vector index unavailable, using brute-force ranking",
			zap.String("project_id", projectID),
			zap.Error(err),
		)
	}

	byID := make(map[string]Chunk, len(chunks))
	docs := make([]vector.Document, len(chunks))
	for i, chunk := range chunks {
		byID[chunk.ID] = chunk
		docs[i] = vector.Document{
			ID:        chunk.ID,
			Embedding: chunk.Embedding,
		}
	}

	results := vector.TopK(query, docs, k)

	ranked := make([]rankedChunk, len(results))
	for i, result := range results {
		ranked[i] = rankedChunk{byID[result.ID], result.Score}
	}

	return ranked
}

func (a *Answerer) rankWithIndex(ctx context.Context, projectID string, query []float32, chunks []Chunk, k int) ([]rankedChunk, error) {
	if vector.Norm(query) == 0 {
		return nil, vector.ErrDegenerateVector
	}

	collection, err := a.db.Collection(a.collection + "-" + projectID)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]Chunk, len(chunks))
	degenerate := make([]Chunk, 0)
	for _, chunk := range chunks {
		if vector.Norm(chunk.Embedding) == 0 {
			degenerate = append(degenerate, chunk)
			continue
		}

		byID[chunk.ID] = chunk
	}

	// chunks are never removed, so a matching count means every chunk is indexed
	if collection.Count() != len(byID) {
		for _, chunk := range chunks {
			if _, ok := byID[chunk.ID]; !ok {
				continue
			}

			if _, err := collection.FindDocument(ctx, chunk.ID); err == nil {
				continue
			}

			doc := vector.Document{
				ID: chunk.ID,
				Metadata: map[string]string{
					"document_id": chunk.DocumentID,
				},
				Content:   chunk.Text,
				Embedding: chunk.Embedding,
			}

			if err := collection.AddDocument(ctx, doc); err != nil {
				return nil, err
			}
		}
	}

	var results []vector.Result
	if len(byID) > 0 {
		results, err = collection.Query(ctx, query, min(k, len(byID)))
		if err != nil {
			return nil, err
		}
	}

	// degenerate chunks score 0 and go before the first negative result
	ranked := make([]rankedChunk, 0, len(results)+len(degenerate))
	pending := degenerate
	for _, result := range results {
		chunk, ok := byID[result.ID]
		if !ok {
			continue
		}

		if result.Score < 0 {
			for _, d := range pending {
				ranked = append(ranked, rankedChunk{d, 0})
			}

			pending = nil
		}

		ranked = append(ranked, rankedChunk{chunk, result.Score})
	}

	for _, d := range pending {
		ranked = append(ranked, rankedChunk{d, 0})
	}

	if len(ranked) > k {
		ranked = ranked[:k]
	}

	return ranked, nil
}

func relatedDocuments(chunks []Chunk) []string {
	seen := make(map[string]struct{})
	docs := make([]string, 0)
	for _, chunk := range chunks {
		if _, ok := seen[chunk.DocumentID]; ok {
			continue
		}

		seen[chunk.DocumentID] = struct{}{}
		docs = append(docs, chunk.DocumentID)
	}

	sort.Strings(docs)
	return docs
}
