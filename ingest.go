package copilot

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type IngestRepository interface {
	ChunkRepository
	SetDocumentStatus(ctx context.Context, id string, status DocumentStatus, chunkCount ...int) error
}

// Ingester turns one document's text into persisted, embedded chunks and
// moves the document to ready or empty.
type Ingester struct {
	chunking ChunkingConfig
	embedder Embedder
	repo     IngestRepository
	log      *zap.Logger
}

func NewIngester(cfg ChunkingConfig, embedder Embedder, repo IngestRepository) *Ingester {
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	log := zap.L().With(
		zap.String("component", "ingester"),
	)

	return &Ingester{
		chunking: cfg,
		embedder: embedder,
		repo:     repo,
		log:      log,
	}
}

// Ingest returns the number of chunks stored. Failures are returned as
// *IngestionError and leave the document status untouched.
func (i *Ingester) Ingest(ctx context.Context, documentID string, projectID string, text string) (int, error) {
	log := i.log.With(
		zap.String("document_id", documentID),
		zap.String("project_id", projectID),
	)

	chunks, err := ChunkText(text, i.chunking.MaxTokens, i.chunking.Overlap)
	if err != nil {
		return 0, &IngestionError{documentID, err}
	}

	if len(chunks) == 0 {
		if err := i.repo.SetDocumentStatus(ctx, documentID, StatusEmpty, 0); err != nil {
			return 0, &IngestionError{documentID, err}
		}

		log.Info("document is empty")
		return 0, nil
	}

	vectors := i.embedder.EmbedMany(ctx, chunks)

	now := time.Now().UTC()
	for idx, text := range chunks {
		chunk := Chunk{
			ID:         uuid.NewString(),
			ProjectID:  projectID,
			DocumentID: documentID,
			Index:      idx,
			Text:       text,
			Embedding:  vectors[idx],
			Metadata: ChunkMetadata{
				Length: utf8.RuneCountInString(text),
				Index:  idx,
			},
			CreatedAt: now,
		}

		if err := i.repo.PersistChunk(ctx, chunk); err != nil {
			return 0, &IngestionError{documentID, err}
		}
	}

	if err := i.repo.SetDocumentStatus(ctx, documentID, StatusReady, len(chunks)); err != nil {
		return 0, &IngestionError{documentID, err}
	}

	log.Info("document ingested", zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}
