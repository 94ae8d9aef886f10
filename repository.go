package copilot

import "context"

type DocumentRepository interface {
	CreateDocument(ctx context.Context, doc Document) error

	// GetDocument returns ErrDocumentNotFound for an unknown id.
	GetDocument(ctx context.Context, id string) (*Document, error)

	// ListDocuments returns the project's documents, newest first.
	ListDocuments(ctx context.Context, projectID string, limit int, offset int) ([]Document, error)

	// SetDocumentStatus moves a document to status. The chunk count is only
	// updated when given.
	SetDocumentStatus(ctx context.Context, id string, status DocumentStatus, chunkCount ...int) error
}

type ChunkRepository interface {
	// PersistChunk is a no-op for an already stored (document, index) pair.
	PersistChunk(ctx context.Context, chunk Chunk) error

	// ChunksByProject returns every chunk of the project in no particular order.
	ChunksByProject(ctx context.Context, projectID string) ([]Chunk, error)

	// ChunksByDocument returns the document's chunks ordered by index.
	ChunksByDocument(ctx context.Context, documentID string) ([]Chunk, error)
}

type QueryRepository interface {
	CreateQuery(ctx context.Context, query Query) error

	// GetQuery returns ErrQueryNotFound for an unknown id.
	GetQuery(ctx context.Context, id string) (*Query, error)

	// AddFeedback returns ErrQueryNotFound when the query does not exist.
	AddFeedback(ctx context.Context, feedback Feedback) error
}

type ActionRepository interface {
	CreateAction(ctx context.Context, action Action) error
	CompleteAction(ctx context.Context, id string, status ActionStatus, result string) error
}

type MetricsRepository interface {
	// MetricsInput collects the raw figures for Snapshot. An empty projectID
	// means every project.
	MetricsInput(ctx context.Context, projectID string) (MetricsInput, error)
}

type Repository interface {
	DocumentRepository
	ChunkRepository
	QueryRepository
	ActionRepository
	MetricsRepository

	Close() error
}
