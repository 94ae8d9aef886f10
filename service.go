package copilot

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flarexio/copilot/vector"
)

// Service defines the core logic of the knowledge copilot.
type Service interface {

	// Close releases the underlying repository.
	Close() error

	// UploadDocument stores a document and ingests it synchronously.
	UploadDocument(ctx context.Context, req UploadRequest) (*Document, error)

	// ListDocuments returns the project's documents, newest first.
	ListDocuments(ctx context.Context, projectID string, limit int, offset int) ([]Document, error)

	// GetDocument returns a document together with its ordered chunks.
	GetDocument(ctx context.Context, id string) (*DocumentDetail, error)

	// Ask answers a question from the project's documents and records it.
	Ask(ctx context.Context, projectID string, question string, topK int) (*Query, error)

	// GetQuery returns a recorded query.
	GetQuery(ctx context.Context, id string) (*Query, error)

	// AddFeedback attaches a rating and/or a note to a recorded query.
	AddFeedback(ctx context.Context, queryID string, rating *int, note string) (*Feedback, error)

	// RunAction executes an agent action and records its outcome.
	RunAction(ctx context.Context, projectID string, typ ActionType, payload ActionPayload) (*Action, error)

	// Metrics aggregates usage figures. An empty projectID covers every project.
	Metrics(ctx context.Context, projectID string) (*Metrics, error)
}

type ServiceMiddleware func(Service) Service

// UploadRequest carries either a file or raw source text.
type UploadRequest struct {
	ProjectID  string      `json:"project_id"`
	SourceText string      `json:"source_text,omitempty"`
	File       *UploadFile `json:"file,omitempty"`
}

type UploadFile struct {
	Filename string `json:"filename"`
	Content  []byte `json:"content"`
}

const SourceTextFilename = "source_text.txt"

func NewService(cfg Config, repo Repository, embedder Embedder, generator Generator, db vector.VectorDB) Service {
	log := zap.L().With(
		zap.String("service", "copilot"),
	)

	return &service{
		repo:     repo,
		ingester: NewIngester(cfg.Chunking, embedder, repo),
		answerer: NewAnswerer(embedder, generator, repo, db, cfg.Vector.Collection),
		log:      log,
	}
}

type service struct {
	repo     Repository
	ingester *Ingester
	answerer *Answerer
	log      *zap.Logger
}

func (svc *service) Close() error {
	return svc.repo.Close()
}

func (svc *service) UploadDocument(ctx context.Context, req UploadRequest) (*Document, error) {
	if req.ProjectID == "" {
		return nil, ErrMissingProject
	}

	var (
		text       string
		filename   string
		sourceType SourceType
	)

	switch {
	case req.File != nil:
		if req.File.Filename == "" {
			return nil, ErrMissingFilename
		}

		if !utf8.Valid(req.File.Content) {
			return nil, ErrUnsupportedEncoding
		}

		text = string(req.File.Content)
		filename = req.File.Filename
		sourceType = DetectSourceType(filename)

	case strings.TrimSpace(req.SourceText) != "":
		text = strings.TrimSpace(req.SourceText)
		filename = SourceTextFilename
		sourceType = SourceTypeText

	default:
		return nil, ErrEmptyUpload
	}

	now := time.Now().UTC()
	doc := Document{
		ID:         uuid.NewString(),
		ProjectID:  req.ProjectID,
		Filename:   filename,
		SourceType: sourceType,
		Status:     StatusProcessing,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := svc.repo.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}

	if _, err := svc.ingester.Ingest(ctx, doc.ID, doc.ProjectID, text); err != nil {
		// The request context may already be done; the status must still land.
		if err := svc.repo.SetDocumentStatus(context.WithoutCancel(ctx), doc.ID, StatusFailed); err != nil {
			svc.log.Error(err.Error(),
				zap.String("document_id", doc.ID),
			)
		}

		return nil, err
	}

	return svc.repo.GetDocument(ctx, doc.ID)
}

func (svc *service) ListDocuments(ctx context.Context, projectID string, limit int, offset int) ([]Document, error) {
	if projectID == "" {
		projectID = DefaultProjectID
	}

	if limit <= 0 {
		limit = DefaultListLimit
	}

	if offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", ErrInvalidArgument)
	}

	return svc.repo.ListDocuments(ctx, projectID, limit, offset)
}

func (svc *service) GetDocument(ctx context.Context, id string) (*DocumentDetail, error) {
	doc, err := svc.repo.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	chunks, err := svc.repo.ChunksByDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	return &DocumentDetail{
		Document: *doc,
		Chunks:   chunks,
	}, nil
}

func (svc *service) Ask(ctx context.Context, projectID string, question string, topK int) (*Query, error) {
	if projectID == "" {
		projectID = DefaultProjectID
	}

	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}

	if topK == 0 {
		topK = DefaultTopK
	}

	if topK < 1 || topK > MaxTopK {
		return nil, fmt.Errorf("%w: top_k must be between 1 and %d", ErrInvalidArgument, MaxTopK)
	}

	started := time.Now().UTC()

	answer, err := svc.answerer.Answer(ctx, projectID, question, topK)
	if err != nil {
		return nil, err
	}

	query := Query{
		ID:               uuid.NewString(),
		ProjectID:        projectID,
		Question:         question,
		Answer:           answer.Answer,
		Citations:        answer.Citations,
		LatencyMS:        time.Since(started).Milliseconds(),
		TokensUsed:       answer.TokensUsed,
		Model:            answer.Model,
		RelatedDocuments: answer.RelatedDocuments,
		CreatedAt:        started,
	}

	if err := svc.repo.CreateQuery(ctx, query); err != nil {
		return nil, err
	}

	return &query, nil
}

func (svc *service) GetQuery(ctx context.Context, id string) (*Query, error) {
	return svc.repo.GetQuery(ctx, id)
}

func (svc *service) AddFeedback(ctx context.Context, queryID string, rating *int, note string) (*Feedback, error) {
	if queryID == "" {
		return nil, fmt.Errorf("%w: query_id is required", ErrInvalidArgument)
	}

	if rating != nil && (*rating < 1 || *rating > 5) {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidArgument)
	}

	feedback := Feedback{
		ID:        uuid.NewString(),
		QueryID:   queryID,
		Rating:    rating,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	}

	if err := svc.repo.AddFeedback(ctx, feedback); err != nil {
		return nil, err
	}

	return &feedback, nil
}

func (svc *service) RunAction(ctx context.Context, projectID string, typ ActionType, payload ActionPayload) (*Action, error) {
	if projectID == "" {
		projectID = DefaultProjectID
	}

	if typ == "" {
		return nil, fmt.Errorf("%w: action type is required", ErrInvalidArgument)
	}

	action := Action{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Type:      typ,
		Payload:   payload,
		Status:    ActionStatusQueued,
		CreatedAt: time.Now().UTC(),
	}

	if err := svc.repo.CreateAction(ctx, action); err != nil {
		return nil, err
	}

	result, execErr := ExecuteAction(ctx, svc.repo, typ, payload)
	if execErr != nil {
		action.Status = ActionStatusFailed
		action.Result = string(ActionStatusFailed)
	} else {
		action.Status = ActionStatusCompleted
		action.Result = result
	}

	completedAt := time.Now().UTC()
	action.CompletedAt = &completedAt

	if err := svc.repo.CompleteAction(context.WithoutCancel(ctx), action.ID, action.Status, action.Result); err != nil {
		return nil, err
	}

	if execErr != nil {
		return nil, fmt.Errorf("action %s failed: %w", action.ID, execErr)
	}

	return &action, nil
}

func (svc *service) Metrics(ctx context.Context, projectID string) (*Metrics, error) {
	in, err := svc.repo.MetricsInput(ctx, projectID)
	if err != nil {
		return nil, err
	}

	metrics := Snapshot(in)
	return &metrics, nil
}
