package copilot

import (
	"context"

	"go.uber.org/zap"
)

func LoggingMiddleware(log *zap.Logger) ServiceMiddleware {
	log = log.With(
		zap.String("service", "copilot"),
	)

	return func(next Service) Service {
		log.Info("service initialized")

		return &loggingMiddleware{
			log:  log,
			next: next,
		}
	}
}

type loggingMiddleware struct {
	log  *zap.Logger
	next Service
}

func (mw *loggingMiddleware) Close() error {
	log := mw.log.With(
		zap.String("action", "close"),
	)

	err := mw.next.Close()
	if err != nil {
		log.Error(err.Error())
		return err
	}

	log.Info("service closed")
	return nil
}

func (mw *loggingMiddleware) UploadDocument(ctx context.Context, req UploadRequest) (*Document, error) {
	log := mw.log.With(
		zap.String("action", "upload_document"),
		zap.String("project_id", req.ProjectID),
	)

	if req.File != nil {
		log = log.With(
			zap.String("filename", req.File.Filename),
			zap.Int("size", len(req.File.Content)),
		)
	}

	doc, err := mw.next.UploadDocument(ctx, req)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("document uploaded",
		zap.String("document_id", doc.ID),
		zap.String("status", string(doc.Status)),
		zap.Int("chunks", doc.ChunkCount),
	)

	return doc, nil
}

func (mw *loggingMiddleware) ListDocuments(ctx context.Context, projectID string, limit int, offset int) ([]Document, error) {
	log := mw.log.With(
		zap.String("action", "list_documents"),
		zap.String("project_id", projectID),
	)

	docs, err := mw.next.ListDocuments(ctx, projectID, limit, offset)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("documents listed", zap.Int("count", len(docs)))
	return docs, nil
}

func (mw *loggingMiddleware) GetDocument(ctx context.Context, id string) (*DocumentDetail, error) {
	log := mw.log.With(
		zap.String("action", "get_document"),
		zap.String("document_id", id),
	)

	detail, err := mw.next.GetDocument(ctx, id)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("document found")
	return detail, nil
}

func (mw *loggingMiddleware) Ask(ctx context.Context, projectID string, question string, topK int) (*Query, error) {
	log := mw.log.With(
		zap.String("action", "ask"),
		zap.String("project_id", projectID),
		zap.Int("top_k", topK),
	)

	query, err := mw.next.Ask(ctx, projectID, question, topK)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("question answered",
		zap.String("query_id", query.ID),
		zap.String("model", query.Model),
		zap.Int64("latency_ms", query.LatencyMS),
		zap.Int("citations", len(query.Citations)),
	)

	return query, nil
}

func (mw *loggingMiddleware) GetQuery(ctx context.Context, id string) (*Query, error) {
	log := mw.log.With(
		zap.String("action", "get_query"),
		zap.String("query_id", id),
	)

	query, err := mw.next.GetQuery(ctx, id)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("query found")
	return query, nil
}

func (mw *loggingMiddleware) AddFeedback(ctx context.Context, queryID string, rating *int, note string) (*Feedback, error) {
	log := mw.log.With(
		zap.String("action", "add_feedback"),
		zap.String("query_id", queryID),
	)

	if rating != nil {
		log = log.With(
			zap.Int("rating", *rating),
		)
	}

	feedback, err := mw.next.AddFeedback(ctx, queryID, rating, note)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("feedback added")
	return feedback, nil
}

func (mw *loggingMiddleware) RunAction(ctx context.Context, projectID string, typ ActionType, payload ActionPayload) (*Action, error) {
	log := mw.log.With(
		zap.String("action", "run_action"),
		zap.String("project_id", projectID),
		zap.String("type", string(typ)),
	)

	action, err := mw.next.RunAction(ctx, projectID, typ, payload)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("action completed",
		zap.String("action_id", action.ID),
		zap.String("status", string(action.Status)),
	)

	return action, nil
}

func (mw *loggingMiddleware) Metrics(ctx context.Context, projectID string) (*Metrics, error) {
	log := mw.log.With(
		zap.String("action", "metrics"),
	)

	if projectID != "" {
		log = log.With(
			zap.String("project_id", projectID),
		)
	}

	metrics, err := mw.next.Metrics(ctx, projectID)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("metrics collected", zap.Int("queries", metrics.Queries))
	return metrics, nil
}
