package copilot

import (
	"context"
	"errors"
)

// ProxyMiddleware serves the Service through remote endpoints. The wrapped
// service is ignored.
func ProxyMiddleware(endpoints *EndpointSet) ServiceMiddleware {
	return func(next Service) Service {
		return &proxyMiddleware{
			endpoints: endpoints,
		}
	}
}

type proxyMiddleware struct {
	endpoints *EndpointSet
}

var errInvalidResponse = errors.New("invalid response type")

func (mw *proxyMiddleware) Close() error {
	return errors.New("method not implemented")
}

func (mw *proxyMiddleware) UploadDocument(ctx context.Context, req UploadRequest) (*Document, error) {
	resp, err := mw.endpoints.UploadDocument(ctx, req)
	if err != nil {
		return nil, err
	}

	doc, ok := resp.(*Document)
	if !ok {
		return nil, errInvalidResponse
	}

	return doc, nil
}

func (mw *proxyMiddleware) ListDocuments(ctx context.Context, projectID string, limit int, offset int) ([]Document, error) {
	req := ListDocumentsRequest{
		ProjectID: projectID,
		Limit:     limit,
		Offset:    offset,
	}

	resp, err := mw.endpoints.ListDocuments(ctx, req)
	if err != nil {
		return nil, err
	}

	docs, ok := resp.([]Document)
	if !ok {
		return nil, errInvalidResponse
	}

	return docs, nil
}

func (mw *proxyMiddleware) GetDocument(ctx context.Context, id string) (*DocumentDetail, error) {
	resp, err := mw.endpoints.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	detail, ok := resp.(*DocumentDetail)
	if !ok {
		return nil, errInvalidResponse
	}

	return detail, nil
}

func (mw *proxyMiddleware) Ask(ctx context.Context, projectID string, question string, topK int) (*Query, error) {
	req := AskRequest{
		ProjectID: projectID,
		Question:  question,
		TopK:      topK,
	}

	resp, err := mw.endpoints.Ask(ctx, req)
	if err != nil {
		return nil, err
	}

	query, ok := resp.(*Query)
	if !ok {
		return nil, errInvalidResponse
	}

	return query, nil
}

func (mw *proxyMiddleware) GetQuery(ctx context.Context, id string) (*Query, error) {
	resp, err := mw.endpoints.GetQuery(ctx, id)
	if err != nil {
		return nil, err
	}

	query, ok := resp.(*Query)
	if !ok {
		return nil, errInvalidResponse
	}

	return query, nil
}

func (mw *proxyMiddleware) AddFeedback(ctx context.Context, queryID string, rating *int, note string) (*Feedback, error) {
	req := AddFeedbackRequest{
		QueryID: queryID,
		Rating:  rating,
		Note:    note,
	}

	resp, err := mw.endpoints.AddFeedback(ctx, req)
	if err != nil {
		return nil, err
	}

	feedback, ok := resp.(*Feedback)
	if !ok {
		return nil, errInvalidResponse
	}

	return feedback, nil
}

func (mw *proxyMiddleware) RunAction(ctx context.Context, projectID string, typ ActionType, payload ActionPayload) (*Action, error) {
	req := RunActionRequest{
		ProjectID: projectID,
		Type:      typ,
		Payload:   payload,
	}

	resp, err := mw.endpoints.RunAction(ctx, req)
	if err != nil {
		return nil, err
	}

	action, ok := resp.(*Action)
	if !ok {
		return nil, errInvalidResponse
	}

	return action, nil
}

func (mw *proxyMiddleware) Metrics(ctx context.Context, projectID string) (*Metrics, error) {
	resp, err := mw.endpoints.Metrics(ctx, projectID)
	if err != nil {
		return nil, err
	}

	metrics, ok := resp.(*Metrics)
	if !ok {
		return nil, errInvalidResponse
	}

	return metrics, nil
}
