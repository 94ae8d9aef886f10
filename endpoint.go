package copilot

import (
	"context"
	"errors"

	"github.com/go-kit/kit/endpoint"
)

type EndpointSet struct {
	UploadDocument endpoint.Endpoint
	ListDocuments  endpoint.Endpoint
	GetDocument    endpoint.Endpoint
	Ask            endpoint.Endpoint
	GetQuery       endpoint.Endpoint
	AddFeedback    endpoint.Endpoint
	RunAction      endpoint.Endpoint
	Metrics        endpoint.Endpoint
}

func NewEndpointSet(svc Service) *EndpointSet {
	return &EndpointSet{
		UploadDocument: UploadDocumentEndpoint(svc),
		ListDocuments:  ListDocumentsEndpoint(svc),
		GetDocument:    GetDocumentEndpoint(svc),
		Ask:            AskEndpoint(svc),
		GetQuery:       GetQueryEndpoint(svc),
		AddFeedback:    AddFeedbackEndpoint(svc),
		RunAction:      RunActionEndpoint(svc),
		Metrics:        MetricsEndpoint(svc),
	}
}

type UploadDocumentRequest = UploadRequest

func UploadDocumentEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(UploadDocumentRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.UploadDocument(ctx, req)
	}
}

type ListDocumentsRequest struct {
	ProjectID string `json:"project_id" form:"project_id"`
	Limit     int    `json:"limit,omitempty" form:"limit"`
	Offset    int    `json:"offset,omitempty" form:"offset"`
}

func ListDocumentsEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(ListDocumentsRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.ListDocuments(ctx, req.ProjectID, req.Limit, req.Offset)
	}
}

func GetDocumentEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		id, ok := request.(string)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.GetDocument(ctx, id)
	}
}

type AskRequest struct {
	ProjectID string `json:"project_id"`
	Question  string `json:"question"`
	TopK      int    `json:"top_k,omitempty"`
}

func AskEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(AskRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.Ask(ctx, req.ProjectID, req.Question, req.TopK)
	}
}

func GetQueryEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		id, ok := request.(string)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.GetQuery(ctx, id)
	}
}

type AddFeedbackRequest struct {
	QueryID string `json:"query_id"`
	Rating  *int   `json:"rating,omitempty"`
	Note    string `json:"note,omitempty"`
}

func AddFeedbackEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(AddFeedbackRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.AddFeedback(ctx, req.QueryID, req.Rating, req.Note)
	}
}

type RunActionRequest struct {
	ProjectID string        `json:"project_id"`
	Type      ActionType    `json:"type"`
	Payload   ActionPayload `json:"payload"`
}

func RunActionEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(RunActionRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.RunAction(ctx, req.ProjectID, req.Type, req.Payload)
	}
}

func MetricsEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		projectID, ok := request.(string)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.Metrics(ctx, projectID)
	}
}
