package nats

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"

	"github.com/flarexio/copilot"
)

// RequestTimeout bounds a single request. Answer generation against a
// remote provider is slower than nats.DefaultTimeout.
var RequestTimeout = 30 * time.Second

func MakeEndpoints(nc *nats.Conn, prefix string) *copilot.EndpointSet {
	return &copilot.EndpointSet{
		UploadDocument: UploadDocumentEndpoint(nc, prefix+".upload_document"),
		ListDocuments:  ListDocumentsEndpoint(nc, prefix+".list_documents"),
		GetDocument:    GetDocumentEndpoint(nc, prefix+".get_document"),
		Ask:            AskEndpoint(nc, prefix+".ask"),
		GetQuery:       GetQueryEndpoint(nc, prefix+".get_query"),
		AddFeedback:    AddFeedbackEndpoint(nc, prefix+".add_feedback"),
		RunAction:      RunActionEndpoint(nc, prefix+".run_action"),
		Metrics:        MetricsEndpoint(nc, prefix+".metrics"),
	}
}

func requestJSON[T any](ctx context.Context, nc *nats.Conn, topic string, data []byte) (*T, error) {
	timeout := RequestTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	resp, err := nc.Request(topic, data, timeout)
	if err != nil {
		return nil, err
	}

	if err := Error(resp); err != nil {
		return nil, err
	}

	var result T
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

func UploadDocumentEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(copilot.UploadDocumentRequest)
		if !ok {
			return nil, errors.New("invalid request")
		}

		data, err := json.Marshal(&req)
		if err != nil {
			return nil, err
		}

		return requestJSON[copilot.Document](ctx, nc, topic, data)
	}
}

func ListDocumentsEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(copilot.ListDocumentsRequest)
		if !ok {
			return nil, errors.New("invalid request")
		}

		data, err := json.Marshal(&req)
		if err != nil {
			return nil, err
		}

		docs, err := requestJSON[[]copilot.Document](ctx, nc, topic, data)
		if err != nil {
			return nil, err
		}

		return *docs, nil
	}
}

func GetDocumentEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		id, ok := request.(string)
		if !ok {
			return nil, errors.New("invalid request")
		}

		return requestJSON[copilot.DocumentDetail](ctx, nc, topic, []byte(id))
	}
}

func AskEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(copilot.AskRequest)
		if !ok {
			return nil, errors.New("invalid request")
		}

		data, err := json.Marshal(&req)
		if err != nil {
			return nil, err
		}

		return requestJSON[copilot.Query](ctx, nc, topic, data)
	}
}

func GetQueryEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		id, ok := request.(string)
		if !ok {
			return nil, errors.New("invalid request")
		}

		return requestJSON[copilot.Query](ctx, nc, topic, []byte(id))
	}
}

func AddFeedbackEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(copilot.AddFeedbackRequest)
		if !ok {
			return nil, errors.New("invalid request")
		}

		data, err := json.Marshal(&req)
		if err != nil {
			return nil, err
		}

		return requestJSON[copilot.Feedback](ctx, nc, topic, data)
	}
}

func RunActionEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(copilot.RunActionRequest)
		if !ok {
			return nil, errors.New("invalid request")
		}

		data, err := json.Marshal(&req)
		if err != nil {
			return nil, err
		}

		return requestJSON[copilot.Action](ctx, nc, topic, data)
	}
}

func MetricsEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		projectID, ok := request.(string)
		if !ok {
			return nil, errors.New("invalid request")
		}

		return requestJSON[copilot.Metrics](ctx, nc, topic, []byte(projectID))
	}
}

// RemoteError is an error reported by the remote service. It unwraps to
// the matching local sentinel.
type RemoteError struct {
	Code        string
	Description string
	cause       error
}

func (e *RemoteError) Error() string {
	return e.Description
}

func (e *RemoteError) Unwrap() error {
	return e.cause
}

func Error(msg *nats.Msg) error {
	if msg == nil {
		return errors.New("nil message")
	}

	code := msg.Header.Get(micro.ErrorCodeHeader)
	if code == "" {
		return nil
	}

	description := msg.Header.Get(micro.ErrorHeader)
	if description == "" {
		description = "unknown error"
	}

	err := &RemoteError{
		Code:        code,
		Description: description,
	}

	switch code {
	case "400":
		err.cause = copilot.ErrInvalidArgument
	case "404":
		if strings.Contains(description, copilot.ErrQueryNotFound.Error()) {
			err.cause = copilot.ErrQueryNotFound
		} else {
			err.cause = copilot.ErrDocumentNotFound
		}
	case "502":
		err.cause = &copilot.LLMError{
			Err: errors.New(strings.TrimPrefix(description, "llm: ")),
		}
	}

	return err
}
