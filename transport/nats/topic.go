package nats

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-kit/kit/endpoint"
	"github.com/nats-io/nats.go/micro"

	"github.com/flarexio/copilot"
)

// ErrorCode maps a service error to the status code carried in the
// micro error header.
func ErrorCode(err error) string {
	var llmErr *copilot.LLMError

	switch {
	case errors.Is(err, copilot.ErrInvalidArgument):
		return "400"
	case errors.Is(err, copilot.ErrDocumentNotFound),
		errors.Is(err, copilot.ErrQueryNotFound):
		return "404"
	case errors.As(err, &llmErr):
		return "502"
	default:
		return "500"
	}
}

func fail(r micro.Request, err error) {
	r.Error(ErrorCode(err), err.Error(), nil)
}

func UploadDocumentHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		var req copilot.UploadDocumentRequest
		if err := json.Unmarshal(r.Data(), &req); err != nil {
			r.Error("400", err.Error(), nil)
			return
		}

		ctx := context.Background()
		resp, err := endpoint(ctx, req)
		if err != nil {
			fail(r, err)
			return
		}

		r.RespondJSON(&resp)
	}
}

func ListDocumentsHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		var req copilot.ListDocumentsRequest
		if len(r.Data()) > 0 {
			if err := json.Unmarshal(r.Data(), &req); err != nil {
				r.Error("400", err.Error(), nil)
				return
			}
		}

		ctx := context.Background()
		resp, err := endpoint(ctx, req)
		if err != nil {
			fail(r, err)
			return
		}

		r.RespondJSON(&resp)
	}
}

// IDHandler serves endpoints whose request is a bare identifier in the
// message body.
func IDHandler(endpoint endpoint.Endpoint, required bool) micro.HandlerFunc {
	return func(r micro.Request) {
		id := string(r.Data())
		if required && id == "" {
			r.Error("400", "id is required", nil)
			return
		}

		ctx := context.Background()
		resp, err := endpoint(ctx, id)
		if err != nil {
			fail(r, err)
			return
		}

		r.RespondJSON(&resp)
	}
}

func AskHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		var req copilot.AskRequest
		if err := json.Unmarshal(r.Data(), &req); err != nil {
			r.Error("400", err.Error(), nil)
			return
		}

		ctx := context.Background()
		resp, err := endpoint(ctx, req)
		if err != nil {
			fail(r, err)
			return
		}

		r.RespondJSON(&resp)
	}
}

func AddFeedbackHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		var req copilot.AddFeedbackRequest
		if err := json.Unmarshal(r.Data(), &req); err != nil {
			r.Error("400", err.Error(), nil)
			return
		}

		ctx := context.Background()
		resp, err := endpoint(ctx, req)
		if err != nil {
			fail(r, err)
			return
		}

		r.RespondJSON(&resp)
	}
}

func RunActionHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		var req copilot.RunActionRequest
		if err := json.Unmarshal(r.Data(), &req); err != nil {
			r.Error("400", err.Error(), nil)
			return
		}

		ctx := context.Background()
		resp, err := endpoint(ctx, req)
		if err != nil {
			fail(r, err)
			return
		}

		r.RespondJSON(&resp)
	}
}
