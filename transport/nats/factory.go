package nats

import (
	"github.com/nats-io/nats.go/micro"

	"github.com/flarexio/copilot"
)

func AddEndpoints(group micro.Group, endpoints *copilot.EndpointSet) error {
	handlers := []struct {
		name    string
		handler micro.HandlerFunc
	}{
		{"upload_document", UploadDocumentHandler(endpoints.UploadDocument)},
		{"list_documents", ListDocumentsHandler(endpoints.ListDocuments)},
		{"get_document", IDHandler(endpoints.GetDocument, true)},
		{"ask", AskHandler(endpoints.Ask)},
		{"get_query", IDHandler(endpoints.GetQuery, true)},
		{"add_feedback", AddFeedbackHandler(endpoints.AddFeedback)},
		{"run_action", RunActionHandler(endpoints.RunAction)},
		{"metrics", IDHandler(endpoints.Metrics, false)},
	}

	for _, h := range handlers {
		if err := group.AddEndpoint(h.name, h.handler); err != nil {
			return err
		}
	}

	return nil
}
