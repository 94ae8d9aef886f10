package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/flarexio/copilot"
)

type toolHandler func(ctx context.Context, svc copilot.Service, args json.RawMessage) (*mcp.CallToolResult, error)

var toolHandlers = map[string]toolHandler{
	"ask_documents":  askDocuments,
	"list_documents": listDocuments,
	"get_metrics":    getMetrics,
}

func Tools() []mcp.Tool {
	return []mcp.Tool{
		mcp.NewTool("ask_documents",
			mcp.WithDescription("Answer a question using only the documents uploaded to a project. The answer cites the matching document chunks."),
			mcp.WithString("question",
				mcp.Required(),
				mcp.Description("The question to answer"),
			),
			mcp.WithString("project_id",
				mcp.Description("Project to search, defaults to the session project"),
			),
			mcp.WithNumber("top_k",
				mcp.Description("Number of chunks to retrieve, 1 to 20 (default 5)"),
			),
		),
		mcp.NewTool("list_documents",
			mcp.WithDescription("List the documents of a project, newest first."),
			mcp.WithString("project_id",
				mcp.Description("Project to list, defaults to the session project"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of documents (default 100)"),
			),
		),
		mcp.NewTool("get_metrics",
			mcp.WithDescription("Usage figures of a project: documents, chunks, queries, latency and feedback."),
			mcp.WithString("project_id",
				mcp.Description("Project to report on, defaults to the session project"),
			),
		),
	}
}

func projectID(ctx context.Context, id string) string {
	if id != "" {
		return id
	}

	if id, ok := ctx.Value(copilot.ProjectID).(string); ok && id != "" {
		return id
	}

	return copilot.DefaultProjectID
}

func decodeArguments(args json.RawMessage, v any) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}

	return json.Unmarshal(args, v)
}

type askArguments struct {
	Question  string `json:"question"`
	ProjectID string `json:"project_id"`
	TopK      int    `json:"top_k"`
}

func askDocuments(ctx context.Context, svc copilot.Service, args json.RawMessage) (*mcp.CallToolResult, error) {
	var in askArguments
	if err := decodeArguments(args, &in); err != nil {
		return nil, err
	}

	query, err := svc.Ask(ctx, projectID(ctx, in.ProjectID), in.Question, in.TopK)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	sb.WriteString(query.Answer)

	if len(query.Citations) > 0 {
		sb.WriteString("\n\nSources:")
		for i, c := range query.Citations {
			fmt.Fprintf(&sb, "\n[%d] document %s, chunk %s (score %.4f)", i+1, c.DocumentID, c.ChunkID, c.Score)
		}
	}

	return mcp.NewToolResultText(sb.String()), nil
}

type listArguments struct {
	ProjectID string `json:"project_id"`
	Limit     int    `json:"limit"`
}

func listDocuments(ctx context.Context, svc copilot.Service, args json.RawMessage) (*mcp.CallToolResult, error) {
	var in listArguments
	if err := decodeArguments(args, &in); err != nil {
		return nil, err
	}

	docs, err := svc.ListDocuments(ctx, projectID(ctx, in.ProjectID), in.Limit, 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(docs)
}

type metricsArguments struct {
	ProjectID string `json:"project_id"`
}

func getMetrics(ctx context.Context, svc copilot.Service, args json.RawMessage) (*mcp.CallToolResult, error) {
	var in metricsArguments
	if err := decodeArguments(args, &in); err != nil {
		return nil, err
	}

	metrics, err := svc.Metrics(ctx, projectID(ctx, in.ProjectID))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(metrics)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}

	return mcp.NewToolResultText(string(data)), nil
}
