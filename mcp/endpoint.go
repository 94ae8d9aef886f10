package mcp

import (
	"context"
	"encoding/json"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/flarexio/copilot"
)

type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      mcp.RequestId   `json:"id"`
	Method  mcp.MCPMethod   `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

func ErrorResponse(id mcp.RequestId, code int, message string) mcp.JSONRPCError {
	return mcp.JSONRPCError{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      id,
		Error: struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Data    any    `json:"data,omitempty"`
		}{
			Code:    code,
			Message: message,
		},
	}
}

type MCPEndpoint func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage

const MCPSERVER_INSTRUCTIONS string = `Knowledge Copilot answers questions from the documents uploaded to a project.

Available tools:
- ask_documents: answer a question with citations to the matching document chunks
- list_documents: list the documents of a project, newest first
- get_metrics: usage figures of a project (documents, chunks, queries, feedback)

Answers only use the uploaded documents. When a project has no documents the answer says so.`

// NewEndpoints returns the MCP methods served over every MCP transport.
func NewEndpoints(svc copilot.Service) map[mcp.MCPMethod]MCPEndpoint {
	return map[mcp.MCPMethod]MCPEndpoint{
		mcp.MethodInitialize: InitializeEndpoint(svc),
		mcp.MethodPing:       PingEndpoint(svc),
		mcp.MethodToolsList:  ListToolsEndpoint(svc),
		mcp.MethodToolsCall:  CallToolEndpoint(svc),
	}
}

func InitializeEndpoint(svc copilot.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		var params mcp.InitializeParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return ErrorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
		}

		protocolVersion := mcp.LATEST_PROTOCOL_VERSION
		if clientVersion := params.ProtocolVersion; clientVersion != "" {
			if slices.Contains(mcp.ValidProtocolVersions, clientVersion) {
				protocolVersion = clientVersion
			}
		}

		result := &mcp.InitializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities: mcp.ServerCapabilities{
				Tools: &struct {
					ListChanged bool `json:"listChanged,omitempty"`
				}{},
			},
			ServerInfo: mcp.Implementation{
				Name:    "copilot",
				Version: "0.1.0",
			},
			Instructions: MCPSERVER_INSTRUCTIONS,
		}

		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  result,
		}
	}
}

func PingEndpoint(svc copilot.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  struct{}{},
		}
	}
}

func ListToolsEndpoint(svc copilot.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		result := &mcp.ListToolsResult{
			Tools: Tools(),
		}

		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  result,
		}
	}
}

func CallToolEndpoint(svc copilot.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		var params mcp.CallToolParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return ErrorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
		}

		tool, ok := toolHandlers[params.Name]
		if !ok {
			return ErrorResponse(req.ID, mcp.INVALID_PARAMS, "tool not found: "+params.Name)
		}

		args, err := json.Marshal(params.Arguments)
		if err != nil {
			return ErrorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
		}

		result, err := tool(ctx, svc, args)
		if err != nil {
			return ErrorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
		}

		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  result,
		}
	}
}
