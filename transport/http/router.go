package http

import (
	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/flarexio/copilot"

	mcpE "github.com/flarexio/copilot/mcp"
)

const Version = "0.1.0"

func AddRouters(r *gin.Engine, endpoints *copilot.EndpointSet) {
	api := r.Group("/api/v1")
	{
		api.GET("/health", HealthHandler)
		api.GET("/changelog", ChangelogHandler)

		api.POST("/documents", UploadDocumentHandler(endpoints.UploadDocument))
		api.GET("/documents", ListDocumentsHandler(endpoints.ListDocuments))
		api.GET("/documents/:id", GetDocumentHandler(endpoints.GetDocument))

		api.POST("/queries", AskHandler(endpoints.Ask))
		api.GET("/queries/:id", GetQueryHandler(endpoints.GetQuery))

		api.POST("/evals", AddFeedbackHandler(endpoints.AddFeedback))
		api.POST("/agent/actions", RunActionHandler(endpoints.RunAction))
		api.GET("/metrics", MetricsHandler(endpoints.Metrics))
	}
}

func AddStreamableRouters(r *gin.Engine, endpoints map[mcp.MCPMethod]mcpE.MCPEndpoint) {
	mcp := r.Group("/mcp")
	{
		mcp.POST("/", MCPStreamableHandler(endpoints))
	}
}
