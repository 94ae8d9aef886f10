package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/kit/endpoint"

	"github.com/flarexio/copilot"
)

// StatusCode maps a service error to its HTTP status.
func StatusCode(err error) int {
	var llmErr *copilot.LLMError

	switch {
	case errors.Is(err, copilot.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, copilot.ErrDocumentNotFound),
		errors.Is(err, copilot.ErrQueryNotFound):
		return http.StatusNotFound
	case errors.As(err, &llmErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, status int, err error) {
	c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"detail": err.Error()})
}

func HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func ChangelogHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version": Version,
		"status":  "implemented",
	})
}

// UploadDocumentHandler accepts a multipart form with project_id and either
// a file or source_text.
func UploadDocumentHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := copilot.UploadDocumentRequest{
			ProjectID:  c.DefaultPostForm("project_id", copilot.DefaultProjectID),
			SourceText: c.PostForm("source_text"),
		}

		header, err := c.FormFile("file")
		switch {
		case err == nil:
			f, err := header.Open()
			if err != nil {
				fail(c, http.StatusBadRequest, err)
				return
			}
			defer f.Close()

			content, err := io.ReadAll(f)
			if err != nil {
				fail(c, http.StatusBadRequest, err)
				return
			}

			req.File = &copilot.UploadFile{
				Filename: header.Filename,
				Content:  content,
			}

		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):

		default:
			fail(c, http.StatusBadRequest, err)
			return
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			fail(c, StatusCode(err), err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func ListDocumentsHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req copilot.ListDocumentsRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			fail(c, StatusCode(err), err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func GetDocumentHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		resp, err := endpoint(ctx, c.Param("id"))
		if err != nil {
			fail(c, StatusCode(err), err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func AskHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req copilot.AskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			fail(c, StatusCode(err), err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func GetQueryHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		resp, err := endpoint(ctx, c.Param("id"))
		if err != nil {
			fail(c, StatusCode(err), err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func AddFeedbackHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req copilot.AddFeedbackRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}

		ctx := c.Request.Context()
		if _, err := endpoint(ctx, req); err != nil {
			fail(c, StatusCode(err), err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func RunActionHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req copilot.RunActionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			fail(c, StatusCode(err), err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func MetricsHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		resp, err := endpoint(ctx, c.Query("project_id"))
		if err != nil {
			fail(c, StatusCode(err), err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}
