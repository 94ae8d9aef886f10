package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"

	mcpE "github.com/flarexio/copilot/mcp"
)

func TestStdioMCPServer(t *testing.T) {
	assert := assert.New(t)

	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"ping"}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`{"jsonrpc":"2.0","id":2,"method":"resources/list"}`,
	}, "\n")

	var out bytes.Buffer

	s := NewStdioMCPServer(strings.NewReader(in), &out)
	if err := s.AddEndpoint(mcp.MethodPing, mcpE.PingEndpoint(nil)); err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Error(s.AddEndpoint(mcp.MethodPing, mcpE.PingEndpoint(nil)))

	err := s.Listen(context.Background())
	assert.NoError(err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if !assert.Len(lines, 2) {
		return
	}

	var pong map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &pong); err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal(float64(1), pong["id"])
	assert.Contains(pong, "result")

	var notFound map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &notFound); err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal(float64(2), notFound["id"])

	errObj, ok := notFound["error"].(map[string]any)
	if assert.True(ok) {
		assert.Equal(float64(mcp.METHOD_NOT_FOUND), errObj["code"])
	}
}
