package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/nats-io/nats.go"
	"github.com/urfave/cli/v3"

	"github.com/flarexio/copilot"

	mcpE "github.com/flarexio/copilot/mcp"
	natsT "github.com/flarexio/copilot/transport/nats"
)

type StdioMCPServer interface {
	AddEndpoint(method mcp.MCPMethod, endpoint mcpE.MCPEndpoint) error
	Listen(ctx context.Context) error
}

func NewStdioMCPServer(in io.Reader, out io.Writer) StdioMCPServer {
	return &stdioMCPServer{
		in:        in,
		out:       out,
		endpoints: make(map[mcp.MCPMethod]mcpE.MCPEndpoint),
	}
}

type stdioMCPServer struct {
	in        io.Reader
	out       io.Writer
	endpoints map[mcp.MCPMethod]mcpE.MCPEndpoint
}

func (s *stdioMCPServer) handle(ctx context.Context, line string) ([]byte, bool) {
	if line == "" {
		return nil, false
	}

	var req mcpE.JSONRPCRequest
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		resp := mcpE.ErrorResponse(mcp.NewRequestId(nil), mcp.PARSE_ERROR, err.Error())
		bs, err := json.Marshal(resp)
		return bs, err == nil
	}

	// notifications expect no reply
	if req.ID.IsNil() {
		return nil, false
	}

	var resp mcp.JSONRPCMessage

	endpoint, ok := s.endpoints[req.Method]
	if ok {
		resp = endpoint(ctx, req)
	} else {
		resp = mcpE.ErrorResponse(req.ID, mcp.METHOD_NOT_FOUND, "method not found")
	}

	bs, err := json.Marshal(resp)
	if err != nil {
		return nil, false
	}

	return bs, true
}

func (s *stdioMCPServer) Listen(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lines := make(chan string)
	errs := make(chan error, 1)

	go func(ctx context.Context, lines chan<- string, errs chan<- error) {
		defer close(lines)

		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil {
			errs <- err
		}
	}(ctx, lines, errs)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-errs:
			if errors.Is(err, io.EOF) {
				return nil
			}

			return err

		case line, ok := <-lines:
			if !ok {
				return nil
			}

			bs, ok := s.handle(ctx, line)
			if !ok {
				continue
			}

			fmt.Fprintf(s.out, "%s\n", bs)
		}
	}
}

func (s *stdioMCPServer) AddEndpoint(method mcp.MCPMethod, endpoint mcpE.MCPEndpoint) error {
	_, ok := s.endpoints[method]
	if ok {
		return errors.New("endpoint already exists")
	}

	s.endpoints[method] = endpoint
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "copilot_mcp_server",
		Usage: "Knowledge Copilot MCP Server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "nats",
				Usage:   "NATS server URL",
				Value:   nats.DefaultURL,
				Sources: cli.EnvVars("NATS_URL"),
			},
			&cli.StringFlag{
				Name:    "nats-creds",
				Usage:   "NATS user credentials file",
				Sources: cli.EnvVars("NATS_CREDS"),
			},
			&cli.StringFlag{
				Name:  "edge-id",
				Usage: "Edge ID of the Copilot service. If not specified, uses the shared copilot topic",
			},
			&cli.StringFlag{
				Name:    "project",
				Usage:   "Project used when a tool call names none",
				Value:   copilot.DefaultProjectID,
				Sources: cli.EnvVars("COPILOT_PROJECT_ID"),
			},
		},
		Action: run,
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		log.Fatal(err.Error())
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	topic := "copilot"
	if edgeID := cmd.String("edge-id"); edgeID != "" {
		topic = fmt.Sprintf("edges.%s.copilot", edgeID)
	}

	opts := []nats.Option{
		nats.Name("Copilot MCP Server - " + topic),
	}

	if creds := cmd.String("nats-creds"); creds != "" {
		opts = append(opts, nats.UserCredentials(creds))
	}

	nc, err := nats.Connect(cmd.String("nats"), opts...)
	if err != nil {
		return err
	}
	defer nc.Drain()

	endpoints := natsT.MakeEndpoints(nc, topic)

	var svc copilot.Service
	svc = copilot.ProxyMiddleware(endpoints)(svc)

	ctx = context.WithValue(ctx, copilot.ProjectID, cmd.String("project"))

	s := NewStdioMCPServer(os.Stdin, os.Stdout)
	for method, endpoint := range mcpE.NewEndpoints(svc) {
		if err := s.AddEndpoint(method, endpoint); err != nil {
			return err
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- s.Listen(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	select {
	case <-quit:
		cancel()
		return nil

	case err := <-done:
		return err
	}
}
