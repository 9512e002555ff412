// Package mcpserver serves a toolbox over the Model Context Protocol, so the
// gateway can be driven by an MCP client over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/germanamz/tradfri/pkg/tools/toolbox"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger logs every tool call to log.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithInstructions sets the usage hint sent to clients on initialization.
func WithInstructions(text string) Option {
	return func(s *Server) { s.instructions = text }
}

// Server exposes the tools of a ToolBox to MCP clients.
type Server struct {
	impl         *mcp.Implementation
	instructions string
	log          *slog.Logger
	server       *mcp.Server
}

// New creates a Server announcing itself with name and version.
func New(name, version string, opts ...Option) *Server {
	s := &Server{impl: &mcp.Implementation{Name: name, Version: version}}
	for _, opt := range opts {
		opt(s)
	}

	if s.log == nil {
		s.log = slog.New(slog.DiscardHandler)
	}

	s.server = mcp.NewServer(s.impl, &mcp.ServerOptions{Instructions: s.instructions})

	return s
}

// Register publishes every tool of tb. It returns the number of tools added.
func (s *Server) Register(tb *toolbox.ToolBox) int {
	tools := tb.Tools()
	for _, t := range tools {
		s.server.AddTool(&mcp.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		}, s.call(t))
	}

	s.log.Debug("mcp tools registered", "server", s.impl.Name, "count", len(tools))

	return len(tools)
}

// Serve reads requests from in and writes responses to out until ctx is
// cancelled or the transport closes.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	return s.serve(ctx, &mcp.IOTransport{
		Reader: io.NopCloser(in),
		Writer: nopWriteCloser{out},
	})
}

func (s *Server) serve(ctx context.Context, transport mcp.Transport) error {
	return s.server.Run(ctx, transport)
}

// call adapts t to the SDK. A failing tool is reported as an error result,
// so the client sees the gateway's message instead of a protocol error.
func (s *Server) call(t toolbox.Tool) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.Params.Arguments
		if args == nil {
			args = json.RawMessage("{}")
		}

		start := time.Now()
		result, err := t.Handler(ctx, args)
		elapsed := time.Since(start)

		if err != nil {
			s.log.WarnContext(ctx, "tool call failed", "tool", t.Name, "elapsed", elapsed, "error", err)
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
				IsError: true,
			}, nil
		}

		s.log.InfoContext(ctx, "tool call", "tool", t.Name, "elapsed", elapsed)

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: result}},
		}, nil
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
