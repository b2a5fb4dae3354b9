// Package mcpserver exposes the tool registry over the Model Context
// Protocol on stdio, so MCP hosts can call the same tools Dify does.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/cloudwego/eino/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/54b3r/adbpg-go/internal/tools"
	"github.com/54b3r/adbpg-go/internal/version"
)

// Name is the server name announced during initialization.
const Name = "adbpg"

// paramSource is implemented by every tool in the registry.
type paramSource interface {
	Params() map[string]*schema.ParameterInfo
}

// Server serves a tool registry over MCP.
type Server struct {
	mcp *server.MCPServer
	log *slog.Logger
}

// New registers every tool of reg on a new MCP server.
func New(reg *tools.Registry, log *slog.Logger) (*Server, error) {
	if reg == nil {
		return nil, fmt.Errorf("mcpserver: registry must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	s := server.NewMCPServer(Name, version.Version,
		server.WithToolCapabilities(false),
		server.WithInstructions("Knowledge base management, retrieval and LLM tools backed by AnalyticDB for PostgreSQL."),
	)
	for _, t := range reg.Tools() {
		raw, err := inputSchema(t)
		if err != nil {
			return nil, fmt.Errorf("mcpserver: %s: %w", t.Name(), err)
		}
		s.AddTool(mcp.NewToolWithRawSchema(t.Name(), t.Description(), raw), handler(t, log))
	}
	log.Info("mcpserver: tools registered", slog.Int("count", len(reg.Names())))
	return &Server{mcp: s, log: log}, nil
}

// Serve reads JSON-RPC messages from in and writes replies to out until ctx
// is cancelled or in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.log.Handler(), slog.LevelError))
	s.log.Info("mcpserver: serving on stdio", slog.String("version", version.Version))
	if err := stdio.Listen(ctx, in, out); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcpserver: %w", err)
	}
	return nil
}

// handler calls t with the request arguments. Tool failures are returned as
// error results so the host can show them to the model.
func handler(t tools.Tool, log *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := json.Marshal(req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		res, err := t.Run(ctx, string(args))
		if err != nil {
			log.Warn("mcpserver: tool failed", slog.String("tool", t.Name()), slog.String("error", err.Error()))
			return mcp.NewToolResultError(err.Error()), nil
		}
		out, err := res.Render()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(out), nil
	}
}

// inputSchema renders a tool's parameters as a JSON object schema.
func inputSchema(t tools.Tool) (json.RawMessage, error) {
	props := map[string]any{}
	required := []string{}
	if ps, ok := t.(paramSource); ok {
		for name, p := range ps.Params() {
			prop := map[string]any{"type": string(p.Type)}
			if p.Desc != "" {
				prop["description"] = p.Desc
			}
			if len(p.Enum) > 0 {
				prop["enum"] = p.Enum
			}
			props[name] = prop
			if p.Required {
				required = append(required, name)
			}
		}
	}
	sort.Strings(required)
	return json.Marshal(map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	})
}
