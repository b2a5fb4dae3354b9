// Package tools adapts the service's operations to eino tools. Each tool
// decodes host arguments, normalizes blank values to absent, calls the
// service through the facade and returns the response as JSON. The same
// tools back the MCP server, the HTTP tool endpoint and the CLI.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/tool"

	"github.com/54b3r/adbpg-go/internal/adbpg"
	"github.com/54b3r/adbpg-go/internal/files"
	"github.com/54b3r/adbpg-go/internal/ingestion"
)

// Tool is the contract every adapter satisfies. Run returns the structured
// result; InvokableRun renders it for eino callers.
type Tool interface {
	tool.InvokableTool

	// Name returns the unique tool name.
	Name() string

	// Description returns the host-facing description of what the tool does.
	Description() string

	// Run decodes argumentsInJSON and executes the tool.
	Run(ctx context.Context, argumentsInJSON string) (*Result, error)
}

// Result is what a tool produced. Variables are named outputs for the host;
// JSON is the full response; Text is a plain-text rendering.
type Result struct {
	Variables map[string]any `json:"variables,omitempty"`
	JSON      any            `json:"json,omitempty"`
	Text      string         `json:"text,omitempty"`
}

// Render returns JSON marshalled, or Text when there is no JSON payload.
func (r *Result) Render() (string, error) {
	if r == nil {
		return "", nil
	}
	if r.JSON == nil {
		return r.Text, nil
	}
	b, err := json.Marshal(r.JSON)
	if err != nil {
		return "", fmt.Errorf("tools: render result: %w", err)
	}
	return string(b), nil
}

// responseResult exposes every top-level response key as a variable and the
// whole body as JSON.
func responseResult(resp *adbpg.Response) *Result {
	body := resp.Map()
	vars := make(map[string]any, len(body))
	for k, v := range body {
		vars[k] = v
	}
	return &Result{Variables: vars, JSON: body}
}

// Client is the part of *adbpg.Client the tools call.
type Client interface {
	ingestion.Client

	ListDocumentCollections(ctx context.Context) (*adbpg.Response, error)
	DeleteDocument(ctx context.Context, collection, fileName string) (*adbpg.Response, error)
	QueryContentText(ctx context.Context, opts adbpg.TextQueryOptions) (*adbpg.Response, error)
	QueryContentImage(ctx context.Context, opts adbpg.ImageQueryOptions) (*adbpg.Response, error)
	QueryContentImageFile(ctx context.Context, opts adbpg.ImageQueryOptions, path string) (*adbpg.Response, error)
	UpsertChunks(ctx context.Context, opts adbpg.UpsertOptions) (*adbpg.Response, error)
	TextEmbeddingJSON(ctx context.Context, input, model string, dimension *int) (*adbpg.Response, error)
	RerankJSON(ctx context.Context, opts adbpg.RerankOptions, documents string) (*adbpg.Response, error)
	ChatWithKnowledgeBaseStream(ctx context.Context, opts adbpg.KnowledgeChatOptions) (*adbpg.ChatStream, error)
}

// Deps are the collaborators shared by the tool set.
type Deps struct {
	// Client issues every service call. Required.
	Client Client

	// Resolver turns file locators into local paths or URLs. Defaults to
	// files.NewResolver.
	Resolver *files.Resolver

	// Ingest configures job polling and the job ledger.
	Ingest *ingestion.Config

	Log *slog.Logger
}
