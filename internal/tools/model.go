package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/adbpg-go/internal/adbpg"
)

// TextEmbeddingTool embeds a JSON array of texts.
type TextEmbeddingTool struct {
	meta
	client Client
	log    *slog.Logger
}

type textEmbeddingInput struct {
	Input          string `mapstructure:"input"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	Dimension      *int   `mapstructure:"dimension"`
}

// NewTextEmbeddingTool constructs a TextEmbeddingTool.
func NewTextEmbeddingTool(client Client, log *slog.Logger) *TextEmbeddingTool {
	return &TextEmbeddingTool{
		meta: meta{
			name: "text_embedding",
			desc: "Embeds texts with an AnalyticDB embedding model.",
			params: map[string]*schema.ParameterInfo{
				"input":           strReq(`JSON array of texts, e.g. ["hello", "world"].`),
				"embedding_model": str("Embedding model, e.g. text-embedding-v4."),
				"dimension":       integer("Vector dimension for models that support several."),
			},
		},
		client: client,
		log:    log,
	}
}

// Run embeds the texts.
func (t *TextEmbeddingTool) Run(ctx context.Context, argumentsInJSON string) (*Result, error) {
	var in textEmbeddingInput
	if err := decodeArgs(t.name, argumentsInJSON, &in); err != nil {
		return nil, err
	}
	if err := require(t.name, "input", in.Input); err != nil {
		return nil, err
	}
	t.log.Info("tools: text_embedding invoked", slog.String("model", in.EmbeddingModel))

	resp, err := t.client.TextEmbeddingJSON(ctx, in.Input, in.EmbeddingModel, in.Dimension)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.name, err)
	}
	return responseResult(resp), nil
}

// InvokableRun implements tool.InvokableTool.
func (t *TextEmbeddingTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	return invoke(ctx, t, argumentsInJSON)
}

// RerankTool scores documents against a query.
type RerankTool struct {
	meta
	client Client
	log    *slog.Logger
}

type rerankInput struct {
	Query           string `mapstructure:"query"`
	Documents       string `mapstructure:"documents"`
	RerankModel     string `mapstructure:"rerank_model"`
	TopK            *int   `mapstructure:"topk"`
	ReturnDocuments *bool  `mapstructure:"return_documents"`
	MaxChunksPerDoc *int   `mapstructure:"max_chunks_per_doc"`
}

// NewRerankTool constructs a RerankTool.
func NewRerankTool(client Client, log *slog.Logger) *RerankTool {
	return &RerankTool{
		meta: meta{
			name: "rerank",
			desc: "Reranks documents by relevance to a query with an AnalyticDB rerank model.",
			params: map[string]*schema.ParameterInfo{
				"query":              strReq("Query text."),
				"documents":          strReq(`JSON array of document texts.`),
				"rerank_model":       str("Rerank model, e.g. gte-rerank-v2."),
				"topk":               integer("Number of results to return."),
				"return_documents":   boolean("Include document text in the results."),
				"max_chunks_per_doc": integer("Maximum chunks a long document is split into."),
			},
		},
		client: client,
		log:    log,
	}
}

// Run reranks the documents.
func (t *RerankTool) Run(ctx context.Context, argumentsInJSON string) (*Result, error) {
	var in rerankInput
	if err := decodeArgs(t.name, argumentsInJSON, &in); err != nil {
		return nil, err
	}
	if err := require(t.name, "query", in.Query, "documents", in.Documents); err != nil {
		return nil, err
	}
	t.log.Info("tools: rerank invoked", slog.String("model", in.RerankModel))

	resp, err := t.client.RerankJSON(ctx, adbpg.RerankOptions{
		Query:           in.Query,
		Model:           in.RerankModel,
		TopK:            in.TopK,
		ReturnDocuments: in.ReturnDocuments,
		MaxChunksPerDoc: in.MaxChunksPerDoc,
	}, in.Documents)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.name, err)
	}
	return responseResult(resp), nil
}

// InvokableRun implements tool.InvokableTool.
func (t *RerankTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	return invoke(ctx, t, argumentsInJSON)
}
