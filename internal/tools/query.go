package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/adbpg-go/internal/adbpg"
	"github.com/54b3r/adbpg-go/internal/files"
	"github.com/54b3r/adbpg-go/internal/ingestion"
)

// recallParams are the retrieval options shared by text and image queries.
func recallParams() map[string]*schema.ParameterInfo {
	return map[string]*schema.ParameterInfo{
		"knowledgebase":           strReq("Name of the document collection."),
		"top_k":                   integer("Number of matches to return."),
		"rerank_factor":           number("Rerank oversampling factor, 1 < factor <= 5."),
		"filter":                  str("SQL WHERE clause over metadata, e.g. page > 1."),
		"recall_window":           str(`Neighbouring chunks to add around each match, "before,after", e.g. "-5,5".`),
		"metrics":                 str("Vector distance metric: l2, ip or cosine."),
		"include_vector":          boolean("Return each match's vector."),
		"include_metadata_fields": str("Comma-separated metadata fields to return."),
		"include_file_url":        boolean("Return a signed URL of each match's source file."),
		"url_expiration":          integer("Lifetime of returned file URLs, in seconds."),
	}
}

// RecallArgs are the decoded retrieval arguments of text and image queries.
type RecallArgs struct {
	Knowledgebase         string   `mapstructure:"knowledgebase"`
	TopK                  *int     `mapstructure:"top_k"`
	RerankFactor          *float64 `mapstructure:"rerank_factor"`
	Filter                string   `mapstructure:"filter"`
	RecallWindow          string   `mapstructure:"recall_window"`
	Metrics               string   `mapstructure:"metrics"`
	IncludeVector         *bool    `mapstructure:"include_vector"`
	IncludeMetadataFields string   `mapstructure:"include_metadata_fields"`
	IncludeFileURL        *bool    `mapstructure:"include_file_url"`
	URLExpiration         *int     `mapstructure:"url_expiration"`
}

// QueryContentTextTool runs a text retrieval against a knowledge base.
type QueryContentTextTool struct {
	meta
	client Client
	log    *slog.Logger
}

type queryContentTextInput struct {
	RecallArgs `mapstructure:",squash"`

	Query                string   `mapstructure:"query"`
	UseFullTextRetrieval *bool    `mapstructure:"use_full_text_retrieval"`
	GraphEnhance         *bool    `mapstructure:"graph_enhance"`
	HybridSearch         string   `mapstructure:"hybrid_search"`
	HybridSearchK        *int     `mapstructure:"hybrid_search_k"`
	HybridSearchAlpha    *float64 `mapstructure:"hybrid_search_alpha"`
}

// NewQueryContentTextTool constructs a QueryContentTextTool.
func NewQueryContentTextTool(client Client, log *slog.Logger) *QueryContentTextTool {
	params := recallParams()
	params["query"] = strReq("Query text.")
	params["use_full_text_retrieval"] = boolean("Combine full text retrieval with vector retrieval.")
	params["graph_enhance"] = boolean("Add knowledge graph results.")
	params["hybrid_search"] = str("Hybrid ranking: RRF, Weight or Cascaded.")
	params["hybrid_search_k"] = integer("k of RRF ranking.")
	params["hybrid_search_alpha"] = number("Vector weight of Weight ranking, 0 to 1.")
	return &QueryContentTextTool{
		meta: meta{
			name:   "query_content_text",
			desc:   "Retrieves the chunks of a knowledge base most relevant to a text query.",
			params: params,
		},
		client: client,
		log:    log,
	}
}

// Run queries the collection.
func (t *QueryContentTextTool) Run(ctx context.Context, argumentsInJSON string) (*Result, error) {
	var in queryContentTextInput
	if err := decodeArgs(t.name, argumentsInJSON, &in); err != nil {
		return nil, err
	}
	if err := require(t.name, "knowledgebase", in.Knowledgebase, "query", in.Query); err != nil {
		return nil, err
	}
	t.log.Info("tools: query_content_text invoked", slog.String("knowledgebase", in.Knowledgebase))

	resp, err := t.client.QueryContentText(ctx, adbpg.TextQueryOptions{
		Collection:            in.Knowledgebase,
		Query:                 in.Query,
		TopK:                  in.TopK,
		UseFullTextRetrieval:  in.UseFullTextRetrieval,
		RerankFactor:          in.RerankFactor,
		GraphEnhance:          in.GraphEnhance,
		Filter:                in.Filter,
		RecallWindow:          in.RecallWindow,
		Metrics:               in.Metrics,
		IncludeVector:         in.IncludeVector,
		HybridSearch:          in.HybridSearch,
		HybridSearchK:         in.HybridSearchK,
		HybridSearchAlpha:     in.HybridSearchAlpha,
		IncludeMetadataFields: in.IncludeMetadataFields,
		IncludeFileURL:        in.IncludeFileURL,
		URLExpiration:         in.URLExpiration,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.name, err)
	}
	return responseResult(resp), nil
}

// InvokableRun implements tool.InvokableTool.
func (t *QueryContentTextTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	return invoke(ctx, t, argumentsInJSON)
}

// QueryContentImageTool retrieves the chunks most relevant to an image.
type QueryContentImageTool struct {
	meta
	client   Client
	resolver *files.Resolver
	log      *slog.Logger
}

type queryContentImageInput struct {
	RecallArgs `mapstructure:",squash"`

	FileName string `mapstructure:"file_name"`
	FileURL  string `mapstructure:"file_url"`
}

// NewQueryContentImageTool constructs a QueryContentImageTool.
func NewQueryContentImageTool(client Client, resolver *files.Resolver, log *slog.Logger) *QueryContentImageTool {
	params := recallParams()
	params["file_name"] = str("Image file name including extension. Inferred from file_url when empty.")
	params["file_url"] = strReq("Local path, host file reference or public URL of the image.")
	return &QueryContentImageTool{
		meta: meta{
			name:   "query_content_image",
			desc:   "Retrieves the chunks of a knowledge base most relevant to an image.",
			params: params,
		},
		client:   client,
		resolver: resolver,
		log:      log,
	}
}

// Run queries the collection with the image, uploading local bytes when the
// file is reachable.
func (t *QueryContentImageTool) Run(ctx context.Context, argumentsInJSON string) (*Result, error) {
	var in queryContentImageInput
	if err := decodeArgs(t.name, argumentsInJSON, &in); err != nil {
		return nil, err
	}
	if err := require(t.name, "knowledgebase", in.Knowledgebase, "file_url", in.FileURL); err != nil {
		return nil, err
	}
	if in.FileName == "" {
		in.FileName = ingestion.InferFile(in.FileURL).FileName
	}
	t.log.Info("tools: query_content_image invoked",
		slog.String("knowledgebase", in.Knowledgebase),
		slog.String("file_name", in.FileName),
	)

	opts := adbpg.ImageQueryOptions{
		Collection:            in.Knowledgebase,
		FileName:              in.FileName,
		TopK:                  in.TopK,
		RerankFactor:          in.RerankFactor,
		Filter:                in.Filter,
		RecallWindow:          in.RecallWindow,
		Metrics:               in.Metrics,
		IncludeVector:         in.IncludeVector,
		IncludeMetadataFields: in.IncludeMetadataFields,
		IncludeFileURL:        in.IncludeFileURL,
		URLExpiration:         in.URLExpiration,
	}
	resp, err := files.Upload(ctx, t.resolver, in.FileURL,
		func(path string) (*adbpg.Response, error) {
			return t.client.QueryContentImageFile(ctx, opts, path)
		},
		func(url string) (*adbpg.Response, error) {
			o := opts
			o.FileURL = url
			return t.client.QueryContentImage(ctx, o)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.name, err)
	}
	return responseResult(resp), nil
}

// InvokableRun implements tool.InvokableTool.
func (t *QueryContentImageTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	return invoke(ctx, t, argumentsInJSON)
}
