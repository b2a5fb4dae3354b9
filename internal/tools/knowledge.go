package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/adbpg-go/internal/adbpg"
)

// ListKnowledgeBasesTool lists the document collections in the namespace.
type ListKnowledgeBasesTool struct {
	meta
	client Client
	log    *slog.Logger
}

// NewListKnowledgeBasesTool constructs a ListKnowledgeBasesTool.
func NewListKnowledgeBasesTool(client Client, log *slog.Logger) *ListKnowledgeBasesTool {
	return &ListKnowledgeBasesTool{
		meta: meta{
			name:   "list_knowledge_bases",
			desc:   "Lists the knowledge bases (document collections) in the configured AnalyticDB namespace.",
			params: map[string]*schema.ParameterInfo{},
		},
		client: client,
		log:    log,
	}
}

// Run lists the collections.
func (t *ListKnowledgeBasesTool) Run(ctx context.Context, _ string) (*Result, error) {
	t.log.Info("tools: list_knowledge_bases invoked")
	resp, err := t.client.ListDocumentCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.name, err)
	}
	return responseResult(resp), nil
}

// InvokableRun implements tool.InvokableTool.
func (t *ListKnowledgeBasesTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	return invoke(ctx, t, argumentsInJSON)
}

// CreateKnowledgeBaseTool creates a document collection.
type CreateKnowledgeBaseTool struct {
	meta
	client Client
	log    *slog.Logger
}

type createKnowledgeBaseInput struct {
	Knowledgebase           string `mapstructure:"knowledgebase"`
	EnableGraph             bool   `mapstructure:"enable_graph"`
	LLMModel                string `mapstructure:"llmmodel"`
	Language                string `mapstructure:"language"`
	EntityTypes             string `mapstructure:"entity_types"`
	RelationshipTypes       string `mapstructure:"relationship_types"`
	EmbeddingModel          string `mapstructure:"embedding_model"`
	Metadata                string `mapstructure:"metadata"`
	FullTextRetrievalFields string `mapstructure:"full_text_retrieval_fields"`
	Parser                  string `mapstructure:"parser"`
	Metrics                 string `mapstructure:"metrics"`
	HNSWM                   *int   `mapstructure:"hnsw_m"`
	HNSWEfConstruction      *int   `mapstructure:"hnsw_ef_construction"`
	PQEnable                *bool  `mapstructure:"pq_enable"`
	ExternalStorage         *int   `mapstructure:"external_storage"`
	MetadataIndices         string `mapstructure:"metadata_indices"`
}

// NewCreateKnowledgeBaseTool constructs a CreateKnowledgeBaseTool.
func NewCreateKnowledgeBaseTool(client Client, log *slog.Logger) *CreateKnowledgeBaseTool {
	return &CreateKnowledgeBaseTool{
		meta: meta{
			name: "create_knowledge_base",
			desc: "Creates a knowledge base (document collection), optionally with a knowledge graph.",
			params: map[string]*schema.ParameterInfo{
				"knowledgebase":              strReq("Name of the document collection to create."),
				"enable_graph":               boolean("Build a knowledge graph while ingesting."),
				"llmmodel":                   str("LLM used for graph extraction."),
				"language":                   str("Document language for graph extraction."),
				"entity_types":               str("Comma-separated entity types for graph extraction."),
				"relationship_types":         str("Comma-separated relationship types for graph extraction."),
				"embedding_model":            str("Embedding model of the collection."),
				"metadata":                   str("JSON object of metadata field names to types."),
				"full_text_retrieval_fields": str("Comma-separated metadata fields used for full text retrieval."),
				"parser":                     str("Full text parser, e.g. zh_cn."),
				"metrics":                    str("Vector distance metric: l2, ip or cosine."),
				"hnsw_m":                     integer("HNSW max neighbours."),
				"hnsw_ef_construction":       integer("HNSW candidate list size during construction."),
				"pq_enable":                  boolean("Enable product quantization."),
				"external_storage":           integer("1 to use external storage (mmap) for the index."),
				"metadata_indices":           str("Comma-separated metadata fields to index."),
			},
		},
		client: client,
		log:    log,
	}
}

// Run creates the collection.
func (t *CreateKnowledgeBaseTool) Run(ctx context.Context, argumentsInJSON string) (*Result, error) {
	var in createKnowledgeBaseInput
	if err := decodeArgs(t.name, argumentsInJSON, &in); err != nil {
		return nil, err
	}
	if err := require(t.name, "knowledgebase", in.Knowledgebase); err != nil {
		return nil, err
	}
	t.log.Info("tools: create_knowledge_base invoked", slog.String("knowledgebase", in.Knowledgebase))

	resp, err := t.client.CreateDocumentCollection(ctx, adbpg.CreateCollectionOptions{
		Collection:              in.Knowledgebase,
		EnableGraph:             in.EnableGraph,
		LLMModel:                in.LLMModel,
		Language:                in.Language,
		EntityTypes:             in.EntityTypes,
		RelationshipTypes:       in.RelationshipTypes,
		EmbeddingModel:          in.EmbeddingModel,
		Metadata:                in.Metadata,
		FullTextRetrievalFields: in.FullTextRetrievalFields,
		Parser:                  in.Parser,
		Metrics:                 in.Metrics,
		HNSWM:                   in.HNSWM,
		HNSWEfConstruction:      in.HNSWEfConstruction,
		PQEnable:                in.PQEnable,
		ExternalStorage:         in.ExternalStorage,
		MetadataIndices:         in.MetadataIndices,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.name, err)
	}
	return responseResult(resp), nil
}

// InvokableRun implements tool.InvokableTool.
func (t *CreateKnowledgeBaseTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	return invoke(ctx, t, argumentsInJSON)
}

// DeleteDocumentTool removes one file and its chunks from a collection.
type DeleteDocumentTool struct {
	meta
	client Client
	log    *slog.Logger
}

type deleteDocumentInput struct {
	Knowledgebase string `mapstructure:"knowledgebase"`
	FileName      string `mapstructure:"file_name"`
}

// NewDeleteDocumentTool constructs a DeleteDocumentTool.
func NewDeleteDocumentTool(client Client, log *slog.Logger) *DeleteDocumentTool {
	return &DeleteDocumentTool{
		meta: meta{
			name: "delete_document",
			desc: "Deletes a document and all of its chunks from a knowledge base.",
			params: map[string]*schema.ParameterInfo{
				"knowledgebase": strReq("Name of the document collection."),
				"file_name":     strReq("File name of the document to delete."),
			},
		},
		client: client,
		log:    log,
	}
}

// Run deletes the document.
func (t *DeleteDocumentTool) Run(ctx context.Context, argumentsInJSON string) (*Result, error) {
	var in deleteDocumentInput
	if err := decodeArgs(t.name, argumentsInJSON, &in); err != nil {
		return nil, err
	}
	if err := require(t.name, "knowledgebase", in.Knowledgebase, "file_name", in.FileName); err != nil {
		return nil, err
	}
	t.log.Info("tools: delete_document invoked",
		slog.String("knowledgebase", in.Knowledgebase),
		slog.String("file_name", in.FileName),
	)
	resp, err := t.client.DeleteDocument(ctx, in.Knowledgebase, in.FileName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.name, err)
	}
	return responseResult(resp), nil
}

// InvokableRun implements tool.InvokableTool.
func (t *DeleteDocumentTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	return invoke(ctx, t, argumentsInJSON)
}

// UpsertChunksTool writes caller-split chunks into a collection.
type UpsertChunksTool struct {
	meta
	client Client
	log    *slog.Logger
}

type upsertChunksInput struct {
	Knowledgebase         string `mapstructure:"knowledgebase"`
	FileName              string `mapstructure:"file_name"`
	TextChunks            string `mapstructure:"text_chunks"`
	ShouldReplaceFile     *bool  `mapstructure:"should_replace_file"`
	AllowInsertWithFilter *bool  `mapstructure:"allow_insert_with_filter"`
}

// NewUpsertChunksTool constructs an UpsertChunksTool.
func NewUpsertChunksTool(client Client, log *slog.Logger) *UpsertChunksTool {
	return &UpsertChunksTool{
		meta: meta{
			name: "upsert_chunks",
			desc: "Writes pre-split text chunks into a knowledge base. The service embeds them.",
			params: map[string]*schema.ParameterInfo{
				"knowledgebase":            strReq("Name of the document collection."),
				"file_name":                strReq("File name the chunks belong to."),
				"text_chunks":              strReq(`JSON array of {"Content": "...", "Metadata": {...}, "Filter": "..."} objects.`),
				"should_replace_file":      boolean("Replace existing chunks of the same file."),
				"allow_insert_with_filter": boolean("Insert when a chunk filter matches nothing."),
			},
		},
		client: client,
		log:    log,
	}
}

// Run upserts the chunks.
func (t *UpsertChunksTool) Run(ctx context.Context, argumentsInJSON string) (*Result, error) {
	var in upsertChunksInput
	if err := decodeArgs(t.name, argumentsInJSON, &in); err != nil {
		return nil, err
	}
	if err := require(t.name, "knowledgebase", in.Knowledgebase, "file_name", in.FileName); err != nil {
		return nil, err
	}
	t.log.Info("tools: upsert_chunks invoked",
		slog.String("knowledgebase", in.Knowledgebase),
		slog.String("file_name", in.FileName),
	)
	resp, err := t.client.UpsertChunks(ctx, adbpg.UpsertOptions{
		Collection:            in.Knowledgebase,
		FileName:              in.FileName,
		TextChunks:            in.TextChunks,
		ShouldReplaceFile:     in.ShouldReplaceFile,
		AllowInsertWithFilter: in.AllowInsertWithFilter,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.name, err)
	}
	return responseResult(resp), nil
}

// InvokableRun implements tool.InvokableTool.
func (t *UpsertChunksTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	return invoke(ctx, t, argumentsInJSON)
}
