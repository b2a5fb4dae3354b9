package adbpg

import (
	"context"
	"fmt"
)

// InitVectorDatabase prepares the instance for vector workloads.
func (c *Client) InitVectorDatabase(ctx context.Context) (*Response, error) {
	return c.call(ctx, "InitVectorDatabase", c.managerForm())
}

// CreateNamespace creates the configured namespace. If it already exists the
// service updates its password instead.
func (c *Client) CreateNamespace(ctx context.Context) (*Response, error) {
	f := c.managerForm()
	f.set("Namespace", c.creds.Namespace)
	f.set("NamespacePassword", c.creds.NamespacePassword)
	return c.call(ctx, "CreateNamespace", f)
}

// DescribeNamespace returns the configured namespace.
func (c *Client) DescribeNamespace(ctx context.Context) (*Response, error) {
	f := c.managerForm()
	f.set("Namespace", c.creds.Namespace)
	return c.call(ctx, "DescribeNamespace", f)
}

// Init initialises the vector database and ensures the namespace exists.
// It doubles as the tool provider's credential check.
func (c *Client) Init(ctx context.Context) error {
	if _, err := c.InitVectorDatabase(ctx); err != nil {
		return fmt.Errorf("adbpg: init vector database: %w", err)
	}
	if _, err := c.CreateNamespace(ctx); err != nil {
		return fmt.Errorf("adbpg: ensure namespace: %w", err)
	}
	return nil
}

// ListDocumentCollections lists knowledge bases in the namespace.
func (c *Client) ListDocumentCollections(ctx context.Context) (*Response, error) {
	return c.call(ctx, "ListDocumentCollections", c.namespaceForm())
}

// CreateCollectionOptions enumerates every CreateDocumentCollection option.
// Pointer and blank fields are omitted from the request.
type CreateCollectionOptions struct {
	Collection  string
	EnableGraph bool
	LLMModel    string
	Language    string
	// EntityTypes and RelationshipTypes are comma-separated lists.
	EntityTypes             string
	RelationshipTypes       string
	EmbeddingModel          string
	Metadata                string
	FullTextRetrievalFields string
	Parser                  string
	Metrics                 string
	HNSWM                   *int
	HNSWEfConstruction      *int
	PQEnable                *bool
	ExternalStorage         *int
	MetadataIndices         string
}

// CreateDocumentCollection creates a knowledge base.
func (c *Client) CreateDocumentCollection(ctx context.Context, opts CreateCollectionOptions) (*Response, error) {
	if opts.Collection == "" {
		return nil, invalidArgf("collection is required")
	}

	f := c.managerForm()
	f.set("Namespace", c.creds.Namespace)
	f.set("Collection", opts.Collection)
	f.set("EnableGraph", opts.EnableGraph)
	f.set("LLMModel", opts.LLMModel)
	f.set("Language", opts.Language)
	f.set("EntityTypes", SplitList(opts.EntityTypes))
	f.set("RelationshipTypes", SplitList(opts.RelationshipTypes))
	f.set("EmbeddingModel", opts.EmbeddingModel)
	f.set("Metadata", opts.Metadata)
	f.set("FullTextRetrievalFields", opts.FullTextRetrievalFields)
	f.set("Parser", opts.Parser)
	f.set("Metrics", opts.Metrics)
	f.set("HnswM", opts.HNSWM)
	if opts.HNSWEfConstruction != nil {
		f.set("HnswEfConstruction", fmt.Sprintf("%d", *opts.HNSWEfConstruction))
	}
	f.set("PqEnable", BoolToInt(opts.PQEnable))
	f.set("ExternalStorage", opts.ExternalStorage)
	f.set("MetadataIndices", opts.MetadataIndices)
	return c.call(ctx, "CreateDocumentCollection", f)
}
