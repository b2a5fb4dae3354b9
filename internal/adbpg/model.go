package adbpg

import "context"

// EmbeddingOptions configures TextEmbedding.
type EmbeddingOptions struct {
	Input     []string
	Model     string
	Dimension *int
}

// TextEmbedding embeds a batch of texts. Vectors are under
// "Results.Results[].Embedding.Embedding", keyed by Index.
func (c *Client) TextEmbedding(ctx context.Context, opts EmbeddingOptions) (*Response, error) {
	f := c.instanceForm()
	f.set("Input", NormalizeList(opts.Input))
	f.set("Model", opts.Model)
	f.set("Dimension", opts.Dimension)
	return c.call(ctx, "TextEmbedding", f)
}

// TextEmbeddingJSON is TextEmbedding for a JSON-array input string.
func (c *Client) TextEmbeddingJSON(ctx context.Context, input, model string, dimension *int) (*Response, error) {
	texts, err := ParseStringArray("input", input)
	if err != nil {
		return nil, err
	}
	return c.TextEmbedding(ctx, EmbeddingOptions{Input: texts, Model: model, Dimension: dimension})
}

// RerankOptions configures Rerank.
type RerankOptions struct {
	Query           string
	Documents       []string
	Model           string
	TopK            *int
	ReturnDocuments *bool
	MaxChunksPerDoc *int
}

// Rerank scores documents against a query. Results are under
// "Results.Results[]" with Index, RelevanceScore and Document.
func (c *Client) Rerank(ctx context.Context, opts RerankOptions) (*Response, error) {
	f := c.instanceForm()
	f.set("Query", opts.Query)
	f.set("Documents", NormalizeList(opts.Documents))
	f.set("Model", opts.Model)
	f.set("TopK", opts.TopK)
	f.set("ReturnDocuments", opts.ReturnDocuments)
	f.set("MaxChunksPerDoc", opts.MaxChunksPerDoc)
	return c.call(ctx, "Rerank", f)
}

// RerankJSON is Rerank for a JSON-array documents string.
func (c *Client) RerankJSON(ctx context.Context, opts RerankOptions, documents string) (*Response, error) {
	docs, err := ParseStringArray("documents", documents)
	if err != nil {
		return nil, err
	}
	opts.Documents = docs
	return c.Rerank(ctx, opts)
}
