package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/54b3r/adbpg-go/internal/adbpg"
	"github.com/54b3r/adbpg-go/internal/rag"
)

// RerankOptions tunes a Rerank call. Nil fields are unset.
type RerankOptions struct {
	// TopN caps the number of results. Nil keeps every document.
	TopN *int
	// ScoreThreshold drops results whose normalized score is below it.
	ScoreThreshold *float64
}

// Reranker scores documents against a query with the service's rerank
// model. Scores are normalized to (0, 1) with a sigmoid.
type Reranker struct {
	client RerankCaller
	model  string
	log    *slog.Logger
}

// NewReranker constructs a Reranker. An empty model lets the service pick.
func NewReranker(client RerankCaller, model string, log *slog.Logger) (*Reranker, error) {
	if client == nil {
		return nil, fmt.Errorf("provider: rerank client must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reranker{client: client, model: model, log: log}, nil
}

// Rerank returns the scored documents in service order. Empty docs return
// an empty result without a remote call.
func (r *Reranker) Rerank(ctx context.Context, query string, docs []string, opts RerankOptions) ([]rag.RerankResult, error) {
	if len(docs) == 0 {
		return []rag.RerankResult{}, nil
	}
	topK := len(docs)
	if opts.TopN != nil {
		topK = min(*opts.TopN, len(docs))
	}
	returnDocs := true

	resp, err := r.client.Rerank(ctx, adbpg.RerankOptions{
		Query:           query,
		Documents:       docs,
		Model:           r.model,
		TopK:            &topK,
		ReturnDocuments: &returnDocs,
	})
	if err != nil {
		return nil, err
	}

	results := rag.FilterRerank(rag.RerankResultsFromResponse(resp), opts.ScoreThreshold)
	r.log.Debug("provider: rerank complete",
		slog.String("model", r.model),
		slog.Int("documents", len(docs)),
		slog.Int("results", len(results)),
	)
	return results, nil
}
