package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/adbpg-go/internal/adbpg"
)

// Fixed retrieval configuration used by the knowledge endpoint.
const (
	hybridSearchMethod = "RRF"
	rerankFactor       = 2.0
)

// KnowledgeRetriever queries one knowledge base with full text retrieval,
// RRF hybrid search and a fixed rerank factor. It implements
// retriever.Retriever.
type KnowledgeRetriever struct {
	// querier issues QueryContent calls.
	querier Querier

	// collection is used when no retriever.WithIndex option is passed.
	collection string

	// defaults applies when the caller passes no TopK or ScoreThreshold.
	defaults Setting

	log *slog.Logger
}

var _ retriever.Retriever = (*KnowledgeRetriever)(nil)

// NewKnowledgeRetriever constructs a KnowledgeRetriever. collection may be
// empty if every call names one via retriever.WithIndex.
func NewKnowledgeRetriever(q Querier, collection string, defaults Setting, log *slog.Logger) (*KnowledgeRetriever, error) {
	if q == nil {
		return nil, fmt.Errorf("rag: querier must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	if defaults.TopK <= 0 {
		defaults.TopK = DefaultSetting.TopK
	}
	return &KnowledgeRetriever{querier: q, collection: collection, defaults: defaults, log: log}, nil
}

// Query runs the fixed retrieval against knowledgeID and post-processes the
// matches. Remote errors are returned unwrapped so callers can classify them.
func (r *KnowledgeRetriever) Query(ctx context.Context, knowledgeID, query string, s Setting) ([]Record, error) {
	topK := s.TopK
	useFullText := true
	factor := rerankFactor
	resp, err := r.querier.QueryContentText(ctx, adbpg.TextQueryOptions{
		Collection:           knowledgeID,
		Query:                query,
		TopK:                 &topK,
		UseFullTextRetrieval: &useFullText,
		HybridSearch:         hybridSearchMethod,
		RerankFactor:         &factor,
	})
	if err != nil {
		return nil, err
	}
	matches := MatchesFromResponse(resp)
	records := PostProcess(matches, s)
	r.log.Info("rag: retrieval complete",
		slog.String("knowledge_id", knowledgeID),
		slog.Int("matches", len(matches)),
		slog.Int("records", len(records)),
		slog.Float64("threshold", s.ScoreThreshold),
		slog.Int("top_k", s.TopK),
	)
	return records, nil
}

// Retrieve implements retriever.Retriever. Each record becomes a document
// whose score is the normalized relevance.
func (r *KnowledgeRetriever) Retrieve(ctx context.Context, query string, opts ...retriever.Option) (docs []*schema.Document, err error) {
	topK, threshold := r.defaults.TopK, r.defaults.ScoreThreshold
	collection := r.collection
	o := retriever.GetCommonOptions(&retriever.Options{
		TopK:           &topK,
		ScoreThreshold: &threshold,
		Index:          &collection,
	}, opts...)

	ctx = callbacks.EnsureRunInfo(ctx, r.GetType(), components.ComponentOfRetriever)
	ctx = callbacks.OnStart(ctx, &retriever.CallbackInput{
		Query:          query,
		TopK:           *o.TopK,
		ScoreThreshold: o.ScoreThreshold,
	})
	defer func() {
		if err != nil {
			callbacks.OnError(ctx, err)
		}
	}()

	if *o.Index == "" {
		return nil, fmt.Errorf("rag: no knowledge base given")
	}
	records, err := r.Query(ctx, *o.Index, query, Setting{TopK: *o.TopK, ScoreThreshold: *o.ScoreThreshold})
	if err != nil {
		return nil, fmt.Errorf("rag: query %s: %w", *o.Index, err)
	}

	docs = make([]*schema.Document, 0, len(records))
	for i, rec := range records {
		meta := make(map[string]any, len(rec.Metadata)+1)
		for k, v := range rec.Metadata {
			meta[k] = v
		}
		meta["title"] = rec.Title
		doc := &schema.Document{
			ID:       fmt.Sprintf("%s#%d", rec.Title, i),
			Content:  rec.Content,
			MetaData: meta,
		}
		docs = append(docs, doc.WithScore(rec.Score))
	}

	callbacks.OnEnd(ctx, &retriever.CallbackOutput{Docs: docs})
	return docs, nil
}

// GetType names the component for callbacks.
func (r *KnowledgeRetriever) GetType() string { return "AnalyticDBKnowledge" }

// IsCallbacksEnabled reports that Retrieve emits its own callbacks.
func (r *KnowledgeRetriever) IsCallbacksEnabled() bool { return true }
