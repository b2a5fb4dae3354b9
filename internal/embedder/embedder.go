// Package embedder turns text into dense vectors with the service's
// TextEmbedding action. The Embedder implements eino's embedding.Embedder so
// it can be used anywhere an eino graph expects one.
package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/embedding"

	"github.com/54b3r/adbpg-go/internal/adbpg"
	"github.com/54b3r/adbpg-go/internal/budget"
	"github.com/54b3r/adbpg-go/internal/stream"
)

// Caller issues TextEmbedding requests. *adbpg.Client satisfies it.
type Caller interface {
	TextEmbedding(ctx context.Context, opts adbpg.EmbeddingOptions) (*adbpg.Response, error)
}

// Result is the outcome of one Embed call.
type Result struct {
	// Embeddings has one vector per input text, in input order.
	Embeddings [][]float64
	// Usage sums the service-reported TextTokens across all batches.
	Usage *stream.Usage
}

// Embedder implements embedding.Embedder. It is safe for concurrent use.
type Embedder struct {
	client Caller
	cfg    Config
	log    *slog.Logger
}

var _ embedding.Embedder = (*Embedder)(nil)

// New constructs an Embedder.
func New(client Caller, cfg Config, log *slog.Logger) (*Embedder, error) {
	if client == nil {
		return nil, fmt.Errorf("embedder: client must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Embedder{client: client, cfg: cfg, log: log}, nil
}

// EmbedStrings implements embedding.Embedder.
func (e *Embedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	res, err := e.Embed(ctx, texts, opts...)
	if err != nil {
		return nil, err
	}
	return res.Embeddings, nil
}

// Embed embeds texts in batches of at most MaxChunks and reports usage.
func (e *Embedder) Embed(ctx context.Context, texts []string, opts ...embedding.Option) (res *Result, err error) {
	name := e.cfg.Model
	o := embedding.GetCommonOptions(&embedding.Options{Model: &name}, opts...)
	conf := &embedding.Config{Model: *o.Model}

	ctx = callbacks.EnsureRunInfo(ctx, e.GetType(), components.ComponentOfEmbedding)
	ctx = callbacks.OnStart(ctx, &embedding.CallbackInput{Texts: texts, Config: conf})
	defer func() {
		if err != nil {
			callbacks.OnError(ctx, err)
		}
	}()

	var dim *int
	if e.cfg.Dimension > 0 {
		d := e.cfg.Dimension
		dim = &d
	}

	vectors := make([][]float64, 0, len(texts))
	tokens := 0
	for start := 0; start < len(texts); start += e.cfg.MaxChunks {
		end := min(start+e.cfg.MaxChunks, len(texts))
		resp, err := e.client.TextEmbedding(ctx, adbpg.EmbeddingOptions{
			Input:     texts[start:end],
			Model:     *o.Model,
			Dimension: dim,
		})
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, Vectors(resp)...)
		tokens += int(resp.Get("TextTokens").Int())
	}

	usage := e.cfg.Pricing.Calculate(tokens, 0)
	e.log.Debug("embedder: embedded texts",
		slog.String("model", *o.Model),
		slog.Int("texts", len(texts)),
		slog.Int("tokens", tokens),
	)
	callbacks.OnEnd(ctx, &embedding.CallbackOutput{
		Embeddings: vectors,
		Config:     conf,
		TokenUsage: &embedding.TokenUsage{PromptTokens: tokens, TotalTokens: tokens},
	})
	return &Result{Embeddings: vectors, Usage: usage}, nil
}

// GetType names the component for callbacks.
func (e *Embedder) GetType() string { return "AnalyticDB" }

// IsCallbacksEnabled reports that Embed emits its own callbacks.
func (e *Embedder) IsCallbacksEnabled() bool { return true }

// Vectors reads Results.Results[].Embedding.Embedding ordered by Index.
// Results without an embedding are skipped.
func Vectors(resp *adbpg.Response) [][]float64 {
	type indexed struct {
		index int
		vec   []float64
	}
	var items []indexed
	for _, r := range resp.Get("Results.Results").Array() {
		emb := r.Get("Embedding.Embedding")
		if !emb.IsArray() {
			continue
		}
		vals := emb.Array()
		vec := make([]float64, len(vals))
		for i, v := range vals {
			vec[i] = v.Float()
		}
		items = append(items, indexed{index: int(r.Get("Index").Int()), vec: vec})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].index < items[j].index })

	out := make([][]float64, len(items))
	for i, it := range items {
		out[i] = it.vec
	}
	return out
}

// CountTokens counts each text with the local tokenizer.
func CountTokens(texts []string) []int {
	out := make([]int, len(texts))
	for i, t := range texts {
		out[i] = budget.CountTokens(t)
	}
	return out
}
