// Package provider implements the AnalyticDB model provider as eino
// components: a streaming chat model, a reranker and the credential checks
// the host runs when a provider or model is configured.
//
// Environment variables:
//
//	ADBPG_LLM_MODEL            = chat model name            (default: qwen-turbo)
//	ADBPG_EMBEDDING_MODEL      = embedding model name       (default: service default)
//	ADBPG_EMBEDDING_MAX_CHUNKS = texts per embedding call   (default: 10)
//	ADBPG_EMBEDDING_DIMENSION  = embedding dimension        (default: service default)
//	ADBPG_RERANK_MODEL         = rerank model name          (default: service default)
//	ADBPG_PRICE_INPUT          = price per 1K input tokens  (default: 0)
//	ADBPG_PRICE_OUTPUT         = price per 1K output tokens (default: 0)
//	ADBPG_PRICE_CURRENCY       = price currency             (default: RMB)
package provider

import (
	"context"
	"fmt"

	"github.com/54b3r/adbpg-go/internal/adbpg"
	"github.com/54b3r/adbpg-go/internal/stream"
)

// DefaultLLMModel is used when no chat model is configured, and by provider
// credential validation.
const DefaultLLMModel = "qwen-turbo"

// Config holds provider-level configuration resolved from environment
// variables or explicit caller-supplied values.
type Config struct {
	// LLMModel is the chat model name (e.g. "qwen-turbo", "deepseek-r1").
	LLMModel string

	// EmbeddingModel is the embedding model name. Empty lets the service pick.
	EmbeddingModel string

	// EmbeddingMaxChunks caps the number of texts sent per embedding call.
	EmbeddingMaxChunks int

	// EmbeddingDimension requests a vector size. Zero lets the service pick.
	EmbeddingDimension int

	// RerankModel is the rerank model name. Empty lets the service pick.
	RerankModel string

	// Pricing converts token counts to reported prices.
	Pricing stream.Pricing
}

// Validate checks that the config is usable before any remote call is made.
func (c *Config) Validate() error {
	switch {
	case c.LLMModel == "":
		return fmt.Errorf("provider: ADBPG_LLM_MODEL is required")
	case c.EmbeddingMaxChunks <= 0:
		return fmt.Errorf("provider: ADBPG_EMBEDDING_MAX_CHUNKS must be positive, got %d", c.EmbeddingMaxChunks)
	case c.EmbeddingDimension < 0:
		return fmt.Errorf("provider: ADBPG_EMBEDDING_DIMENSION must not be negative, got %d", c.EmbeddingDimension)
	case c.Pricing.InputPer1K < 0 || c.Pricing.OutputPer1K < 0:
		return fmt.Errorf("provider: ADBPG_PRICE_INPUT and ADBPG_PRICE_OUTPUT must not be negative")
	}
	return nil
}

// ChatStreamer opens a streaming chat completion. *adbpg.Client satisfies it.
type ChatStreamer interface {
	ChatStream(ctx context.Context, opts adbpg.ChatOptions) (*adbpg.ChatStream, error)
}

// RerankCaller scores documents. *adbpg.Client satisfies it.
type RerankCaller interface {
	Rerank(ctx context.Context, opts adbpg.RerankOptions) (*adbpg.Response, error)
}
