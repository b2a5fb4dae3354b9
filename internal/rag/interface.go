// Package rag turns raw knowledge base matches into scored records. Scores
// are sigmoid-normalized, filtered by threshold and truncated to top_k in the
// service's own relevance order.
package rag

import (
	"context"

	"github.com/54b3r/adbpg-go/internal/adbpg"
)

// Record is one retrieval result as returned to the host.
type Record struct {
	// Title is the source file name.
	Title string `json:"title"`

	// Content is the chunk text.
	Content string `json:"content"`

	// Score is the normalized relevance score in (0, 1).
	Score float64 `json:"score"`

	// Metadata is passed through from the service unchanged.
	Metadata map[string]any `json:"metadata"`
}

// Setting controls post-processing.
type Setting struct {
	// TopK caps the number of records returned.
	TopK int

	// ScoreThreshold drops records whose normalized score is below it.
	ScoreThreshold float64
}

// DefaultSetting mirrors the host's defaults when retrieval_setting is absent.
var DefaultSetting = Setting{TopK: 10, ScoreThreshold: 0.0}

// Querier runs a text query against a knowledge base. *adbpg.Client
// satisfies it.
type Querier interface {
	QueryContentText(ctx context.Context, opts adbpg.TextQueryOptions) (*adbpg.Response, error)
}
