package provider

import (
	"context"
	"log/slog"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/adbpg-go/internal/adbpg"
)

// Fixed inputs for rerank validation.
var (
	validationQuery = "What is the capital of the United States?"
	validationDocs  = []string{
		"Carson City is the capital city of the American state of Nevada.",
		"Washington, D.C. is the capital of the United States.",
	}
)

// Initializer prepares the vector database. *adbpg.Client satisfies it.
type Initializer interface {
	Init(ctx context.Context) error
}

// credentialsErr logs and wraps a failed validation call.
func credentialsErr(log *slog.Logger, what string, err error) error {
	if log == nil {
		log = slog.Default()
	}
	log.Error("provider: credentials validation failed", slog.String("check", what), slog.Any("error", err))
	return &adbpg.CredentialsError{Err: err}
}

// ValidateChat sends a one-word, non-streaming completion.
func ValidateChat(ctx context.Context, m model.BaseChatModel, log *slog.Logger) error {
	_, err := m.Generate(ctx,
		[]*schema.Message{schema.UserMessage("ping")},
		model.WithMaxTokens(10),
		model.WithTemperature(0.5),
	)
	if err != nil {
		return credentialsErr(log, "chat", err)
	}
	return nil
}

// ValidateEmbedding embeds a single word.
func ValidateEmbedding(ctx context.Context, e embedding.Embedder, log *slog.Logger) error {
	if _, err := e.EmbedStrings(ctx, []string{"ping"}); err != nil {
		return credentialsErr(log, "embedding", err)
	}
	return nil
}

// ValidateRerank reranks two fixed documents with a zero threshold.
func ValidateRerank(ctx context.Context, r *Reranker, log *slog.Logger) error {
	threshold := 0.0
	if _, err := r.Rerank(ctx, validationQuery, validationDocs, RerankOptions{ScoreThreshold: &threshold}); err != nil {
		return credentialsErr(log, "rerank", err)
	}
	return nil
}

// ValidateProvider checks provider credentials with a chat call against the
// default model, whatever model the caller configured.
func ValidateProvider(ctx context.Context, client ChatStreamer, cfg *Config, log *slog.Logger) error {
	c := *cfg
	c.LLMModel = DefaultLLMModel
	m, err := NewChatModel(client, &c, log)
	if err != nil {
		return err
	}
	return ValidateChat(ctx, m, log)
}

// ValidateToolCredentials initializes the vector database and namespace.
func ValidateToolCredentials(ctx context.Context, i Initializer, log *slog.Logger) error {
	if err := i.Init(ctx); err != nil {
		return credentialsErr(log, "tools", err)
	}
	return nil
}
