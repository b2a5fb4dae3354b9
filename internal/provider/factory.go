package provider

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/54b3r/adbpg-go/internal/adbpg"
	"github.com/54b3r/adbpg-go/internal/stream"
)

// ConfigFromEnv reads provider configuration from environment variables.
// See the package documentation for the variables and their defaults.
func ConfigFromEnv() *Config {
	return &Config{
		LLMModel:           getEnvOrDefault("ADBPG_LLM_MODEL", DefaultLLMModel),
		EmbeddingModel:     os.Getenv("ADBPG_EMBEDDING_MODEL"),
		EmbeddingMaxChunks: getEnvInt("ADBPG_EMBEDDING_MAX_CHUNKS", 10),
		EmbeddingDimension: getEnvInt("ADBPG_EMBEDDING_DIMENSION", 0),
		RerankModel:        os.Getenv("ADBPG_RERANK_MODEL"),
		Pricing: stream.Pricing{
			InputPer1K:  getEnvFloat("ADBPG_PRICE_INPUT", 0),
			OutputPer1K: getEnvFloat("ADBPG_PRICE_OUTPUT", 0),
			Currency:    getEnvOrDefault("ADBPG_PRICE_CURRENCY", "RMB"),
		},
	}
}

// NewFromEnv builds a facade client from the ANALYTICDB_* credentials and a
// ChatModel from the ADBPG_* provider settings.
func NewFromEnv(log *slog.Logger, opts ...adbpg.Option) (*ChatModel, *adbpg.Client, error) {
	cfg := ConfigFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	creds, err := adbpg.CredentialsFromEnv()
	if err != nil {
		return nil, nil, err
	}
	if err := creds.Validate(); err != nil {
		return nil, nil, err
	}
	client, err := adbpg.New(creds, append([]adbpg.Option{adbpg.WithLogger(log)}, opts...)...)
	if err != nil {
		return nil, nil, fmt.Errorf("provider: %w", err)
	}
	cm, err := NewChatModel(client, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return cm, client, nil
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvFloat returns the float64 value of the named environment variable,
// or fallback if the variable is unset, empty, or not parseable.
func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
