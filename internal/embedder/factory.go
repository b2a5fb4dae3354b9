package embedder

import (
	"fmt"
	"os"
	"strconv"

	"github.com/54b3r/adbpg-go/internal/stream"
)

// DefaultMaxChunks is the number of texts sent per TextEmbedding call.
const DefaultMaxChunks = 10

// Config holds the embedding settings.
type Config struct {
	// Model is the embedding model name. Empty lets the service pick.
	Model string
	// MaxChunks caps the texts per remote call.
	MaxChunks int
	// Dimension requests a vector size. Zero lets the service pick.
	Dimension int
	// Pricing converts token counts to reported prices.
	Pricing stream.Pricing
}

// Validate rejects configurations that cannot make a request.
func (c Config) Validate() error {
	if c.MaxChunks <= 0 {
		return fmt.Errorf("embedder: max chunks must be positive, got %d", c.MaxChunks)
	}
	if c.Dimension < 0 {
		return fmt.Errorf("embedder: dimension must not be negative, got %d", c.Dimension)
	}
	return nil
}

// ConfigFromEnv reads ADBPG_EMBEDDING_MODEL, ADBPG_EMBEDDING_MAX_CHUNKS,
// ADBPG_EMBEDDING_DIMENSION and the ADBPG_PRICE_* variables.
func ConfigFromEnv() Config {
	return Config{
		Model:     os.Getenv("ADBPG_EMBEDDING_MODEL"),
		MaxChunks: getEnvInt("ADBPG_EMBEDDING_MAX_CHUNKS", DefaultMaxChunks),
		Dimension: getEnvInt("ADBPG_EMBEDDING_DIMENSION", 0),
		Pricing: stream.Pricing{
			InputPer1K: getEnvFloat("ADBPG_PRICE_INPUT", 0),
			Currency:   getEnvOrDefault("ADBPG_PRICE_CURRENCY", "RMB"),
		},
	}
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

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
