package provider

import (
	"strings"
	"testing"

	"github.com/54b3r/adbpg-go/internal/stream"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	valid := Config{LLMModel: "qwen-turbo", EmbeddingMaxChunks: 10}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid"},
		{
			name:    "missing llm model",
			mutate:  func(c *Config) { c.LLMModel = "" },
			wantErr: "ADBPG_LLM_MODEL",
		},
		{
			name:    "zero max chunks",
			mutate:  func(c *Config) { c.EmbeddingMaxChunks = 0 },
			wantErr: "ADBPG_EMBEDDING_MAX_CHUNKS",
		},
		{
			name:    "negative dimension",
			mutate:  func(c *Config) { c.EmbeddingDimension = -1 },
			wantErr: "ADBPG_EMBEDDING_DIMENSION",
		},
		{
			name:    "negative price",
			mutate:  func(c *Config) { c.Pricing = stream.Pricing{InputPer1K: -0.1} },
			wantErr: "ADBPG_PRICE_INPUT",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid
			if tc.mutate != nil {
				tc.mutate(&cfg)
			}
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tc.wantErr)
			}
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("ADBPG_LLM_MODEL", "")
	t.Setenv("ADBPG_EMBEDDING_MAX_CHUNKS", "not-a-number")
	t.Setenv("ADBPG_EMBEDDING_DIMENSION", "1024")
	t.Setenv("ADBPG_PRICE_INPUT", "0.002")
	t.Setenv("ADBPG_PRICE_CURRENCY", "")

	cfg := ConfigFromEnv()
	if cfg.LLMModel != DefaultLLMModel {
		t.Errorf("LLMModel = %q, want %q", cfg.LLMModel, DefaultLLMModel)
	}
	if cfg.EmbeddingMaxChunks != 10 {
		t.Errorf("EmbeddingMaxChunks = %d, want fallback 10", cfg.EmbeddingMaxChunks)
	}
	if cfg.EmbeddingDimension != 1024 {
		t.Errorf("EmbeddingDimension = %d, want 1024", cfg.EmbeddingDimension)
	}
	if cfg.Pricing.InputPer1K != 0.002 || cfg.Pricing.Currency != "RMB" {
		t.Errorf("unexpected pricing %+v", cfg.Pricing)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("env config should validate: %v", err)
	}
}
