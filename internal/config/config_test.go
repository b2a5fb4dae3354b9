package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	log := slog.Default()
	path, err := Load("/nonexistent/path/config.yaml", log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
analyticdb:
  region_id: cn-hangzhou
  dbinstance_id: gp-bp1234
  namespace: dify
  read_timeout: 30000
model:
  llm: qwen-plus
  embedding_max_chunks: 25
  price_input: 0.0008
server:
  rate_limit_rps: 2.5
logging:
  level: debug
  format: text
jobs:
  poll_interval: 5s
files:
  base_url: http://api:5001
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Clear env vars that the YAML should set.
	envKeys := []string{
		"ANALYTICDB_REGION_ID", "ANALYTICDB_DBINSTANCE_ID", "ANALYTICDB_NAMESPACE", "ANALYTICDB_READ_TIMEOUT",
		"ADBPG_LLM_MODEL", "ADBPG_EMBEDDING_MAX_CHUNKS", "ADBPG_PRICE_INPUT", "ADBPG_RATE_LIMIT_RPS",
		"LOG_LEVEL", "LOG_FORMAT", "ADBPG_JOB_POLL_INTERVAL", "INTERNAL_FILES_URL",
	}
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	log := slog.Default()
	loaded, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	checks := map[string]string{
		"ANALYTICDB_REGION_ID":       "cn-hangzhou",
		"ANALYTICDB_DBINSTANCE_ID":   "gp-bp1234",
		"ANALYTICDB_NAMESPACE":       "dify",
		"ANALYTICDB_READ_TIMEOUT":    "30000",
		"ADBPG_LLM_MODEL":            "qwen-plus",
		"ADBPG_EMBEDDING_MAX_CHUNKS": "25",
		"ADBPG_PRICE_INPUT":          "0.0008",
		"ADBPG_RATE_LIMIT_RPS":       "2.5",
		"LOG_LEVEL":                  "debug",
		"LOG_FORMAT":                 "text",
		"ADBPG_JOB_POLL_INTERVAL":    "5s",
		"INTERNAL_FILES_URL":         "http://api:5001",
	}
	for k, want := range checks {
		got := os.Getenv(k)
		if got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  llm: qwen-turbo
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Set env var BEFORE loading; it should NOT be overwritten.
	t.Setenv("ADBPG_LLM_MODEL", "deepseek-r1")

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("ADBPG_LLM_MODEL"); got != "deepseek-r1" {
		t.Errorf("ADBPG_LLM_MODEL: expected env override %q, got %q", "deepseek-r1", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())

	env := "ANALYTICDB_NAMESPACE=from-dotenv\nADBPG_RERANK_MODEL=gte-rerank\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ANALYTICDB_NAMESPACE", "from-env")
	t.Setenv("ADBPG_RERANK_MODEL", "")
	os.Unsetenv("ADBPG_RERANK_MODEL")

	loaded, err := LoadDotEnv(slog.Default())
	if err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("want 1 file loaded, got %v", loaded)
	}
	if got := os.Getenv("ANALYTICDB_NAMESPACE"); got != "from-env" {
		t.Errorf("existing env overwritten: %q", got)
	}
	if got := os.Getenv("ADBPG_RERANK_MODEL"); got != "gte-rerank" {
		t.Errorf("ADBPG_RERANK_MODEL = %q, want gte-rerank", got)
	}
}

func TestFloatStr(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float64
		want string
	}{
		{0.0, ""},
		{0.2, "0.2"},
		{0.0008, "0.0008"},
		{1.0, "1"},
	}
	for _, tt := range tests {
		if got := floatStr(tt.in); got != tt.want {
			t.Errorf("floatStr(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
