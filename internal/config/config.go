// Package config provides YAML-based configuration for adbpg.
// Configuration is loaded with a layered precedence: defaults → .env → YAML
// file → env vars. Environment variables always win.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. ADBPG_CONFIG environment variable
//  3. ~/.adbpg/config.yaml
//  4. ./adbpg.yaml
//
// If no file is found the system runs entirely from env vars.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
type Config struct {
	// AnalyticDB holds the instance credentials and timeouts.
	AnalyticDB AnalyticDBConfig `yaml:"analyticdb"`

	// Model configures the model provider.
	Model ModelConfig `yaml:"model"`

	// Server configures the HTTP endpoint.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Files configures where hosted files are downloaded from.
	Files FilesConfig `yaml:"files"`

	// Jobs configures job polling and the local job ledger.
	Jobs JobsConfig `yaml:"jobs"`

	// Tracing configures Langfuse tracing integration.
	Tracing TracingConfig `yaml:"tracing"`
}

// AnalyticDBConfig holds the credentials every remote call needs. Prefer
// env vars for the secrets.
type AnalyticDBConfig struct {
	AccessKeyID            string `yaml:"access_key_id"`
	AccessKeySecret        string `yaml:"access_key_secret"`
	RegionID               string `yaml:"region_id"`
	DBInstanceID           string `yaml:"dbinstance_id"`
	Endpoint               string `yaml:"endpoint"`
	Protocol               string `yaml:"protocol"`
	ManagerAccount         string `yaml:"manager_account"`
	ManagerAccountPassword string `yaml:"manager_account_password"`
	Namespace              string `yaml:"namespace"`
	NamespacePassword      string `yaml:"namespace_password"`
	// ReadTimeout and ConnectTimeout are in milliseconds.
	ReadTimeout    int `yaml:"read_timeout"`
	ConnectTimeout int `yaml:"connect_timeout"`
}

// ModelConfig holds model provider settings.
type ModelConfig struct {
	// LLM is the chat model name.
	LLM string `yaml:"llm"`
	// Embedding is the embedding model name.
	Embedding string `yaml:"embedding"`
	// EmbeddingMaxChunks caps the texts per embedding call.
	EmbeddingMaxChunks int `yaml:"embedding_max_chunks"`
	// EmbeddingDimension requests a vector size.
	EmbeddingDimension int `yaml:"embedding_dimension"`
	// Rerank is the rerank model name.
	Rerank string `yaml:"rerank"`
	// PriceInput and PriceOutput are per 1K tokens.
	PriceInput    float64 `yaml:"price_input"`
	PriceOutput   float64 `yaml:"price_output"`
	PriceCurrency string  `yaml:"price_currency"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var ADBPG_API_KEY.
	APIKey string `yaml:"api_key"`
	// RateLimitRPS is the per-IP request rate on /retrieval and /api/tools.
	RateLimitRPS float64 `yaml:"rate_limit_rps"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
	// File is an extra append-only log sink.
	File string `yaml:"file"`
}

// FilesConfig holds file resolution settings.
type FilesConfig struct {
	// BaseURL is the host's internal files API.
	BaseURL string `yaml:"base_url"`
}

// JobsConfig holds job polling settings.
type JobsConfig struct {
	// DBPath is the SQLite ledger path. Set to "disabled" to disable.
	DBPath string `yaml:"db_path"`
	// PollInterval and Timeout are Go durations, e.g. "3s", "30m".
	PollInterval string `yaml:"poll_interval"`
	Timeout      string `yaml:"timeout"`
}

// TracingConfig holds Langfuse tracing settings.
type TracingConfig struct {
	// PublicKey is the Langfuse public key. Prefer env var LANGFUSE_PUBLIC_KEY.
	PublicKey string `yaml:"public_key"`
	// SecretKey is the Langfuse secret key. Prefer env var LANGFUSE_SECRET_KEY.
	SecretKey string `yaml:"secret_key"`
	// Host is the Langfuse API host.
	Host string `yaml:"host"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"ANALYTICDB_KEY_ID", func(c *Config) string { return c.AnalyticDB.AccessKeyID }},
	{"ANALYTICDB_KEY_SECRET", func(c *Config) string { return c.AnalyticDB.AccessKeySecret }},
	{"ANALYTICDB_REGION_ID", func(c *Config) string { return c.AnalyticDB.RegionID }},
	{"ANALYTICDB_DBINSTANCE_ID", func(c *Config) string { return c.AnalyticDB.DBInstanceID }},
	{"ANALYTICDB_ENDPOINT", func(c *Config) string { return c.AnalyticDB.Endpoint }},
	{"ANALYTICDB_PROTOCOL", func(c *Config) string { return c.AnalyticDB.Protocol }},
	{"ANALYTICDB_MANAGER_ACCOUNT", func(c *Config) string { return c.AnalyticDB.ManagerAccount }},
	{"ANALYTICDB_MANAGER_ACCOUNT_PASSWORD", func(c *Config) string { return c.AnalyticDB.ManagerAccountPassword }},
	{"ANALYTICDB_NAMESPACE", func(c *Config) string { return c.AnalyticDB.Namespace }},
	{"ANALYTICDB_NAMESPACE_PASSWORD", func(c *Config) string { return c.AnalyticDB.NamespacePassword }},
	{"ANALYTICDB_READ_TIMEOUT", func(c *Config) string { return intStr(c.AnalyticDB.ReadTimeout) }},
	{"ANALYTICDB_CONNECT_TIMEOUT", func(c *Config) string { return intStr(c.AnalyticDB.ConnectTimeout) }},
	{"ADBPG_LLM_MODEL", func(c *Config) string { return c.Model.LLM }},
	{"ADBPG_EMBEDDING_MODEL", func(c *Config) string { return c.Model.Embedding }},
	{"ADBPG_EMBEDDING_MAX_CHUNKS", func(c *Config) string { return intStr(c.Model.EmbeddingMaxChunks) }},
	{"ADBPG_EMBEDDING_DIMENSION", func(c *Config) string { return intStr(c.Model.EmbeddingDimension) }},
	{"ADBPG_RERANK_MODEL", func(c *Config) string { return c.Model.Rerank }},
	{"ADBPG_PRICE_INPUT", func(c *Config) string { return floatStr(c.Model.PriceInput) }},
	{"ADBPG_PRICE_OUTPUT", func(c *Config) string { return floatStr(c.Model.PriceOutput) }},
	{"ADBPG_PRICE_CURRENCY", func(c *Config) string { return c.Model.PriceCurrency }},
	{"ADBPG_SERVER_HOST", func(c *Config) string { return c.Server.Host }},
	{"ADBPG_SERVER_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"ADBPG_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"ADBPG_RATE_LIMIT_RPS", func(c *Config) string { return floatStr(c.Server.RateLimitRPS) }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"LOG_FILE", func(c *Config) string { return c.Logging.File }},
	{"INTERNAL_FILES_URL", func(c *Config) string { return c.Files.BaseURL }},
	{"ADBPG_JOBS_DB", func(c *Config) string { return c.Jobs.DBPath }},
	{"ADBPG_JOB_POLL_INTERVAL", func(c *Config) string { return c.Jobs.PollInterval }},
	{"ADBPG_JOB_TIMEOUT", func(c *Config) string { return c.Jobs.Timeout }},
	{"LANGFUSE_PUBLIC_KEY", func(c *Config) string { return c.Tracing.PublicKey }},
	{"LANGFUSE_SECRET_KEY", func(c *Config) string { return c.Tracing.SecretKey }},
	{"LANGFUSE_HOST", func(c *Config) string { return c.Tracing.Host }},
}

// LoadDotEnv loads ./.env and ~/.env when present. Variables already in the
// environment are never overwritten. Returns the files that were loaded.
func LoadDotEnv(log *slog.Logger) ([]string, error) {
	var candidates []string
	candidates = append(candidates, ".env")
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".env"))
	}

	var loaded []string
	for _, p := range candidates {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return loaded, fmt.Errorf("config: failed to load %s: %w", p, err)
		}
		loaded = append(loaded, p)
		log.Debug("config: loaded .env file", slog.String("path", p))
	}
	return loaded, nil
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set; do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("ADBPG_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".adbpg", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("adbpg.yaml"); err == nil {
		return "adbpg.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

// floatStr converts a float64 to its shortest string, returning "" for zero.
func floatStr(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
