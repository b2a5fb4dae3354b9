// Package tracing wires Langfuse into eino's global callbacks. The chat
// model, embedder, retriever and tools all emit eino callbacks, so every
// model call and tool run shows up as a trace once tracing is enabled.
//
//	LANGFUSE_PUBLIC_KEY, LANGFUSE_SECRET_KEY  both required
//	LANGFUSE_HOST                             default http://localhost:3000
//	LANGFUSE_SAMPLE_RATE                      0 < rate <= 1, default 1
package tracing

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"

	"github.com/54b3r/adbpg-go/internal/version"
)

const defaultHost = "http://localhost:3000"

// configFromEnv builds the Langfuse config. ok is false when either key is
// missing.
func configFromEnv(getenv func(string) string) (cfg *langfuse.Config, ok bool) {
	pub, sec := getenv("LANGFUSE_PUBLIC_KEY"), getenv("LANGFUSE_SECRET_KEY")
	if pub == "" || sec == "" {
		return nil, false
	}
	cfg = &langfuse.Config{
		Host:       getenv("LANGFUSE_HOST"),
		PublicKey:  pub,
		SecretKey:  sec,
		Name:       "adbpg",
		Release:    version.Version,
		SampleRate: 1,
	}
	if cfg.Host == "" {
		cfg.Host = defaultHost
	}
	if r, err := strconv.ParseFloat(getenv("LANGFUSE_SAMPLE_RATE"), 64); err == nil && r > 0 && r <= 1 {
		cfg.SampleRate = r
	}
	return cfg, true
}

// Register installs the Langfuse handler globally when configured. The
// returned flush is always safe to call and sends buffered traces.
func Register(log *slog.Logger) (flush func()) {
	cfg, ok := configFromEnv(os.Getenv)
	if !ok {
		log.Debug("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY or LANGFUSE_SECRET_KEY not set"))
		return func() {}
	}
	handler, flusher := langfuse.NewLangfuseHandler(cfg)
	callbacks.AppendGlobalHandlers(handler)
	log.Info("langfuse tracing enabled",
		slog.String("host", cfg.Host),
		slog.Float64("sample_rate", cfg.SampleRate),
	)
	return flusher
}
