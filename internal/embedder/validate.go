package embedder

import (
	"log/slog"
	"strings"
)

// knownChatModelPrefixes contains name fragments that identify chat models
// which are NOT suitable for embedding.
var knownChatModelPrefixes = []string{
	"qwen-turbo",
	"qwen-plus",
	"qwen-max",
	"qwen-long",
	"qwq",
	"deepseek",
	"llama",
	"glm-",
	"baichuan",
	"moonshot",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// WarnIfChatModel logs a warning when the configured embedding model looks
// like a chat model. It never fails; the service has the final word.
func WarnIfChatModel(cfg Config, log *slog.Logger) {
	if cfg.Model == "" || !looksLikeChatModel(cfg.Model) {
		return
	}
	log.Warn("embedder: ADBPG_EMBEDDING_MODEL looks like a chat model, not an embedding model",
		slog.String("model", cfg.Model),
		slog.String("hint", "use a dedicated embedding model e.g. text-embedding-v3"),
	)
}
