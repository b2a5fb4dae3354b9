// Package audit writes one structured entry per CLI invocation recording
// which AnalyticDB instance, namespace and models the command ran against.
// Credentials appear only as "set" or "unset".
package audit

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"strings"
)

type redaction int

const (
	plain redaction = iota
	// secret values are logged as presence only.
	secret
	// endpoint values lose userinfo and query, which may carry tokens.
	endpoint
)

type envVar struct {
	key string
	how redaction
}

// tracked is the ordered set of variables in every entry.
var tracked = []envVar{
	{"ANALYTICDB_KEY_ID", secret},
	{"ANALYTICDB_KEY_SECRET", secret},
	{"ANALYTICDB_REGION_ID", plain},
	{"ANALYTICDB_DBINSTANCE_ID", plain},
	{"ANALYTICDB_ENDPOINT", endpoint},
	{"ANALYTICDB_PROTOCOL", plain},
	{"ANALYTICDB_MANAGER_ACCOUNT", plain},
	{"ANALYTICDB_MANAGER_ACCOUNT_PASSWORD", secret},
	{"ANALYTICDB_NAMESPACE", plain},
	{"ANALYTICDB_NAMESPACE_PASSWORD", secret},
	{"ADBPG_LLM_MODEL", plain},
	{"ADBPG_EMBEDDING_MODEL", plain},
	{"ADBPG_RERANK_MODEL", plain},
	{"ADBPG_API_KEY", secret},
	{"ADBPG_JOBS_DB", plain},
	{"INTERNAL_FILES_URL", endpoint},
	{"LOG_LEVEL", plain},
	{"LOG_FORMAT", plain},
	{"LOG_FILE", plain},
	{"LANGFUSE_HOST", endpoint},
	{"LANGFUSE_PUBLIC_KEY", secret},
	{"LANGFUSE_SECRET_KEY", secret},
}

// LogCommandStart records the command path, the config sources that were
// loaded, and the sanitised ANALYTICDB_*/ADBPG_* environment.
func LogCommandStart(ctx context.Context, log *slog.Logger, command, configPath string, dotenv []string) {
	attrs := []slog.Attr{
		slog.String("command", command),
		slog.String("config_file", shortenHome(configPath)),
	}
	if len(dotenv) > 0 {
		files := make([]string, len(dotenv))
		for i, f := range dotenv {
			files[i] = shortenHome(f)
		}
		attrs = append(attrs, slog.Any("dotenv", files))
	}
	attrs = append(attrs, slog.GroupAttrs("env", envAttrs(os.Getenv)...))

	log.LogAttrs(ctx, slog.LevelInfo, "audit: command start", attrs...)
}

func envAttrs(getenv func(string) string) []slog.Attr {
	out := make([]slog.Attr, 0, len(tracked))
	for _, v := range tracked {
		out = append(out, slog.String(v.key, sanitise(v.how, getenv(v.key))))
	}
	return out
}

// Sanitise returns the loggable form of an environment value: presence for
// credentials, a stripped URL for endpoints, the value itself otherwise.
func Sanitise(key, value string) string {
	for _, v := range tracked {
		if v.key == key {
			return sanitise(v.how, value)
		}
	}
	return sanitise(plain, value)
}

func sanitise(how redaction, value string) string {
	if value == "" {
		return "unset"
	}
	switch how {
	case secret:
		return "set"
	case endpoint:
		u, err := url.Parse(value)
		if err != nil || u.Host == "" {
			// Bare hosts such as gpdb.aliyuncs.com.
			return value
		}
		u.User = nil
		u.RawQuery = ""
		u.Fragment = ""
		return u.String()
	}
	return value
}

func shortenHome(p string) string {
	if p == "" {
		return "none"
	}
	home, err := os.UserHomeDir()
	if err == nil && home != "" && strings.HasPrefix(p, home) {
		return "~" + p[len(home):]
	}
	return p
}
