package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestSanitise(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key, value, want string
	}{
		{"ANALYTICDB_KEY_SECRET", "s3cr3t", "set"},
		{"ANALYTICDB_NAMESPACE_PASSWORD", "", "unset"},
		{"ADBPG_API_KEY", "k", "set"},
		{"ANALYTICDB_REGION_ID", "cn-hangzhou", "cn-hangzhou"},
		{"ANALYTICDB_REGION_ID", "", "unset"},
		{"ANALYTICDB_ENDPOINT", "gpdb.aliyuncs.com", "gpdb.aliyuncs.com"},
		{"INTERNAL_FILES_URL", "http://user:pw@files.local:5001/x?token=abc#f", "http://files.local:5001/x"},
		{"UNTRACKED", "value", "value"},
	}
	for _, tc := range tests {
		if got := Sanitise(tc.key, tc.value); got != tc.want {
			t.Errorf("Sanitise(%s, %q) = %q, want %q", tc.key, tc.value, got, tc.want)
		}
	}
}

func TestEnvAttrs_NoSecretValues(t *testing.T) {
	t.Parallel()

	env := map[string]string{}
	for _, v := range tracked {
		env[v.key] = "value-of-" + v.key
	}
	for _, a := range envAttrs(func(k string) string { return env[k] }) {
		isSecret := false
		for _, v := range tracked {
			if v.key == a.Key && v.how == secret {
				isSecret = true
			}
		}
		if isSecret && a.Value.String() != "set" {
			t.Errorf("%s logged as %q", a.Key, a.Value.String())
		}
	}
}

func TestLogCommandStart(t *testing.T) {
	t.Setenv("ANALYTICDB_KEY_SECRET", "do-not-log")
	t.Setenv("ANALYTICDB_NAMESPACE", "kb_ns")

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	LogCommandStart(context.Background(), log, "adbpg serve", "", []string{"/tmp/.env"})

	if strings.Contains(buf.String(), "do-not-log") {
		t.Fatalf("secret value leaked: %s", buf.String())
	}
	var entry struct {
		Command    string            `json:"command"`
		ConfigFile string            `json:"config_file"`
		Dotenv     []string          `json:"dotenv"`
		Env        map[string]string `json:"env"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry.Command != "adbpg serve" || entry.ConfigFile != "none" {
		t.Errorf("entry = %+v", entry)
	}
	if len(entry.Dotenv) != 1 || entry.Dotenv[0] != "/tmp/.env" {
		t.Errorf("dotenv = %v", entry.Dotenv)
	}
	if entry.Env["ANALYTICDB_NAMESPACE"] != "kb_ns" || entry.Env["ANALYTICDB_KEY_SECRET"] != "set" {
		t.Errorf("env = %v", entry.Env)
	}
}

func TestShortenHome(t *testing.T) {
	t.Parallel()

	if got := shortenHome(""); got != "none" {
		t.Errorf("empty path = %q", got)
	}
	if got := shortenHome("/tmp/config.yaml"); got != "/tmp/config.yaml" {
		t.Errorf("outside home = %q", got)
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		if got := shortenHome(home + "/.adbpg/config.yaml"); got != "~/.adbpg/config.yaml" {
			t.Errorf("inside home = %q", got)
		}
	}
}
