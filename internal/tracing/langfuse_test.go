package tracing

import (
	"io"
	"log/slog"
	"testing"
)

func TestConfigFromEnv(t *testing.T) {
	t.Parallel()

	env := func(kv map[string]string) func(string) string {
		return func(k string) string { return kv[k] }
	}

	if _, ok := configFromEnv(env(map[string]string{"LANGFUSE_SECRET_KEY": "sk"})); ok {
		t.Error("enabled without a public key")
	}
	if _, ok := configFromEnv(env(map[string]string{"LANGFUSE_PUBLIC_KEY": "pk"})); ok {
		t.Error("enabled without a secret key")
	}

	cfg, ok := configFromEnv(env(map[string]string{"LANGFUSE_PUBLIC_KEY": "pk", "LANGFUSE_SECRET_KEY": "sk"}))
	if !ok {
		t.Fatal("expected tracing enabled")
	}
	if cfg.Host != defaultHost || cfg.SampleRate != 1 || cfg.Name != "adbpg" {
		t.Errorf("defaults = %+v", cfg)
	}

	for rate, want := range map[string]float64{"0.25": 0.25, "0": 1, "2": 1, "x": 1} {
		cfg, _ := configFromEnv(env(map[string]string{
			"LANGFUSE_PUBLIC_KEY": "pk", "LANGFUSE_SECRET_KEY": "sk",
			"LANGFUSE_HOST": "https://cloud.langfuse.com", "LANGFUSE_SAMPLE_RATE": rate,
		}))
		if cfg.SampleRate != want || cfg.Host != "https://cloud.langfuse.com" {
			t.Errorf("rate %q: got host %q rate %v", rate, cfg.Host, cfg.SampleRate)
		}
	}
}

func TestRegister_Disabled(t *testing.T) {
	t.Setenv("LANGFUSE_PUBLIC_KEY", "")
	t.Setenv("LANGFUSE_SECRET_KEY", "")

	Register(slog.New(slog.NewTextHandler(io.Discard, nil)))()
}
