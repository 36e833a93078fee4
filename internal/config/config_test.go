package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
providers:
  openai:
    api_key: sk-test
  anthropic:
    api_key: ant-test
models:
  - name: gpt-4o-mini
    provider: openai
    input_cost_per_million: 0.15
    output_cost_per_million: 0.6
    batch_queue_limit: 2000000
benchmarks:
  gsm8k:
    max_output_tokens: 700
storage:
  type: sqlite
  path: data/test.db
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	m, ok := cfg.Model("gpt-4o-mini")
	if !ok {
		t.Fatal("Model(gpt-4o-mini): not found")
	}
	if m.Provider != "openai" || m.BatchQueueLimit != 2000000 {
		t.Fatalf("unexpected model config: %+v", m)
	}

	if got := cfg.MaxOutputTokens("gsm8k"); got != 700 {
		t.Fatalf("MaxOutputTokens(gsm8k): got %d want 700", got)
	}
	// Defaults fill the benchmarks the file omits.
	if got := cfg.MaxOutputTokens("mmlu"); got != 1 {
		t.Fatalf("MaxOutputTokens(mmlu): got %d want 1", got)
	}
	if got := cfg.MaxOutputTokens("bbh"); got != 1000 {
		t.Fatalf("MaxOutputTokens(bbh): got %d want 1000", got)
	}
	if got := cfg.MaxOutputTokens("unknown"); got != 1 {
		t.Fatalf("MaxOutputTokens(unknown): got %d want 1", got)
	}
}

func TestLoad_EnvOverridesAPIKeys(t *testing.T) {
	path := writeConfig(t, `
providers:
  openai:
    api_key: from-file
`)

	t.Setenv("OPENAI_API_KEY", "from-env")
	t.Setenv("GEMINI_API_KEY", "gem-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := cfg.Providers["openai"].APIKey; got != "from-env" {
		t.Fatalf("openai api key: got %q want %q", got, "from-env")
	}
	if got := cfg.Providers["google"].APIKey; got != "gem-env" {
		t.Fatalf("google api key: got %q want %q", got, "gem-env")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load: expected error for missing file")
	}
}

func TestModel_NotFound(t *testing.T) {
	cfg := &Config{}
	if _, ok := cfg.Model("missing"); ok {
		t.Fatal("Model(missing): unexpectedly found")
	}
}

func TestStorageConfig_DSN(t *testing.T) {
	tests := []struct {
		name    string
		storage StorageConfig
		want    string
		wantErr bool
	}{
		{name: "default", storage: StorageConfig{}, want: DefaultSQLitePath},
		{name: "sqlite path", storage: StorageConfig{Type: "sqlite", Path: "/tmp/x.db"}, want: "/tmp/x.db"},
		{name: "sqlite default path", storage: StorageConfig{Type: "SQLite"}, want: DefaultSQLitePath},
		{name: "memory", storage: StorageConfig{Type: "memory"}, want: ":memory:"},
		{name: "unsupported", storage: StorageConfig{Type: "postgres"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.storage.DSN()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("DSN: %v", err)
			}
			if got != tt.want {
				t.Fatalf("DSN: got %q want %q", got, tt.want)
			}
		})
	}
}
