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
queue:
  addr: redis.internal:6379
  stream: file-events
  group: workers
  visibility_seconds: 60
blob:
  dir: /data/files
embedding:
  provider: ollama
  model: nomic-embed-text
  batch_size: 32
qdrant:
  host: qdrant.internal
  port: 6334
  collection: my-chunks
consumer:
  batch_size: 5
context:
  top_k: 4
  max_chars: 8000
logging:
  level: debug
  format: text
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Clear env vars that the YAML should set.
	envKeys := []string{
		"REDIS_ADDR", "QUEUE_STREAM", "QUEUE_GROUP", "QUEUE_VISIBILITY_SECONDS",
		"BLOB_DIR",
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "EMBEDDING_BATCH_SIZE",
		"QDRANT_HOST", "QDRANT_PORT", "QDRANT_COLLECTION",
		"CONSUMER_BATCH_SIZE", "CONTEXT_TOP_K", "CONTEXT_MAX_CHARS",
		"LOG_LEVEL", "LOG_FORMAT",
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
		"REDIS_ADDR":               "redis.internal:6379",
		"QUEUE_STREAM":             "file-events",
		"QUEUE_GROUP":              "workers",
		"QUEUE_VISIBILITY_SECONDS": "60",
		"BLOB_DIR":                 "/data/files",
		"EMBEDDING_PROVIDER":       "ollama",
		"EMBEDDING_MODEL":          "nomic-embed-text",
		"EMBEDDING_BATCH_SIZE":     "32",
		"QDRANT_HOST":              "qdrant.internal",
		"QDRANT_PORT":              "6334",
		"QDRANT_COLLECTION":        "my-chunks",
		"CONSUMER_BATCH_SIZE":      "5",
		"CONTEXT_TOP_K":            "4",
		"CONTEXT_MAX_CHARS":        "8000",
		"LOG_LEVEL":                "debug",
		"LOG_FORMAT":               "text",
	}
	for key, want := range checks {
		if got := os.Getenv(key); got != want {
			t.Errorf("env %s: got %q, want %q", key, got, want)
		}
	}
}

func TestLoad_EnvWinsOverYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
qdrant:
  host: from-yaml
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("QDRANT_HOST", "from-env")

	if _, err := Load(cfgPath, slog.Default()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := os.Getenv("QDRANT_HOST"); got != "from-env" {
		t.Errorf("env var overwritten by YAML: got %q", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("queue: [not: valid"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(cfgPath, slog.Default()); err == nil {
		t.Error("expected parse error for invalid YAML")
	}
}

func TestEnvInt(t *testing.T) {
	t.Setenv("CONTEXTD_TEST_INT", "42")
	if got := EnvInt("CONTEXTD_TEST_INT", 7); got != 42 {
		t.Errorf("got %d, want 42", got)
	}
	if got := EnvInt("CONTEXTD_TEST_INT_UNSET", 7); got != 7 {
		t.Errorf("unset: got %d, want default 7", got)
	}
	t.Setenv("CONTEXTD_TEST_INT", "not a number")
	if got := EnvInt("CONTEXTD_TEST_INT", 7); got != 7 {
		t.Errorf("invalid: got %d, want default 7", got)
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("CONTEXTD_TEST_BOOL", "true")
	if !EnvBool("CONTEXTD_TEST_BOOL", false) {
		t.Error("expected true")
	}
	t.Setenv("CONTEXTD_TEST_BOOL", "off")
	if EnvBool("CONTEXTD_TEST_BOOL", true) {
		t.Error("expected false for 'off'")
	}
	if !EnvBool("CONTEXTD_TEST_BOOL_UNSET", true) {
		t.Error("unset should return default")
	}
}
