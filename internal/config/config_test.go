package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ORDER_AGENT_CONFIG", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.Source.RetryAttempts != 3 || cfg.Source.RetryDelay != time.Second {
		t.Fatalf("unexpected retry defaults: %+v", cfg.Source)
	}
	if cfg.Extractor.CallTimeout != 120*time.Second || cfg.Extractor.ChunkThreshold != 4000 {
		t.Fatalf("unexpected extractor defaults: %+v", cfg.Extractor)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	content := `
server:
  address: ":6000"
source:
  baseURL: "http://orders.internal:5001"
  retryDelay: 250ms
extractor:
  model: "test-model"
  concurrency: 4
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ORDER_AGENT_SOURCE_LIMIT", "5")
	t.Setenv("ORDER_AGENT_LLM_API_KEY", "sk-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":6000" || cfg.Source.BaseURL != "http://orders.internal:5001" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Source.RetryDelay != 250*time.Millisecond || cfg.Source.RetryAttempts != 3 {
		t.Fatalf("expected file delay with default attempts, got %+v", cfg.Source)
	}
	if cfg.Source.Limit != 5 || cfg.Extractor.ResolveAPIKey() != "sk-env" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.Extractor.Concurrency != 4 || cfg.Extractor.Model != "test-model" {
		t.Fatalf("unexpected extractor config: %+v", cfg.Extractor)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	content := "source:\n  retryAttempts: 0\ncache:\n  backend: redis\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "RetryAttempts") || !strings.Contains(err.Error(), "Addr") {
		t.Fatalf("expected both failures reported, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestResolveAPIKeyFromNamedEnv(t *testing.T) {
	t.Setenv("CUSTOM_KEY", "sk-custom")
	if got := (ExtractorConfig{APIKeyEnv: "CUSTOM_KEY"}).ResolveAPIKey(); got != "sk-custom" {
		t.Fatalf("expected key from named env, got %q", got)
	}
}

func TestLoadShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "order-agent.yaml"))
	if err != nil {
		t.Fatalf("shipped config must load: %v", err)
	}
	if cfg.Extractor.Concurrency != 2 || cfg.Extractor.Headers["X-Title"] != "order-agent" {
		t.Fatalf("unexpected extractor config: %+v", cfg.Extractor)
	}
	if cfg.Source.RetryAttempts != 3 || cfg.Source.RetryDelay.String() != "1s" {
		t.Fatalf("unexpected source config: %+v", cfg.Source)
	}
}
