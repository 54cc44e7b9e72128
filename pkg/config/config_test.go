package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Pipeline.FinanceConfidence != 0.7 {
		t.Errorf("expected finance confidence 0.7, got %v", cfg.Pipeline.FinanceConfidence)
	}
	if cfg.Pipeline.DuplicateSimilarity != 0.8 {
		t.Errorf("expected duplicate similarity 0.8, got %v", cfg.Pipeline.DuplicateSimilarity)
	}
	if cfg.Pipeline.DefaultLookback != 5*time.Minute {
		t.Errorf("expected 5m lookback, got %v", cfg.Pipeline.DefaultLookback)
	}
	if cfg.Pipeline.RelevanceBatchSize != 8 {
		t.Errorf("expected batch size 8, got %d", cfg.Pipeline.RelevanceBatchSize)
	}
	if cfg.Capture.BaseURL != "http://localhost:3030" {
		t.Errorf("unexpected capture url %q", cfg.Capture.BaseURL)
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	path := writeConfig(t, "agentview.yaml", `
app:
  name: test
providers:
  openai:
    api_key: sk-file
    model: o3-mini
    enabled: true
  ollama:
    model: phi4
    enabled: true
pipeline:
  finance_confidence: 0.9
  default_lookback: 15m
gateways:
  telegram:
    token: abc
    chat_id: 42
    enabled: true
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	name, p := cfg.GetDefaultProvider()
	if name != "openai" || p.APIKey != "sk-file" || p.Model != "o3-mini" {
		t.Errorf("unexpected default provider %s %+v", name, p)
	}
	if _, ok := cfg.GetProvider("ollama"); !ok {
		t.Error("expected ollama provider to be enabled")
	}
	if cfg.Pipeline.FinanceConfidence != 0.9 {
		t.Errorf("expected 0.9, got %v", cfg.Pipeline.FinanceConfidence)
	}
	if cfg.Pipeline.DefaultLookback != 15*time.Minute {
		t.Errorf("expected 15m, got %v", cfg.Pipeline.DefaultLookback)
	}
	tg, ok := cfg.GetTelegramConfig()
	if !ok || tg.ChatID != 42 {
		t.Errorf("unexpected telegram config %+v", tg)
	}
}

func TestLoadConfig_EnvAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	path := writeConfig(t, "agentview.json", `{"app": {"name": "json"}}`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Providers["openai"].APIKey != "sk-env" {
		t.Errorf("expected env api key, got %q", cfg.Providers["openai"].APIKey)
	}
	if cfg.App.Name != "json" {
		t.Errorf("expected app name from json file, got %q", cfg.App.Name)
	}
}

func TestLoadConfig_InvalidPolicy(t *testing.T) {
	path := writeConfig(t, "bad.yaml", "pipeline:\n  finance_confidence: 1.5\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error for confidence > 1")
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
