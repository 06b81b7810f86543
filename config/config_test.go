package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ALLOWED_ORIGIN", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Configured() {
		t.Error("expected unconfigured provider without a key")
	}
	if cfg.LLM.Model != DefaultModel {
		t.Errorf("expected model %s, got %s", DefaultModel, cfg.LLM.Model)
	}
	if cfg.LLM.ResponseMode != "json_object" {
		t.Errorf("expected json_object response mode, got %s", cfg.LLM.ResponseMode)
	}
	if cfg.Feeds.NewsURL != DefaultNewsFeedURL || cfg.Feeds.TrendsURL != DefaultTrendsFeedURL {
		t.Errorf("unexpected feed urls: %+v", cfg.Feeds)
	}
	if cfg.Client.Timeout != 180*time.Second {
		t.Errorf("expected 180s client timeout, got %v", cfg.Client.Timeout)
	}
	if cfg.History.Capacity != 20 || cfg.History.FallbackCapacity != 10 {
		t.Errorf("unexpected history capacities: %+v", cfg.History)
	}
	if cfg.Server.AllowedOrigin != "*" {
		t.Errorf("expected wildcard origin, got %q", cfg.Server.AllowedOrigin)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_EXTRA_KEYS", " sk-two, ,sk-three ")
	t.Setenv("ALLOWED_ORIGIN", "https://kahaani.example")
	t.Setenv("LLM_RESPONSE_MODE", "json_schema")
	t.Setenv("HISTORY_CAPACITY", "5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !cfg.Configured() {
		t.Fatal("expected configured provider")
	}
	keys := cfg.APIKeys()
	if len(keys) != 3 || keys[0] != "sk-test" || keys[2] != "sk-three" {
		t.Errorf("unexpected keys: %v", keys)
	}
	if cfg.Server.AllowedOrigin != "https://kahaani.example" {
		t.Errorf("unexpected origin %q", cfg.Server.AllowedOrigin)
	}
	if cfg.LLM.ResponseMode != "json_schema" {
		t.Errorf("expected json_schema, got %s", cfg.LLM.ResponseMode)
	}
	if cfg.History.Capacity != 5 {
		t.Errorf("expected capacity 5, got %d", cfg.History.Capacity)
	}
	if cfg.History.FallbackCapacity != 5 {
		t.Errorf("fallback capacity must not exceed capacity, got %d", cfg.History.FallbackCapacity)
	}
}

func TestLoadFileAndUnknownResponseMode(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "kahaani.yaml")
	content := "llm:\n  model: gpt-test\n  response_mode: shouting\nfeeds:\n  timeout: 3s\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Model != "gpt-test" {
		t.Errorf("expected model from file, got %s", cfg.LLM.Model)
	}
	if cfg.LLM.ResponseMode != "json_object" {
		t.Errorf("unknown response mode should coerce to json_object, got %s", cfg.LLM.ResponseMode)
	}
	if cfg.Feeds.Timeout != 3*time.Second {
		t.Errorf("expected 3s feed timeout, got %v", cfg.Feeds.Timeout)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
