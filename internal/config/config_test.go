// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, duration parsing, and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "parley.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
llm:
  base_url: "https://llm.example.com/v1"
  api_key: "sk-test"
  model: "gpt-4o-mini"
  system_prompt: "You are parley."

search:
  enabled: true
  base_url: "https://search.example.com"
  api_key: "search-test"
  num_results: 3
  highlights: true

storage:
  dir: "./data"

cache:
  capacity: 16
  ttl: "10m"
  sweep_interval: "1m"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("expected model gpt-4o-mini, got %q", cfg.LLM.Model)
	}
	if cfg.Cache.Capacity != 16 {
		t.Errorf("expected capacity 16, got %d", cfg.Cache.Capacity)
	}
	if cfg.Cache.TTL != 10*time.Minute {
		t.Errorf("expected TTL 10m, got %v", cfg.Cache.TTL)
	}
	if cfg.Cache.SweepInterval != time.Minute {
		t.Errorf("expected sweep interval 1m, got %v", cfg.Cache.SweepInterval)
	}
	if !cfg.Search.Enabled || cfg.Search.NumResults != 3 {
		t.Errorf("unexpected search config: %+v", cfg.Search)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("PARLEY_TEST_KEY", "sk-from-env")

	configPath := writeConfig(t, `
llm:
  api_key: "${PARLEY_TEST_KEY}"
  model: "gpt-4o-mini"
storage:
  dir: "./data"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LLM.APIKey != "sk-from-env" {
		t.Errorf("expected api key from env, got %q", cfg.LLM.APIKey)
	}
}

func TestLoad_Defaults(t *testing.T) {
	configPath := writeConfig(t, `
llm:
  api_key: "sk-test"
  model: "gpt-4o-mini"
storage:
  dir: "./data"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Cache.Capacity != 32 {
		t.Errorf("expected default capacity 32, got %d", cfg.Cache.Capacity)
	}
	if cfg.Cache.TTL != 30*time.Minute {
		t.Errorf("expected default TTL 30m, got %v", cfg.Cache.TTL)
	}
	if cfg.Cache.SweepInterval != 5*time.Minute {
		t.Errorf("expected default sweep interval 5m, got %v", cfg.Cache.SweepInterval)
	}
	if cfg.LLM.SystemPrompt == "" {
		t.Error("expected a default system prompt")
	}
	if cfg.Search.Enabled {
		t.Error("search should be disabled by default")
	}
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing api key",
			content: `
llm:
  model: "gpt-4o-mini"
storage:
  dir: "./data"
`,
			wantErr: "llm.api_key",
		},
		{
			name: "missing model",
			content: `
llm:
  api_key: "sk-test"
storage:
  dir: "./data"
`,
			wantErr: "llm.model",
		},
		{
			name: "missing storage dir",
			content: `
llm:
  api_key: "sk-test"
  model: "gpt-4o-mini"
`,
			wantErr: "storage.dir",
		},
		{
			name: "search enabled without key",
			content: `
llm:
  api_key: "sk-test"
  model: "gpt-4o-mini"
storage:
  dir: "./data"
search:
  enabled: true
  base_url: "https://search.example.com"
`,
			wantErr: "search.api_key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeConfig(t, tt.content)
			_, err := Load(configPath)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, `
llm:
  api_key: "sk-test"
  model: "gpt-4o-mini"
storage:
  dir: "./data"
cache:
  ttl: "not-a-duration"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("expected an error for invalid duration")
	}
	if !strings.Contains(err.Error(), "cache.ttl") {
		t.Errorf("expected error mentioning cache.ttl, got: %v", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected an error for missing file")
	}
}
