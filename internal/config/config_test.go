package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":8080" || cfg.Server.Auth.Mode != "disabled" {
		t.Fatalf("unexpected address: %s", cfg.Server.Address)
	}
	if cfg.Scraper.BookBaseURL != "https://book.clarity-lang.org" || cfg.Scraper.FetchTimeoutSeconds != 5 {
		t.Fatalf("unexpected scraper defaults: %+v", cfg.Scraper)
	}
	if len(cfg.Scraper.DocURLs) != 2 {
		t.Fatalf("expected two docs urls, got %d", len(cfg.Scraper.DocURLs))
	}
	if !cfg.TestPatterns.Live || len(cfg.TestPatterns.URLs) != 3 {
		t.Fatalf("unexpected test pattern defaults: %+v", cfg.TestPatterns)
	}
	if cfg.Storage.RunStore.Driver != "memory" || cfg.RunQueue.Driver != "memory" {
		t.Fatalf("expected memory drivers by default")
	}
	if cfg.RunQueue.RunTimeoutSeconds != 900 {
		t.Fatalf("unexpected run timeout default: %d", cfg.RunQueue.RunTimeoutSeconds)
	}
}

func TestLoadFileResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stackscrew.yaml")
	content := `
llm:
  provider: gemini
  gemini:
    api_key: file-key
crew:
  agents_path: configs/agents.yaml
  max_iterations: 3
  default_inputs:
    project_name: Vault
test_patterns:
  live: false
run_queue:
  driver: redis
  worker: 4
  redis:
    address: localhost:6379
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LLM.Provider != "gemini" || cfg.LLM.Gemini.APIKey != "file-key" {
		t.Fatalf("unexpected llm config: %+v", cfg.LLM)
	}
	if want := filepath.Join(dir, "configs", "agents.yaml"); cfg.Crew.AgentsPath != want {
		t.Fatalf("agents path = %s, want %s", cfg.Crew.AgentsPath, want)
	}
	if cfg.Crew.MaxIterations != 3 || cfg.Crew.DefaultInputs["project_name"] != "Vault" {
		t.Fatalf("unexpected crew config: %+v", cfg.Crew)
	}
	if cfg.TestPatterns.Live {
		t.Fatalf("expected live pattern harvesting to be disabled")
	}
	if cfg.RunQueue.Driver != "redis" || cfg.RunQueue.Worker != 4 || cfg.RunQueue.Redis.Queue != "stackscrew:runs" {
		t.Fatalf("unexpected queue config: %+v", cfg.RunQueue)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("STACKSCREW_SERVER_ADDRESS", ":9999")
	t.Setenv("STACKSCREW_LLM_PROVIDER", "gemini")
	t.Setenv("STACKSCREW_RUN_QUEUE_RUN_TIMEOUT_SECONDS", "60")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":9999" || cfg.LLM.Provider != "gemini" || cfg.RunQueue.RunTimeoutSeconds != 60 {
		t.Fatalf("env overrides not applied: %s %s %d", cfg.Server.Address, cfg.LLM.Provider, cfg.RunQueue.RunTimeoutSeconds)
	}
}

func TestAPIKeyFromNamedEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", " sk-test ")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LLM.OpenAI.APIKey != "sk-test" {
		t.Fatalf("expected api key from env, got %q", cfg.LLM.OpenAI.APIKey)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadAuthTokens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.yaml")
	content := `
server:
  auth:
    mode: token
    tokens:
      - name: ci
        token: ci-secret
        permissions: [runs:read, runs:write]
      - name: dashboard
        token_sha256: 9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08
        permissions: [runs:read]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	auth := cfg.Server.Auth
	if auth.Mode != "token" || len(auth.Tokens) != 2 {
		t.Fatalf("unexpected auth config: %+v", auth)
	}
	if auth.Tokens[0].Token != "ci-secret" || len(auth.Tokens[0].Permissions) != 2 {
		t.Fatalf("unexpected first token: %+v", auth.Tokens[0])
	}
	if auth.Tokens[1].TokenSHA256 == "" || auth.Tokens[1].Permissions[0] != "runs:read" {
		t.Fatalf("unexpected second token: %+v", auth.Tokens[1])
	}
}
