// Copyright 2026 © The Faktotum Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("unexpected log defaults: %+v", cfg.Log)
	}
	if cfg.LLM.Provider != "ollama" {
		t.Errorf("unexpected llm default: %+v", cfg.LLM)
	}
	if cfg.Memory.QdrantAddr != "localhost:6334" {
		t.Errorf("unexpected memory default: %+v", cfg.Memory)
	}
	if cfg.RolesDir != "./roles" {
		t.Errorf("unexpected roles dir: %q", cfg.RolesDir)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  format: json
llm:
  provider: anthropic
  model: claude-sonnet-4-5
default_agent: research
agents:
  research:
    role_file: research.md
    tools: [query_knowledge_base, web_search]
    temperature: 0.3
  architekt:
    role_file: architekt.md
    provider: openai
    model: gpt-4o
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("file values not applied: %+v", cfg.Log)
	}
	if cfg.DefaultAgent != "research" {
		t.Errorf("unexpected default agent: %q", cfg.DefaultAgent)
	}
	if len(cfg.Agents) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(cfg.Agents))
	}
	research := cfg.Agents["research"]
	if research.RoleFile != "research.md" || len(research.Tools) != 2 {
		t.Errorf("unexpected research agent: %+v", research)
	}
	if research.Temperature != 0.3 {
		t.Errorf("unexpected temperature: %v", research.Temperature)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("FAKTOTUM_LOG_LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("expected env override, got %q", cfg.Log.Level)
	}
}

func TestLoadUnknownDefaultAgent(t *testing.T) {
	path := writeConfig(t, `
default_agent: missing
agents:
  research:
    role_file: research.md
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown default agent")
	}
}

func TestLoadAgentWithoutRoleFile(t *testing.T) {
	path := writeConfig(t, `
agents:
  research:
    model: gpt-4o
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing role_file")
	}
}

func TestResolveAgentAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
llm:
  provider: anthropic
  model: claude-sonnet-4-5
agents:
  research:
    role_file: research.md
  architekt:
    role_file: architekt.md
    provider: openai
    model: gpt-4o
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	research, ok := cfg.ResolveAgent("research")
	if !ok {
		t.Fatal("expected research agent")
	}
	if research.Provider != "anthropic" || research.Model != "claude-sonnet-4-5" {
		t.Errorf("defaults not applied: %+v", research)
	}

	architekt, ok := cfg.ResolveAgent("architekt")
	if !ok {
		t.Fatal("expected architekt agent")
	}
	if architekt.Provider != "openai" || architekt.Model != "gpt-4o" {
		t.Errorf("explicit values overridden: %+v", architekt)
	}

	if _, ok := cfg.ResolveAgent("unbekannt"); ok {
		t.Error("did not expect unknown agent to resolve")
	}
}
