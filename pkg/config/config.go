// Copyright 2026 © The Faktotum Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads engine configuration from YAML with
// FAKTOTUM_-prefixed environment overrides layered on top.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Log          LogConfig              `koanf:"log"`
	LLM          LLMConfig              `koanf:"llm"`
	Telemetry    TelemetryConfig        `koanf:"telemetry"`
	Memory       MemoryConfig           `koanf:"memory"`
	Tools        ToolsConfig            `koanf:"tools"`
	History      HistoryConfig          `koanf:"history"`
	MCP          MCPConfig              `koanf:"mcp"`
	RolesDir     string                 `koanf:"roles_dir"`
	DefaultAgent string                 `koanf:"default_agent"`
	Agents       map[string]AgentConfig `koanf:"agents"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

// LLMConfig holds provider defaults. Per-agent settings override them.
type LLMConfig struct {
	Provider string `koanf:"provider"` // anthropic, openai, ollama
	Model    string `koanf:"model"`
	BaseURL  string `koanf:"base_url"`
	APIKey   string `koanf:"api_key"`
}

type TelemetryConfig struct {
	Enabled      bool   `koanf:"enabled"`
	Exporter     string `koanf:"exporter"` // stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

type MemoryConfig struct {
	Enabled           bool   `koanf:"enabled"`
	QdrantAddr        string `koanf:"qdrant_addr"`
	ProjectCollection string `koanf:"project_collection"`
	GlobalCollection  string `koanf:"global_collection"`
	EmbedderBaseURL   string `koanf:"embedder_base_url"`
	EmbedderModel     string `koanf:"embedder_model"`
}

type ToolsConfig struct {
	TavilyAPIKey string `koanf:"tavily_api_key"`
	OutputDir    string `koanf:"output_dir"`
}

type HistoryConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

type MCPConfig struct {
	Servers []MCPServerConfig `koanf:"servers"`
}

type MCPServerConfig struct {
	Name    string   `koanf:"name"`
	Command string   `koanf:"command"`
	Args    []string `koanf:"args"`
}

// AgentConfig binds one agent to a role, a provider, and a tool set.
type AgentConfig struct {
	RoleFile      string   `koanf:"role_file"`
	Provider      string   `koanf:"provider"`
	Model         string   `koanf:"model"`
	Temperature   float64  `koanf:"temperature"`
	Tools         []string `koanf:"tools"`
	MaxIterations int      `koanf:"max_iterations"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	k.Set("log.level", "info")
	k.Set("log.format", "text")
	k.Set("llm.provider", "ollama")
	k.Set("llm.model", "qwen2.5-coder:7b-instruct-q5_K_M")
	k.Set("llm.base_url", "http://localhost:11434")

	k.Set("telemetry.enabled", false)
	k.Set("telemetry.exporter", "stdout")

	k.Set("memory.enabled", false)
	k.Set("memory.qdrant_addr", "localhost:6334")
	k.Set("memory.project_collection", "projects")
	k.Set("memory.global_collection", "knowledge_base")
	k.Set("memory.embedder_base_url", "http://localhost:11434")
	k.Set("memory.embedder_model", "nomic-embed-text")

	k.Set("tools.output_dir", "./outputs")
	k.Set("history.enabled", false)
	k.Set("history.path", "./faktotum.db")
	k.Set("roles_dir", "./roles")

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 2. Load from ENV (FAKTOTUM_LLM_PROVIDER -> llm.provider)
	if err := k.Load(env.Provider("FAKTOTUM_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "FAKTOTUM_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DefaultAgent != "" {
		if _, ok := c.Agents[c.DefaultAgent]; !ok {
			return fmt.Errorf("default_agent %q is not defined in agents", c.DefaultAgent)
		}
	}
	for name, agent := range c.Agents {
		if agent.RoleFile == "" {
			return fmt.Errorf("agent %q: role_file is required", name)
		}
	}
	return nil
}

// AgentNames returns the configured agent names.
func (c *Config) AgentNames() []string {
	names := make([]string, 0, len(c.Agents))
	for name := range c.Agents {
		names = append(names, name)
	}
	return names
}

// ResolveAgent returns the agent config with LLM defaults applied.
func (c *Config) ResolveAgent(name string) (AgentConfig, bool) {
	agent, ok := c.Agents[name]
	if !ok {
		return AgentConfig{}, false
	}
	if agent.Provider == "" {
		agent.Provider = c.LLM.Provider
	}
	if agent.Model == "" {
		agent.Model = c.LLM.Model
	}
	return agent, true
}
