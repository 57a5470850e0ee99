// Copyright 2026 © The Faktotum Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/nwiesmann/faktotum/pkg/agent"
	"github.com/nwiesmann/faktotum/pkg/config"
	"github.com/nwiesmann/faktotum/pkg/llm"
	"github.com/nwiesmann/faktotum/pkg/mcp"
	"github.com/nwiesmann/faktotum/pkg/memory"
	ollamamem "github.com/nwiesmann/faktotum/pkg/memory/ollama"
	"github.com/nwiesmann/faktotum/pkg/memory/qdrant"
	"github.com/nwiesmann/faktotum/pkg/orchestrator"
	"github.com/nwiesmann/faktotum/pkg/roles"
	"github.com/nwiesmann/faktotum/pkg/tool"
	"github.com/nwiesmann/faktotum/pkg/tools"
	anthropicprovider "github.com/nwiesmann/faktotum/providers/anthropic"
	openaiprovider "github.com/nwiesmann/faktotum/providers/openai"
)

const supervisorAgent = "supervisor"

var mentionPattern = regexp.MustCompile(`@(\w+)`)

// app wires config, roles, memory, and MCP servers into ready-to-run
// agent sessions. Built once per invocation.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	roles   map[string]roles.Role // keyed by agent name
	aliases map[string]string     // lowercase alias -> agent name

	knowledge  *memory.Knowledge
	mcpClients []*mcp.Client
	mcpTools   map[string]tool.Tool
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		roles:    make(map[string]roles.Role, len(cfg.Agents)),
		aliases:  make(map[string]string),
		mcpTools: make(map[string]tool.Tool),
	}

	if err := a.loadRoles(); err != nil {
		return nil, err
	}
	if cfg.Memory.Enabled {
		if err := a.initMemory(ctx); err != nil {
			return nil, err
		}
	}
	if err := a.initMCP(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) loadRoles() error {
	for name, ac := range a.cfg.Agents {
		path := ac.RoleFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(a.cfg.RolesDir, path)
		}
		role, err := roles.LoadFile(path)
		if err != nil {
			return fmt.Errorf("agent %q: %w", name, err)
		}
		a.roles[name] = role

		a.aliases[strings.ToLower(name)] = name
		a.aliases[strings.ToLower(role.Name)] = name
		for _, alias := range role.Aliases {
			a.aliases[strings.ToLower(alias)] = name
		}
	}
	return nil
}

func (a *app) initMemory(ctx context.Context) error {
	store, err := qdrant.New(a.cfg.Memory.QdrantAddr)
	if err != nil {
		return fmt.Errorf("connecting to qdrant: %w", err)
	}
	embedder := ollamamem.NewEmbedder(a.cfg.Memory.EmbedderBaseURL, a.cfg.Memory.EmbedderModel)
	a.knowledge = memory.NewKnowledge(store, embedder)

	for _, collection := range []string{a.cfg.Memory.ProjectCollection, a.cfg.Memory.GlobalCollection} {
		if collection == "" {
			continue
		}
		if err := a.knowledge.Ensure(ctx, collection); err != nil {
			return fmt.Errorf("ensuring collection %q: %w", collection, err)
		}
	}
	return nil
}

func (a *app) initMCP(ctx context.Context) error {
	for _, server := range a.cfg.MCP.Servers {
		client, err := mcp.NewClientWithStdio(server.Command, server.Args)
		if err != nil {
			return fmt.Errorf("mcp server %q: %w", server.Name, err)
		}
		a.mcpClients = append(a.mcpClients, client)

		sessionTools, err := mcp.SessionTools(ctx, client)
		if err != nil {
			return fmt.Errorf("mcp server %q: %w", server.Name, err)
		}
		for _, t := range sessionTools {
			if _, ok := a.mcpTools[t.Name()]; ok {
				a.logger.Warn("mcp.tool.shadowed", "tool", t.Name(), "server", server.Name)
				continue
			}
			a.mcpTools[t.Name()] = t
		}
	}
	return nil
}

func (a *app) Close() {
	for _, client := range a.mcpClients {
		_ = client.Close()
	}
}

func (a *app) provider(ac config.AgentConfig) (llm.Provider, error) {
	switch ac.Provider {
	case "ollama":
		baseURL := a.cfg.LLM.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return llm.NewOllama(baseURL), nil
	case "anthropic":
		opts := []anthropicprovider.Option{anthropicprovider.WithModel(ac.Model)}
		if a.cfg.LLM.APIKey != "" {
			opts = append(opts, anthropicprovider.WithAPIKey(a.cfg.LLM.APIKey))
		}
		if a.cfg.LLM.BaseURL != "" {
			opts = append(opts, anthropicprovider.WithBaseURL(a.cfg.LLM.BaseURL))
		}
		return anthropicprovider.New(opts...), nil
	case "openai":
		opts := []openaiprovider.Option{openaiprovider.WithModel(ac.Model)}
		if a.cfg.LLM.APIKey != "" {
			opts = append(opts, openaiprovider.WithAPIKey(a.cfg.LLM.APIKey))
		}
		if a.cfg.LLM.BaseURL != "" {
			opts = append(opts, openaiprovider.WithBaseURL(a.cfg.LLM.BaseURL))
		}
		return openaiprovider.New(opts...), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", ac.Provider)
	}
}

func (a *app) toolRegistry(names []string, projectID string) (*tool.Registry, error) {
	resolved := make([]tool.Tool, 0, len(names))
	for _, name := range names {
		switch name {
		case "query_knowledge_base":
			if a.knowledge == nil {
				return nil, fmt.Errorf("tool %q requires memory.enabled", name)
			}
			resolved = append(resolved, tools.NewQueryKnowledgeBase(a.knowledge, tools.KnowledgeConfig{
				ProjectCollection: a.cfg.Memory.ProjectCollection,
				GlobalCollection:  a.cfg.Memory.GlobalCollection,
				ProjectID:         projectID,
			}))
		case "web_search":
			if a.cfg.Tools.TavilyAPIKey == "" {
				return nil, fmt.Errorf("tool %q requires tools.tavily_api_key", name)
			}
			resolved = append(resolved, tools.NewWebSearch(a.cfg.Tools.TavilyAPIKey))
		case "save_markdown":
			resolved = append(resolved, tools.NewSaveMarkdown(a.cfg.Tools.OutputDir))
		default:
			t, ok := a.mcpTools[name]
			if !ok {
				return nil, fmt.Errorf("unknown tool %q", name)
			}
			resolved = append(resolved, t)
		}
	}
	return tool.NewRegistry(resolved...)
}

// session assembles the conversation loop for one configured agent.
func (a *app) session(name, projectID string) (*agent.Session, error) {
	ac, ok := a.cfg.ResolveAgent(name)
	if !ok {
		return nil, fmt.Errorf("unknown agent %q (available: %s)", name, strings.Join(a.agentNames(), ", "))
	}
	role := a.roles[name]
	provider, err := a.provider(ac)
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", name, err)
	}

	opts := []agent.Option{
		agent.WithDisplayName(role.Display()),
		agent.WithSystemPrompt(role.Prompt),
		agent.WithModel(ac.Model),
		agent.WithLogger(a.logger),
	}
	if ac.Temperature > 0 {
		opts = append(opts, agent.WithTemperature(ac.Temperature))
	}
	if ac.MaxIterations > 0 {
		opts = append(opts, agent.WithMaxIterations(ac.MaxIterations))
	}
	if len(ac.Tools) > 0 {
		registry, err := a.toolRegistry(ac.Tools, projectID)
		if err != nil {
			return nil, fmt.Errorf("agent %q: %w", name, err)
		}
		opts = append(opts, agent.WithTools(registry))
	}
	return agent.New(name, provider, opts...)
}

// supervisor builds the delegating supervisor over all other agents.
func (a *app) supervisor(projectID string) (*orchestrator.Supervisor, error) {
	ac, ok := a.cfg.ResolveAgent(supervisorAgent)
	if !ok {
		return nil, fmt.Errorf("no %q agent configured", supervisorAgent)
	}
	role := a.roles[supervisorAgent]
	provider, err := a.provider(ac)
	if err != nil {
		return nil, err
	}

	delegates := make([]*agent.Session, 0, len(a.cfg.Agents)-1)
	for _, name := range a.agentNames() {
		if name == supervisorAgent {
			continue
		}
		session, err := a.session(name, projectID)
		if err != nil {
			return nil, err
		}
		delegates = append(delegates, session)
	}

	opts := []agent.Option{
		agent.WithDisplayName(role.Display()),
		agent.WithSystemPrompt(role.Prompt),
		agent.WithModel(ac.Model),
		agent.WithLogger(a.logger),
	}
	if ac.MaxIterations > 0 {
		opts = append(opts, agent.WithMaxIterations(ac.MaxIterations))
	}
	return orchestrator.New(supervisorAgent, provider, delegates, opts...)
}

func (a *app) agentNames() []string {
	names := a.cfg.AgentNames()
	sort.Strings(names)
	return names
}

// resolveAlias maps a mention or flag value to a configured agent
// name. Returns "" when nothing matches.
func (a *app) resolveAlias(name string) string {
	return a.aliases[strings.ToLower(name)]
}

// parseMention extracts an @mention from a query. A known alias
// selects the agent and is stripped from the query; an unknown
// mention leaves the query untouched.
func (a *app) parseMention(query string) (string, string) {
	match := mentionPattern.FindStringSubmatch(query)
	if match == nil {
		return "", query
	}
	agentName := a.resolveAlias(match[1])
	if agentName == "" {
		return "", query
	}
	cleaned := strings.Join(strings.Fields(strings.Replace(query, match[0], "", 1)), " ")
	return agentName, cleaned
}

// routeMessage picks the agent for one chat line. An @mention wins and
// is stripped from the message; without one the fallback agent handles
// the line unchanged.
func (a *app) routeMessage(line, fallback string) (string, string) {
	if name, cleaned := a.parseMention(line); name != "" {
		return name, cleaned
	}
	return fallback, line
}
