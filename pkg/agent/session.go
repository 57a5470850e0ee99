// Copyright 2026 © The Faktotum Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent implements the conversation loop: turn-by-turn
// exchange with a model provider, bounded iteration, tool-call
// dispatch, and response aggregation.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nwiesmann/faktotum/pkg/core"
	"github.com/nwiesmann/faktotum/pkg/llm"
	"github.com/nwiesmann/faktotum/pkg/resilience"
	"github.com/nwiesmann/faktotum/pkg/telemetry"
	"github.com/nwiesmann/faktotum/pkg/tool"
)

// DefaultMaxIterations bounds the conversation loop.
const DefaultMaxIterations = 10

// Session is one agent bound to a provider, a system prompt, and a
// fixed tool set. It is created for a run and discarded afterwards;
// nothing is persisted.
type Session struct {
	name          string
	displayName   string
	systemPrompt  string
	model         string
	temperature   float64
	maxIterations int
	provider      llm.Provider
	tools         *tool.Registry
	retry         resilience.RetryConfig
	logger        *slog.Logger
	tracer        trace.Tracer
	metrics       *telemetry.EngineMetrics
}

// Option configures a Session.
type Option func(*Session) error

// New creates a session for the named agent.
func New(name string, provider llm.Provider, opts ...Option) (*Session, error) {
	if name == "" {
		return nil, errors.New("agent name is required")
	}
	if provider == nil {
		return nil, errors.New("model provider is required")
	}
	s := &Session{
		name:          name,
		displayName:   name,
		maxIterations: DefaultMaxIterations,
		provider:      provider,
		retry:         resilience.DefaultRetryConfig(),
		logger:        slog.Default(),
		tracer:        otel.Tracer("faktotum/agent"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	// Instrument failures degrade to unrecorded metrics, never to a
	// failed session.
	s.metrics, _ = telemetry.NewEngineMetrics()
	if sleep := s.retry.Sleep; sleep != nil {
		s.retry.Sleep = func(ctx context.Context, d time.Duration) error {
			s.metrics.RecordRetryWait(ctx, "agent")
			return sleep(ctx, d)
		}
	}
	return s, nil
}

// WithDisplayName sets the human-readable agent name.
func WithDisplayName(name string) Option {
	return func(s *Session) error {
		if name != "" {
			s.displayName = name
		}
		return nil
	}
}

// WithSystemPrompt sets the system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(s *Session) error {
		s.systemPrompt = prompt
		return nil
	}
}

// WithModel sets the model identifier passed to the provider.
func WithModel(model string) Option {
	return func(s *Session) error {
		s.model = model
		return nil
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(s *Session) error {
		s.temperature = t
		return nil
	}
}

// WithTools binds the session's tool set.
func WithTools(r *tool.Registry) Option {
	return func(s *Session) error {
		s.tools = r
		return nil
	}
}

// WithMaxIterations overrides the iteration ceiling.
func WithMaxIterations(n int) Option {
	return func(s *Session) error {
		if n <= 0 {
			return fmt.Errorf("max iterations must be positive, got %d", n)
		}
		s.maxIterations = n
		return nil
	}
}

// WithRetry overrides the provider retry policy.
func WithRetry(rc resilience.RetryConfig) Option {
	return func(s *Session) error {
		s.retry = rc
		return nil
	}
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// Name returns the agent slug.
func (s *Session) Name() string { return s.name }

// DisplayName returns the human-readable agent name.
func (s *Session) DisplayName() string { return s.displayName }

// Tools returns the names of the bound tools.
func (s *Session) Tools() []string { return s.tools.Names() }

// Run executes the conversation loop for one query and returns the
// final answer text. Tool failures become tool results, never loop
// failures; only an unrecoverable provider error aborts the run.
// When the iteration ceiling is reached, the last assistant content
// is returned as a best-effort answer.
func (s *Session) Run(ctx context.Context, query string) (string, error) {
	ctx, runID := core.EnsureRunID(ctx)

	ctx, span := s.tracer.Start(ctx, "agent.run",
		trace.WithAttributes(telemetry.AgentAttributes(s.name, s.model, runID, 0, s.maxIterations)...))
	defer span.End()

	s.logger.InfoContext(ctx, "agent.run.start",
		"agent", s.name,
		"run_id", runID,
		"model", s.model,
		"tools", s.tools.Len(),
	)

	messages := make([]llm.Message, 0, 2)
	if s.systemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: s.systemPrompt})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: query})

	var lastContent string
	for iteration := 1; iteration <= s.maxIterations; iteration++ {
		resp, err := s.chat(ctx, messages, iteration)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "provider call failed")
			s.logger.ErrorContext(ctx, "agent.run.failed",
				"agent", s.name, "run_id", runID, "iteration", iteration, "error", err)
			wrapped := WrapLLMError(err, s.model)
			s.metrics.RecordRun(ctx, s.name, false)
			s.metrics.RecordError(ctx, wrapped, "agent")
			return "", wrapped
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		lastContent = resp.Content

		if len(resp.ToolCalls) == 0 {
			s.logger.InfoContext(ctx, "agent.run.answered",
				"agent", s.name, "run_id", runID, "iterations", iteration)
			s.metrics.RecordRun(ctx, s.name, true)
			return resp.Content, nil
		}

		// Every pending invocation gets exactly one result, in order.
		for _, call := range resp.ToolCalls {
			result := s.dispatch(ctx, call)
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}

	s.logger.WarnContext(ctx, "agent.run.ceiling",
		"agent", s.name, "run_id", runID, "max_iterations", s.maxIterations)
	s.metrics.RecordRun(ctx, s.name, true)
	return lastContent, nil
}

func (s *Session) chat(ctx context.Context, messages []llm.Message, iteration int) (*llm.ChatResponse, error) {
	ctx, span := s.tracer.Start(ctx, "agent.chat",
		trace.WithAttributes(telemetry.LLMAttributes(s.model, "", len(messages), 0)...))
	defer span.End()

	req := llm.ChatRequest{
		Model:       s.model,
		Messages:    messages,
		Tools:       s.tools.Definitions(),
		Temperature: s.temperature,
	}

	var resp *llm.ChatResponse
	err := s.retry.Do(ctx, func() error {
		var chatErr error
		resp, chatErr = s.provider.Chat(ctx, req)
		return chatErr
	})
	if err != nil {
		span.RecordError(err)
		s.metrics.RecordLLMCall(ctx, s.model, false, 0, 0)
		return nil, err
	}

	s.metrics.RecordLLMCall(ctx, s.model, true, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	span.SetAttributes(telemetry.LLMUsageAttributes(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, 0)...)
	s.logger.DebugContext(ctx, "agent.chat.done",
		"agent", s.name,
		"iteration", iteration,
		"tool_calls", len(resp.ToolCalls),
		"tokens", resp.Usage.TotalTokens,
	)
	return resp, nil
}

// dispatch invokes one tool call and returns its textual result. An
// invocation failure is data for the model, not an error for the loop.
func (s *Session) dispatch(ctx context.Context, call llm.ToolCall) string {
	name := call.Function.Name

	ctx, span := s.tracer.Start(ctx, "agent.tool",
		trace.WithAttributes(telemetry.ToolCallAttributes(name, call.ID, 0, true)...))
	defer span.End()

	t, ok := s.tools.Get(name)
	if !ok {
		s.logger.WarnContext(ctx, "agent.tool.unknown", "agent", s.name, "tool", name)
		span.SetStatus(codes.Error, "unknown tool")
		s.metrics.RecordToolCall(ctx, name, false)
		return fmt.Sprintf("Unknown tool: %s", name)
	}

	args, err := decodeArguments(call.Function.Arguments)
	if err == nil {
		var out string
		out, err = t.Call(ctx, args)
		if err == nil {
			s.logger.DebugContext(ctx, "agent.tool.done", "agent", s.name, "tool", name)
			s.metrics.RecordToolCall(ctx, name, true)
			return out
		}
	}

	s.metrics.RecordToolCall(ctx, name, false)
	span.RecordError(err)
	span.SetStatus(codes.Error, "tool failed")
	s.logger.WarnContext(ctx, "agent.tool.failed", "agent", s.name, "tool", name, "error", err)
	return fmt.Sprintf("Error executing tool %s: %v", name, err)
}

func decodeArguments(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return args, nil
}
