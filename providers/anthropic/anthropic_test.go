// Copyright 2026 © The Faktotum Authors
// SPDX-License-Identifier: Apache-2.0

package anthropic

import (
	"fmt"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/nwiesmann/faktotum/pkg/errors"
	"github.com/nwiesmann/faktotum/pkg/llm"
	"github.com/nwiesmann/faktotum/pkg/resilience"
)

func TestNewProvider(t *testing.T) {
	p := New()
	if p == nil {
		t.Fatal("expected non-nil provider")
	}
	if p.model != "claude-sonnet-4-20250514" {
		t.Errorf("unexpected default model %s", p.model)
	}
	if p.maxTokens != 4096 {
		t.Errorf("unexpected default maxTokens %d", p.maxTokens)
	}
}

func TestWithModel(t *testing.T) {
	p := New(WithModel("claude-opus-4-20250514"))
	if p.model != "claude-opus-4-20250514" {
		t.Errorf("unexpected model %s", p.model)
	}
}

func TestWithMaxTokens(t *testing.T) {
	p := New(WithMaxTokens(8192))
	if p.maxTokens != 8192 {
		t.Errorf("unexpected maxTokens %d", p.maxTokens)
	}
}

func TestNewWithAPIKey(t *testing.T) {
	if p := NewWithAPIKey("test-key"); p == nil {
		t.Fatal("expected non-nil provider")
	}
}

func TestBuildParams(t *testing.T) {
	p := New(WithModel("claude-sonnet-4-20250514"), WithMaxTokens(1024))
	params := p.buildParams(llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "Du bist ein Assistent."},
			{Role: llm.RoleUser, Content: "Hallo"},
		},
		Temperature: 0.2,
	})

	if params.Model != anthropic.Model("claude-sonnet-4-20250514") {
		t.Errorf("unexpected model %s", params.Model)
	}
	if params.MaxTokens != 1024 {
		t.Errorf("unexpected maxTokens %d", params.MaxTokens)
	}
	if len(params.Messages) != 1 {
		t.Fatalf("system prompt must leave the message list, got %d messages", len(params.Messages))
	}
	if len(params.System) != 1 || params.System[0].Text != "Du bist ein Assistent." {
		t.Errorf("unexpected system prompt %+v", params.System)
	}
}

func TestBuildParamsRequestModelWins(t *testing.T) {
	p := New(WithModel("claude-sonnet-4-20250514"))
	params := p.buildParams(llm.ChatRequest{
		Model:    "claude-opus-4-20250514",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "Hallo"}},
	})
	if params.Model != anthropic.Model("claude-opus-4-20250514") {
		t.Errorf("unexpected model %s", params.Model)
	}
}

func TestConvertMessages(t *testing.T) {
	tests := []struct {
		name string
		msg  llm.Message
	}{
		{
			name: "user message",
			msg:  llm.Message{Role: llm.RoleUser, Content: "Hallo"},
		},
		{
			name: "assistant message",
			msg:  llm.Message{Role: llm.RoleAssistant, Content: "Guten Tag"},
		},
		{
			name: "tool result message",
			msg:  llm.Message{Role: llm.RoleTool, Content: "Ergebnis", ToolCallID: "toolu_123"},
		},
		{
			name: "assistant with tool calls",
			msg: llm.Message{
				Role:    llm.RoleAssistant,
				Content: "Ich suche das nach.",
				ToolCalls: []llm.ToolCall{{
					ID:   "toolu_123",
					Type: llm.ToolTypeFunction,
					Function: llm.FunctionCall{
						Name:      "query_knowledge_base",
						Arguments: `{"query":"Datenbanken"}`,
					},
				}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Conversion must not panic on any role.
			_ = convertMessage(tt.msg)
		})
	}
}

func TestConvertToolCallMessageBlocks(t *testing.T) {
	msg := convertMessage(llm.Message{
		Role:    llm.RoleAssistant,
		Content: "Ich suche das nach.",
		ToolCalls: []llm.ToolCall{{
			ID:   "toolu_1",
			Type: llm.ToolTypeFunction,
			Function: llm.FunctionCall{
				Name:      "query_knowledge_base",
				Arguments: `{"query":"Datenbanken"}`,
			},
		}},
	})

	if msg.Role != "assistant" {
		t.Errorf("unexpected role %s", msg.Role)
	}
	if len(msg.Content) != 2 {
		t.Fatalf("expected text block plus tool use, got %d blocks", len(msg.Content))
	}
}

func TestConvertTool(t *testing.T) {
	converted := convertTool(llm.Tool{
		Type: llm.ToolTypeFunction,
		Function: llm.FunctionDef{
			Name:        "query_knowledge_base",
			Description: "Searches the knowledge base.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string"},
				},
				"required": []string{"query"},
			},
		},
	})

	if converted.OfTool == nil {
		t.Fatal("expected a tool param")
	}
	if converted.OfTool.Name != "query_knowledge_base" {
		t.Errorf("unexpected name %s", converted.OfTool.Name)
	}
}

func TestClassifyRateLimit(t *testing.T) {
	wrapped := classify(fmt.Errorf("too many requests"), 429)

	ae := errors.AsAgentError(wrapped)
	if ae == nil {
		t.Fatal("expected typed error")
	}
	if ae.Code != errors.CodeRateLimit || !ae.Recoverable || ae.StatusCode != 429 {
		t.Errorf("429 must map to recoverable RATE_LIMITED, got %+v", ae)
	}
	if !resilience.IsRateLimited(wrapped) {
		t.Error("retry policy must classify the wrapped error as throttling")
	}
}

func TestClassifyFatal(t *testing.T) {
	wrapped := classify(fmt.Errorf("unauthorized"), 401)

	ae := errors.AsAgentError(wrapped)
	if ae == nil {
		t.Fatal("expected typed error")
	}
	if ae.Code != errors.CodeLLMError || ae.Recoverable {
		t.Errorf("non-429 must map to fatal LLM_ERROR, got %+v", ae)
	}
	if resilience.IsRateLimited(wrapped) {
		t.Error("fatal provider errors must not be retried")
	}
	if !strings.Contains(wrapped.Error(), "anthropic request failed") {
		t.Errorf("unexpected message: %v", wrapped)
	}
}
