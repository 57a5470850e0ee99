// Copyright 2026 © The Faktotum Authors
// SPDX-License-Identifier: Apache-2.0

package openai

import (
	"fmt"
	"testing"

	"github.com/nwiesmann/faktotum/pkg/errors"
	"github.com/nwiesmann/faktotum/pkg/llm"
	"github.com/nwiesmann/faktotum/pkg/resilience"
)

func TestNewProvider(t *testing.T) {
	p := New()
	if p == nil {
		t.Fatal("expected non-nil provider")
	}
	if p.model != "gpt-5-mini" {
		t.Errorf("unexpected default model %s", p.model)
	}
}

func TestWithModel(t *testing.T) {
	p := New(WithModel("gpt-4-turbo"))
	if p.model != "gpt-4-turbo" {
		t.Errorf("unexpected model %s", p.model)
	}
}

func TestNewWithAPIKey(t *testing.T) {
	if p := NewWithAPIKey("test-key"); p == nil {
		t.Fatal("expected non-nil provider")
	}
}

func TestConvertMessages(t *testing.T) {
	tests := []struct {
		name string
		msg  llm.Message
	}{
		{
			name: "system message",
			msg:  llm.Message{Role: llm.RoleSystem, Content: "Du bist hilfreich"},
		},
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
			msg:  llm.Message{Role: llm.RoleTool, Content: "Ergebnis", ToolCallID: "call_123"},
		},
		{
			name: "assistant with tool calls",
			msg: llm.Message{
				Role: llm.RoleAssistant,
				ToolCalls: []llm.ToolCall{{
					ID:   "call_123",
					Type: llm.ToolTypeFunction,
					Function: llm.FunctionCall{
						Name:      "web_search",
						Arguments: `{"query":"Go Module"}`,
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

func TestConvertTool(t *testing.T) {
	converted := convertTool(llm.Tool{
		Type: llm.ToolTypeFunction,
		Function: llm.FunctionDef{
			Name:        "web_search",
			Description: "Searches the web.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string"},
				},
				"required": []string{"query"},
			},
		},
	})

	if converted.Function.Name != "web_search" {
		t.Errorf("unexpected name %s", converted.Function.Name)
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
}
