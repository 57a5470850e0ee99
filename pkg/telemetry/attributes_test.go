// Copyright 2026 © The Faktotum Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, a := range attrs {
		m[string(a.Key)] = a.Value
	}
	return m
}

func TestAgentAttributes(t *testing.T) {
	attrs := AgentAttributes("research", "gpt-4o", "run-abc", 3, 10)
	m := attrMap(attrs)

	if m[AttrAgentName].AsString() != "research" {
		t.Errorf("expected agent name research, got %v", m[AttrAgentName])
	}
	if m[AttrAgentRunID].AsString() != "run-abc" {
		t.Errorf("expected run id run-abc, got %v", m[AttrAgentRunID])
	}
	if m[AttrAgentIteration].AsInt64() != 3 {
		t.Errorf("expected iteration 3, got %v", m[AttrAgentIteration])
	}
	if m[AttrAgentMaxIter].AsInt64() != 10 {
		t.Errorf("expected max iterations 10, got %v", m[AttrAgentMaxIter])
	}
}

func TestAgentAttributesOmitsEmpty(t *testing.T) {
	attrs := AgentAttributes("research", "", "run-abc", 0, 0)
	m := attrMap(attrs)

	if _, ok := m[AttrAgentModel]; ok {
		t.Error("did not expect model attribute")
	}
	if _, ok := m[AttrAgentIteration]; ok {
		t.Error("did not expect iteration attribute")
	}
}

func TestToolCallArgsResultTruncates(t *testing.T) {
	long := strings.Repeat("x", 600)
	attrs := ToolCallArgsResult(long, long, 100)
	m := attrMap(attrs)

	args := m[AttrToolArgs].AsString()
	if len(args) != 103 || !strings.HasSuffix(args, "...") {
		t.Errorf("expected args truncated to 100 chars plus ellipsis, got len %d", len(args))
	}
}

func TestQuestionAttributes(t *testing.T) {
	attrs := QuestionAttributes("fragen.md", 2, "architekt", true)
	m := attrMap(attrs)

	if m[AttrQuestionNumber].AsInt64() != 2 {
		t.Errorf("expected question number 2, got %v", m[AttrQuestionNumber])
	}
	if !m[AttrQuestionFailed].AsBool() {
		t.Error("expected failed flag")
	}
	if m[AttrQuestionAgent].AsString() != "architekt" {
		t.Errorf("expected agent architekt, got %v", m[AttrQuestionAgent])
	}
}

func TestLLMUsageAttributesTotals(t *testing.T) {
	attrs := LLMUsageAttributes(100, 50, 12.5)
	m := attrMap(attrs)

	if m[AttrLLMTokensTotal].AsInt64() != 150 {
		t.Errorf("expected total 150, got %v", m[AttrLLMTokensTotal])
	}
	if m[AttrLLMDurationMs].AsFloat64() != 12.5 {
		t.Errorf("expected duration 12.5, got %v", m[AttrLLMDurationMs])
	}
}
