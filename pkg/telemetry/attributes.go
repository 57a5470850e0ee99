// Copyright 2026 © The Faktotum Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys for engine telemetry. LLM attributes follow the
// gen_ai semantic conventions where one exists.
const (
	// Agent attributes
	AttrAgentName      = "faktotum.agent.name"
	AttrAgentModel     = "faktotum.agent.model"
	AttrAgentRunID     = "faktotum.agent.run_id"
	AttrAgentIteration = "faktotum.agent.iteration"
	AttrAgentMaxIter   = "faktotum.agent.max_iterations"

	// Tool attributes
	AttrToolName       = "faktotum.tool.name"
	AttrToolCallID     = "faktotum.tool.call_id"
	AttrToolArgs       = "faktotum.tool.arguments"
	AttrToolResult     = "faktotum.tool.result"
	AttrToolDurationMs = "faktotum.tool.duration_ms"
	AttrToolSuccess    = "faktotum.tool.success"

	// Delegation attributes
	AttrDelegateAgent = "faktotum.delegate.agent"
	AttrDelegateKnown = "faktotum.delegate.known"

	// Pipeline attributes
	AttrPipelineDocument = "faktotum.pipeline.document"
	AttrQuestionNumber   = "faktotum.pipeline.question_number"
	AttrQuestionAgent    = "faktotum.pipeline.question_agent"
	AttrQuestionFailed   = "faktotum.pipeline.question_failed"

	// Retry attributes
	AttrRetryAttempt = "faktotum.retry.attempt"
	AttrRetryDelayMs = "faktotum.retry.delay_ms"

	// LLM attributes (gen_ai conventions)
	AttrLLMModel        = "gen_ai.request.model"
	AttrLLMProvider     = "gen_ai.system"
	AttrLLMMessages     = "gen_ai.request.messages"
	AttrLLMTokensInput  = "gen_ai.usage.input_tokens"
	AttrLLMTokensOutput = "gen_ai.usage.output_tokens"
	AttrLLMTokensTotal  = "gen_ai.usage.total_tokens"
	AttrLLMDurationMs   = "gen_ai.duration_ms"
	AttrLLMToolCalls    = "gen_ai.tool_calls"
)

// AgentAttributes returns common attributes for agent run spans.
func AgentAttributes(name, model, runID string, iteration, maxIter int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrAgentName, name),
		attribute.String(AttrAgentRunID, runID),
	}
	if model != "" {
		attrs = append(attrs, attribute.String(AttrAgentModel, model))
	}
	if iteration > 0 {
		attrs = append(attrs, attribute.Int(AttrAgentIteration, iteration))
	}
	if maxIter > 0 {
		attrs = append(attrs, attribute.Int(AttrAgentMaxIter, maxIter))
	}
	return attrs
}

// ToolCallAttributes returns attributes for a tool call span.
func ToolCallAttributes(name, callID string, durationMs float64, success bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrToolName, name),
		attribute.String(AttrToolCallID, callID),
		attribute.Float64(AttrToolDurationMs, durationMs),
		attribute.Bool(AttrToolSuccess, success),
	}
}

// ToolCallArgsResult returns attributes carrying tool arguments and
// result, truncated to maxLen so spans stay bounded.
func ToolCallArgsResult(args, result string, maxLen int) []attribute.KeyValue {
	if maxLen <= 0 {
		maxLen = 500
	}
	attrs := []attribute.KeyValue{}
	if args != "" {
		if len(args) > maxLen {
			args = args[:maxLen] + "..."
		}
		attrs = append(attrs, attribute.String(AttrToolArgs, args))
	}
	if result != "" {
		if len(result) > maxLen {
			result = result[:maxLen] + "..."
		}
		attrs = append(attrs, attribute.String(AttrToolResult, result))
	}
	return attrs
}

// DelegateAttributes returns attributes for a delegation span.
func DelegateAttributes(agent string, known bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrDelegateAgent, agent),
		attribute.Bool(AttrDelegateKnown, known),
	}
}

// QuestionAttributes returns attributes for one pipeline question.
func QuestionAttributes(document string, number int, agent string, failed bool) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int(AttrQuestionNumber, number),
		attribute.Bool(AttrQuestionFailed, failed),
	}
	if document != "" {
		attrs = append(attrs, attribute.String(AttrPipelineDocument, document))
	}
	if agent != "" {
		attrs = append(attrs, attribute.String(AttrQuestionAgent, agent))
	}
	return attrs
}

// LLMAttributes returns attributes for LLM call spans.
func LLMAttributes(model, provider string, msgCount, toolCallCount int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrLLMModel, model),
		attribute.Int(AttrLLMMessages, msgCount),
	}
	if provider != "" {
		attrs = append(attrs, attribute.String(AttrLLMProvider, provider))
	}
	if toolCallCount > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMToolCalls, toolCallCount))
	}
	return attrs
}

// LLMUsageAttributes returns token usage attributes.
func LLMUsageAttributes(inputTokens, outputTokens int, durationMs float64) []attribute.KeyValue {
	attrs := []attribute.KeyValue{}
	if inputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensInput, inputTokens))
	}
	if outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensOutput, outputTokens))
	}
	if inputTokens > 0 || outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensTotal, inputTokens+outputTokens))
	}
	if durationMs > 0 {
		attrs = append(attrs, attribute.Float64(AttrLLMDurationMs, durationMs))
	}
	return attrs
}
