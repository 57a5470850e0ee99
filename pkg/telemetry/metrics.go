// Copyright 2026 © The Faktotum Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/nwiesmann/faktotum/pkg/errors"
)

// EngineMetrics tracks run, call, and error rates for production monitoring.
type EngineMetrics struct {
	runCounter     metric.Int64Counter
	llmCallCounter metric.Int64Counter
	toolCounter    metric.Int64Counter
	retryCounter   metric.Int64Counter
	errorCounter   metric.Int64Counter
	tokenCounter   metric.Int64Counter
}

// NewEngineMetrics creates the engine metric instruments on the global meter.
func NewEngineMetrics() (*EngineMetrics, error) {
	meter := otel.Meter("faktotum/engine")

	runCounter, err := meter.Int64Counter(
		"faktotum.agent.runs",
		metric.WithDescription("Completed agent runs by agent and outcome"),
	)
	if err != nil {
		return nil, err
	}

	llmCallCounter, err := meter.Int64Counter(
		"faktotum.llm.calls",
		metric.WithDescription("LLM chat calls by model and outcome"),
	)
	if err != nil {
		return nil, err
	}

	toolCounter, err := meter.Int64Counter(
		"faktotum.tool.calls",
		metric.WithDescription("Tool invocations by tool and outcome"),
	)
	if err != nil {
		return nil, err
	}

	retryCounter, err := meter.Int64Counter(
		"faktotum.retry.waits",
		metric.WithDescription("Backoff waits performed before retrying"),
	)
	if err != nil {
		return nil, err
	}

	errorCounter, err := meter.Int64Counter(
		"faktotum.errors.total",
		metric.WithDescription("Total errors by code and component"),
	)
	if err != nil {
		return nil, err
	}

	tokenCounter, err := meter.Int64Counter(
		"faktotum.llm.tokens",
		metric.WithDescription("Token consumption by model and direction"),
	)
	if err != nil {
		return nil, err
	}

	return &EngineMetrics{
		runCounter:     runCounter,
		llmCallCounter: llmCallCounter,
		toolCounter:    toolCounter,
		retryCounter:   retryCounter,
		errorCounter:   errorCounter,
		tokenCounter:   tokenCounter,
	}, nil
}

// RecordRun counts a finished agent run.
func (m *EngineMetrics) RecordRun(ctx context.Context, agent string, succeeded bool) {
	if m == nil {
		return
	}
	m.runCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("agent", agent),
			attribute.Bool("success", succeeded),
		),
	)
}

// RecordLLMCall counts one chat call and its token usage.
func (m *EngineMetrics) RecordLLMCall(ctx context.Context, model string, succeeded bool, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.llmCallCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("model", model),
			attribute.Bool("success", succeeded),
		),
	)
	if inputTokens > 0 {
		m.tokenCounter.Add(ctx, int64(inputTokens),
			metric.WithAttributes(
				attribute.String("model", model),
				attribute.String("direction", "input"),
			),
		)
	}
	if outputTokens > 0 {
		m.tokenCounter.Add(ctx, int64(outputTokens),
			metric.WithAttributes(
				attribute.String("model", model),
				attribute.String("direction", "output"),
			),
		)
	}
}

// RecordToolCall counts one tool invocation.
func (m *EngineMetrics) RecordToolCall(ctx context.Context, tool string, succeeded bool) {
	if m == nil {
		return
	}
	m.toolCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.Bool("success", succeeded),
		),
	)
}

// RecordRetryWait counts one backoff wait.
func (m *EngineMetrics) RecordRetryWait(ctx context.Context, component string) {
	if m == nil {
		return
	}
	m.retryCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("component", component),
		),
	)
}

// RecordError counts an error by its code and originating component.
func (m *EngineMetrics) RecordError(ctx context.Context, err error, component string) {
	if m == nil || err == nil {
		return
	}
	code := "UNKNOWN"
	recoverable := "unknown"
	if ae := errors.AsAgentError(err); ae != nil {
		code = string(ae.Code)
		recoverable = strconv.FormatBool(ae.Recoverable)
	}
	m.errorCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("error.code", code),
			attribute.String("component", component),
			attribute.String("recoverable", recoverable),
		),
	)
}
