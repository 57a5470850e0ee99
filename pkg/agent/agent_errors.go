// Copyright 2026 © The Faktotum Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	stderrors "errors"

	"github.com/nwiesmann/faktotum/pkg/errors"
)

// WrapLLMError wraps an unrecoverable provider error with model context.
// An error that already carries a typed code passes through unchanged.
func WrapLLMError(err error, model string) *errors.AgentError {
	if err == nil {
		return nil
	}
	var ae *errors.AgentError
	if stderrors.As(err, &ae) {
		return ae
	}
	return errors.New(errors.CodeLLMError, "LLM call failed", err).
		WithContext("model", model).
		WithRecoverable(false)
}

// WrapToolError wraps a tool execution error with tool context.
func WrapToolError(err error, toolName, toolCallID string) *errors.AgentError {
	if err == nil {
		return nil
	}
	return errors.New(errors.CodeToolFailure, "tool execution failed", err).
		WithContext("tool_name", toolName).
		WithContext("tool_call_id", toolCallID).
		WithRecoverable(true)
}

// NewInvalidInputError creates a new invalid input error.
func NewInvalidInputError(msg string) *errors.AgentError {
	return errors.New(errors.CodeInvalidInput, msg, nil).
		WithRecoverable(false)
}

// NewNotFoundError creates a new not found error.
func NewNotFoundError(resource, name string) *errors.AgentError {
	return errors.New(errors.CodeNotFound, resource+" not found", nil).
		WithContext("resource", resource).
		WithContext("name", name).
		WithRecoverable(false)
}
