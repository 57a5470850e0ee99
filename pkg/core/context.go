// Copyright 2026 © The Faktotum Authors
// SPDX-License-Identifier: Apache-2.0

// Package core holds the small shared pieces of the runtime: run
// identity propagated through context for log and trace correlation.
package core

import (
	"context"

	"github.com/google/uuid"
)

type runIDKey struct{}
type sessionIDKey struct{}

// WithRunID attaches a run id to the context.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the run id if present.
func RunID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok
}

// EnsureRunID ensures a run id exists in the context.
func EnsureRunID(ctx context.Context) (context.Context, string) {
	if id, ok := RunID(ctx); ok {
		return ctx, id
	}
	id := newID("run")
	return WithRunID(ctx, id), id
}

// WithSessionID attaches a chat session id to the context.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, id)
}

// SessionID returns the chat session id if present.
func SessionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey{}).(string)
	return id, ok
}

func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
