// Copyright 2026 © The Faktotum Authors
// SPDX-License-Identifier: Apache-2.0

// Package memory provides the knowledge base backends: vector search
// over project documents and persistent conversation history.
package memory

import "context"

// VectorStore defines the interface for a vector database.
type VectorStore interface {
	// Upsert adds or updates points in the vector store.
	Upsert(ctx context.Context, collection string, points []Point) error
	// Search returns the nearest vectors to the given vector. A non-empty
	// filter restricts results to points whose payload matches every
	// key/value pair exactly.
	Search(ctx context.Context, collection string, vector []float32, opts SearchOptions) ([]SearchResult, error)
	// CreateCollection creates a new collection if it doesn't exist.
	CreateCollection(ctx context.Context, name string, vectorSize uint64) error
}

// SearchOptions bounds and scopes a vector search.
type SearchOptions struct {
	Limit          int
	ScoreThreshold float32
	// Filter restricts matches by exact payload values, e.g.
	// {"project_id": "p-42"} scopes a search to one project.
	Filter map[string]string
}

// Point represents a data point in the vector store.
type Point struct {
	ID      string                 `json:"id"`
	Vector  []float32              `json:"vector"`
	Payload map[string]interface{} `json:"payload"`
}

// SearchResult represents a result from a vector search.
type SearchResult struct {
	ID      string                 `json:"id"`
	Score   float32                `json:"score"`
	Payload map[string]interface{} `json:"payload"`
}

// Embedder defines the interface for converting text to vectors.
type Embedder interface {
	// Embed converts a text string into a vector.
	Embed(ctx context.Context, text string) ([]float32, error)
}
