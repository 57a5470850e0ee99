// Copyright 2026 © The Faktotum Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/nwiesmann/faktotum/pkg/errors"
)

// Snippet is one retrieved knowledge base entry.
type Snippet struct {
	Text   string
	Source string
	Score  float32
}

// Knowledge combines an embedder and a vector store into a text-level
// retrieval API. One Knowledge instance serves any number of
// collections; callers name the collection per operation.
type Knowledge struct {
	store    VectorStore
	embedder Embedder
}

// NewKnowledge creates a knowledge base over the given backends.
func NewKnowledge(store VectorStore, embedder Embedder) *Knowledge {
	return &Knowledge{store: store, embedder: embedder}
}

// Ensure creates the collection if it does not exist. The vector
// dimension is probed from the embedder.
func (k *Knowledge) Ensure(ctx context.Context, collection string) error {
	vec, err := k.embedder.Embed(ctx, "dimension probe")
	if err != nil {
		return errors.New(errors.CodeMemoryError, "failed to probe embedding dimension", err)
	}
	if err := k.store.CreateCollection(ctx, collection, uint64(len(vec))); err != nil {
		// Creation fails when the collection already exists. A search
		// against it tells the two cases apart.
		if _, searchErr := k.store.Search(ctx, collection, vec, SearchOptions{Limit: 1}); searchErr == nil {
			return nil
		}
		return errors.New(errors.CodeMemoryError, "failed to create collection", err).
			WithContext("collection", collection)
	}
	return nil
}

// Ingest embeds text and stores it with the given payload. The payload
// keys "text" and "source" are reserved for retrieval.
func (k *Knowledge) Ingest(ctx context.Context, collection, text, source string, payload map[string]string) error {
	vector, err := k.embedder.Embed(ctx, text)
	if err != nil {
		return errors.New(errors.CodeMemoryError, "failed to embed text", err)
	}

	fields := map[string]interface{}{
		"text":   text,
		"source": source,
	}
	for key, value := range payload {
		fields[key] = value
	}

	point := Point{
		ID:      uuid.New().String(),
		Vector:  vector,
		Payload: fields,
	}
	if err := k.store.Upsert(ctx, collection, []Point{point}); err != nil {
		return errors.New(errors.CodeMemoryError, "failed to store point", err).
			WithContext("collection", collection)
	}
	return nil
}

// Query embeds the query text and returns the best matching snippets.
// A non-empty filter scopes the search by exact payload values.
func (k *Knowledge) Query(ctx context.Context, collection, query string, limit int, filter map[string]string) ([]Snippet, error) {
	if limit <= 0 {
		limit = 5
	}

	vector, err := k.embedder.Embed(ctx, query)
	if err != nil {
		return nil, errors.New(errors.CodeMemoryError, "failed to embed query", err)
	}

	results, err := k.store.Search(ctx, collection, vector, SearchOptions{
		Limit:          limit,
		ScoreThreshold: 0.3,
		Filter:         filter,
	})
	if err != nil {
		return nil, errors.New(errors.CodeMemoryError, "vector search failed", err).
			WithContext("collection", collection)
	}

	snippets := make([]Snippet, 0, len(results))
	for _, r := range results {
		text, ok := r.Payload["text"].(string)
		if !ok {
			continue
		}
		source, _ := r.Payload["source"].(string)
		snippets = append(snippets, Snippet{Text: text, Source: source, Score: r.Score})
	}
	return snippets, nil
}
