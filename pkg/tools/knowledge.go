// Package tools provides the built-in capabilities agents can bind:
// knowledge base retrieval, web search, and markdown export.
package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/nwiesmann/faktotum/pkg/memory"
	"github.com/nwiesmann/faktotum/pkg/tool"
)

// Searcher is the retrieval contract the knowledge tool depends on.
// *memory.Knowledge satisfies it.
type Searcher interface {
	Query(ctx context.Context, collection, query string, limit int, filter map[string]string) ([]memory.Snippet, error)
}

const snippetMaxLen = 500

// KnowledgeConfig scopes a knowledge base tool. ProjectID is taken
// explicitly at construction so the capability carries no hidden
// session state.
type KnowledgeConfig struct {
	// ProjectCollection holds project-specific documents.
	ProjectCollection string
	// GlobalCollection holds the shared knowledge base. Optional.
	GlobalCollection string
	// ProjectID filters project results when non-empty.
	ProjectID string
}

// NewQueryKnowledgeBase builds the query_knowledge_base capability.
// It searches the project documents and, when configured, the global
// knowledge base, returning numbered snippets with source labels.
func NewQueryKnowledgeBase(kb Searcher, cfg KnowledgeConfig) *tool.Func {
	return tool.NewFunc(
		"query_knowledge_base",
		"Search the knowledge base for relevant information. Results include project-specific documents and the global knowledge base.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query to find relevant documents",
				},
				"k": map[string]any{
					"type":        "integer",
					"description": "Number of results to return (default 5)",
				},
			},
			"required": []string{"query"},
		},
		func(ctx context.Context, args map[string]any) (string, error) {
			query, _ := args["query"].(string)
			if query == "" {
				return "", fmt.Errorf("query is required")
			}
			k := 5
			if raw, ok := args["k"].(float64); ok && raw > 0 {
				k = int(raw)
			}
			return queryKnowledge(ctx, kb, cfg, query, k), nil
		},
	)
}

func queryKnowledge(ctx context.Context, kb Searcher, cfg KnowledgeConfig, query string, k int) string {
	var sections []string
	num := 1

	var filter map[string]string
	if cfg.ProjectID != "" {
		filter = map[string]string{"project_id": cfg.ProjectID}
	}
	projectResults, err := kb.Query(ctx, cfg.ProjectCollection, query, k, filter)
	if err != nil {
		sections = append(sections, fmt.Sprintf("[Projekt-Suche Fehler: %v]", err))
	} else {
		for _, s := range projectResults {
			label := "Projekt"
			if cfg.ProjectID != "" {
				label = "Projekt " + cfg.ProjectID
			}
			sections = append(sections, formatSnippet(num, label, s))
			num++
		}
	}

	if cfg.GlobalCollection != "" {
		// The global knowledge base may not exist yet; its failures
		// never hide project results.
		globalResults, err := kb.Query(ctx, cfg.GlobalCollection, query, 3, nil)
		if err == nil {
			for _, s := range globalResults {
				sections = append(sections, formatSnippet(num, "Wissensdatenbank", s))
				num++
			}
		}
	}

	if len(sections) == 0 {
		return fmt.Sprintf("No relevant documents found for query: '%s'", query)
	}
	return strings.Join(sections, "\n---\n")
}

func formatSnippet(num int, label string, s memory.Snippet) string {
	source := s.Source
	if source == "" {
		source = "Unknown"
	}
	text := s.Text
	if len(text) > snippetMaxLen {
		text = text[:snippetMaxLen]
	}
	return fmt.Sprintf("[%d] [%s] %s\n%s\n", num, label, source, text)
}
