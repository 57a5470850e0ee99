package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nwiesmann/faktotum/pkg/tool"
)

const defaultTavilyURL = "https://api.tavily.com/search"

// WebSearch queries the Tavily search API.
type WebSearch struct {
	apiKey     string
	baseURL    string
	maxResults int
	client     *http.Client
}

// WebSearchOption customizes the web search capability.
type WebSearchOption func(*WebSearch)

// WithBaseURL overrides the API endpoint. Used in tests.
func WithBaseURL(url string) WebSearchOption {
	return func(w *WebSearch) { w.baseURL = url }
}

// WithMaxResults bounds the number of returned results.
func WithMaxResults(n int) WebSearchOption {
	return func(w *WebSearch) { w.maxResults = n }
}

// NewWebSearch builds the web_search capability.
func NewWebSearch(apiKey string, opts ...WebSearchOption) *tool.Func {
	w := &WebSearch{
		apiKey:     apiKey,
		baseURL:    defaultTavilyURL,
		maxResults: 5,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(w)
	}

	return tool.NewFunc(
		"web_search",
		"Search the web for current information. Use this for questions about current events, documentation, or topics not in the knowledge base.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query",
				},
			},
			"required": []string{"query"},
		},
		func(ctx context.Context, args map[string]any) (string, error) {
			query, _ := args["query"].(string)
			if query == "" {
				return "", fmt.Errorf("query is required")
			}
			return w.search(ctx, query)
		},
	)
}

type tavilyRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	MaxResults    int    `json:"max_results"`
	Topic         string `json:"topic"`
	IncludeAnswer bool   `json:"include_answer"`
}

type tavilyResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

func (w *WebSearch) search(ctx context.Context, query string) (string, error) {
	body, err := json.Marshal(tavilyRequest{
		APIKey:        w.apiKey,
		Query:         query,
		MaxResults:    w.maxResults,
		Topic:         "general",
		IncludeAnswer: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("web search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search api returned status %d", resp.StatusCode)
	}

	var parsed tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode search response: %w", err)
	}

	if len(parsed.Results) == 0 {
		if parsed.Answer != "" {
			return "Answer: " + parsed.Answer, nil
		}
		return fmt.Sprintf("No web results found for: %s", query), nil
	}

	var formatted []string
	if parsed.Answer != "" {
		formatted = append(formatted, "Summary: "+parsed.Answer+"\n")
	}
	for i, r := range parsed.Results {
		title := r.Title
		if title == "" {
			title = "No title"
		}
		content := r.Content
		if len(content) > 300 {
			content = content[:300]
		}
		formatted = append(formatted, fmt.Sprintf("[%d] %s\n    URL: %s\n    %s", i+1, title, r.URL, content))
	}
	return strings.Join(formatted, "\n\n"), nil
}
