package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/nwiesmann/faktotum/pkg/llm"
	"github.com/nwiesmann/faktotum/pkg/tool"
)

// ToolCaller abstracts MCP tool execution for adapters.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)
}

// ToolAdapter exposes one MCP server tool through the tool.Tool contract.
type ToolAdapter struct {
	tool   mcp.Tool
	caller ToolCaller
}

var _ tool.Tool = (*ToolAdapter)(nil)

// NewToolAdapter builds a tool.Tool backed by an MCP tool definition and caller.
func NewToolAdapter(t mcp.Tool, caller ToolCaller) (*ToolAdapter, error) {
	if t.Name == "" {
		return nil, errors.New("mcp tool name is required")
	}
	if caller == nil {
		return nil, errors.New("tool caller is required")
	}
	return &ToolAdapter{tool: t, caller: caller}, nil
}

// Name returns the MCP tool name.
func (t *ToolAdapter) Name() string {
	return t.tool.Name
}

// Definition returns the LLM function declaration for this tool.
func (t *ToolAdapter) Definition() llm.Tool {
	return ToolDefinition(t.tool)
}

// Call invokes the MCP tool and flattens the result to text.
func (t *ToolAdapter) Call(ctx context.Context, args map[string]any) (string, error) {
	if args == nil {
		args = map[string]any{}
	}
	if err := validateRequiredArgs(t.tool, args); err != nil {
		return "", err
	}

	result, err := t.caller.CallTool(ctx, t.tool.Name, args)
	if err != nil {
		return "", err
	}
	return toolResultText(result)
}

// ToolDefinition converts an MCP tool into an LLM function tool definition.
func ToolDefinition(t mcp.Tool) llm.Tool {
	var params any = t.InputSchema
	if t.RawInputSchema != nil {
		params = t.RawInputSchema
	}
	return llm.Tool{
		Type: llm.ToolTypeFunction,
		Function: llm.FunctionDef{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  params,
		},
	}
}

// SessionTools lists the server's tools once and wraps each one. The
// returned set is fixed for the session.
func SessionTools(ctx context.Context, c *Client) ([]tool.Tool, error) {
	listed, err := c.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	adapters := make([]tool.Tool, 0, len(listed))
	for _, t := range listed {
		adapter, err := NewToolAdapter(t, c)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter)
	}
	return adapters, nil
}

func validateRequiredArgs(t mcp.Tool, args map[string]any) error {
	schema := t.InputSchema
	if schema.Type != "" && schema.Type != "object" {
		return nil
	}
	for _, key := range schema.Required {
		if _, ok := args[key]; !ok {
			return fmt.Errorf("mcp tool args: missing required field %q", key)
		}
	}
	return nil
}

func toolResultText(result *mcp.CallToolResult) (string, error) {
	if result == nil {
		return "", errors.New("mcp tool result is nil")
	}

	if result.IsError {
		return "", fmt.Errorf("mcp tool returned error: %s", extractTextContent(result.Content))
	}

	if text := extractTextContent(result.Content); text != "" {
		return text, nil
	}

	if result.StructuredContent != nil {
		encoded, err := json.Marshal(result.StructuredContent)
		if err != nil {
			return "", fmt.Errorf("mcp tool result: failed to encode structured content: %w", err)
		}
		return string(encoded), nil
	}

	return "", nil
}

func extractTextContent(items []mcp.Content) string {
	if len(items) == 0 {
		return ""
	}
	var parts []string
	for _, item := range items {
		switch content := item.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n")
}
