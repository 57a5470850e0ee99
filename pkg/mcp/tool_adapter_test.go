package mcp

import (
	"context"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

type fakeCaller struct {
	result   *mcp.CallToolResult
	err      error
	lastName string
	lastArgs map[string]interface{}
}

func (f *fakeCaller) CallTool(_ context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	f.lastName = name
	f.lastArgs = args
	return f.result, f.err
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
	}
}

func TestToolAdapterCall(t *testing.T) {
	caller := &fakeCaller{result: textResult("Ergebnis")}
	adapter, err := NewToolAdapter(mcp.Tool{Name: "lookup"}, caller)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := adapter.Call(context.Background(), map[string]any{"id": "42"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Ergebnis" {
		t.Errorf("expected Ergebnis, got %q", out)
	}
	if caller.lastName != "lookup" || caller.lastArgs["id"] != "42" {
		t.Errorf("call not forwarded: %s %v", caller.lastName, caller.lastArgs)
	}
}

func TestToolAdapterRequiredArgs(t *testing.T) {
	caller := &fakeCaller{result: textResult("ok")}
	adapter, err := NewToolAdapter(mcp.Tool{
		Name: "lookup",
		InputSchema: mcp.ToolInputSchema{
			Type:     "object",
			Required: []string{"id"},
		},
	}, caller)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := adapter.Call(context.Background(), map[string]any{}); err == nil {
		t.Fatal("expected error for missing required field")
	}
	if caller.lastName != "" {
		t.Error("server should not have been called")
	}
}

func TestToolAdapterErrorResult(t *testing.T) {
	caller := &fakeCaller{result: &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "kaputt"}},
	}}
	adapter, err := NewToolAdapter(mcp.Tool{Name: "lookup"}, caller)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := adapter.Call(context.Background(), nil); err == nil {
		t.Fatal("expected error for IsError result")
	}
}

func TestToolAdapterStructuredContent(t *testing.T) {
	caller := &fakeCaller{result: &mcp.CallToolResult{
		StructuredContent: map[string]any{"count": 3},
	}}
	adapter, err := NewToolAdapter(mcp.Tool{Name: "lookup"}, caller)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := adapter.Call(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"count":3}` {
		t.Errorf("expected JSON text, got %q", out)
	}
}

func TestToolAdapterValidation(t *testing.T) {
	if _, err := NewToolAdapter(mcp.Tool{}, &fakeCaller{}); err == nil {
		t.Error("expected error for missing tool name")
	}
	if _, err := NewToolAdapter(mcp.Tool{Name: "x"}, nil); err == nil {
		t.Error("expected error for nil caller")
	}
}

func TestToolDefinition(t *testing.T) {
	def := ToolDefinition(mcp.Tool{
		Name:        "lookup",
		Description: "looks things up",
		InputSchema: mcp.ToolInputSchema{Type: "object"},
	})
	if def.Function.Name != "lookup" || def.Function.Description != "looks things up" {
		t.Errorf("unexpected definition: %+v", def)
	}
}

func TestToolAdapterCallError(t *testing.T) {
	caller := &fakeCaller{err: fmt.Errorf("server down")}
	adapter, err := NewToolAdapter(mcp.Tool{Name: "lookup"}, caller)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := adapter.Call(context.Background(), nil); err == nil {
		t.Fatal("expected transport error to propagate")
	}
}
