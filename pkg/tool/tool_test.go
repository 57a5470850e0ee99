package tool

import (
	"context"
	"testing"
)

func echoTool(name string) *Func {
	return NewFunc(name, "echoes its input", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{"type": "string"},
		},
		"required": []string{"text"},
	}, func(ctx context.Context, args map[string]any) (string, error) {
		s, _ := args["text"].(string)
		return s, nil
	})
}

func TestFuncDefinition(t *testing.T) {
	f := echoTool("echo")

	def := f.Definition()
	if def.Function.Name != "echo" {
		t.Errorf("expected name echo, got %q", def.Function.Name)
	}
	if def.Function.Description != "echoes its input" {
		t.Errorf("unexpected description: %q", def.Function.Description)
	}
	params, ok := def.Function.Parameters.(map[string]any)
	if !ok || params["type"] != "object" {
		t.Errorf("expected object schema, got %v", def.Function.Parameters)
	}
}

func TestFuncCall(t *testing.T) {
	f := echoTool("echo")

	out, err := f.Call(context.Background(), map[string]any{"text": "hallo"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hallo" {
		t.Errorf("expected hallo, got %q", out)
	}
}

func TestRegistryOrder(t *testing.T) {
	r, err := NewRegistry(echoTool("b"), echoTool("a"), echoTool("c"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	names := r.Names()
	if len(names) != 3 || names[0] != "b" || names[1] != "a" || names[2] != "c" {
		t.Errorf("expected registration order [b a c], got %v", names)
	}

	defs := r.Definitions()
	if len(defs) != 3 || defs[0].Function.Name != "b" {
		t.Errorf("definitions do not follow registration order: %v", defs)
	}
}

func TestRegistryDuplicate(t *testing.T) {
	_, err := NewRegistry(echoTool("dup"), echoTool("dup"))
	if err == nil {
		t.Fatal("expected error for duplicate tool name")
	}
}

func TestRegistryGet(t *testing.T) {
	r, err := NewRegistry(echoTool("echo"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := r.Get("echo"); !ok {
		t.Error("expected to find echo")
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("did not expect to find missing")
	}
}

func TestRegistryEmpty(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("expected empty registry, got %d", r.Len())
	}
	if defs := r.Definitions(); defs != nil {
		t.Errorf("expected nil definitions, got %v", defs)
	}
}
