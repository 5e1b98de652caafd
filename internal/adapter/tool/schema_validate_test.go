package tool

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"agent-service/internal/domain"
)

// stubTool is a minimal tool for testing schema validation and the registry.
type stubTool struct {
	name   string
	schema json.RawMessage
	calls  int
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub " + s.name }
func (s *stubTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{Name: s.name, Description: s.Description(), Parameters: s.schema}
}
func (s *stubTool) Execute(_ context.Context, _ json.RawMessage) (*domain.ToolResult, error) {
	s.calls++
	return TextResult("ok"), nil
}

var nameSchema = json.RawMessage(`{
	"type": "object",
	"properties": {"name": {"type": "string"}},
	"required": ["name"]
}`)

func TestSchemaValidation(t *testing.T) {
	tests := []struct {
		name      string
		params    string
		wantError string
	}{
		{"valid", `{"name":"alice"}`, ""},
		{"missing required", `{}`, "do not match its schema"},
		{"wrong type", `{"name":42}`, "do not match its schema"},
		{"invalid json", `{bad`, "invalid JSON arguments"},
		{"empty params", ``, "do not match its schema"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := &stubTool{name: "greet", schema: nameSchema}
			wrapped, err := WithSchemaValidation(inner)
			if err != nil {
				t.Fatalf("WithSchemaValidation: %v", err)
			}

			result, err := wrapped.Execute(context.Background(), json.RawMessage(tt.params))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantError == "" {
				if result.IsError || inner.calls != 1 {
					t.Errorf("result = %+v, calls = %d", result, inner.calls)
				}
				return
			}
			if !result.IsError || !strings.Contains(result.Content, tt.wantError) {
				t.Errorf("result = %+v, want error containing %q", result, tt.wantError)
			}
			if inner.calls != 0 {
				t.Error("inner tool must not run when validation fails")
			}
		})
	}
}

func TestSchemaValidation_NoSchema(t *testing.T) {
	inner := &stubTool{name: "plain"}
	wrapped, err := WithSchemaValidation(inner)
	if err != nil {
		t.Fatal(err)
	}
	if wrapped != domain.Tool(inner) {
		t.Error("tool without schema should be returned unwrapped")
	}
}

func TestSchemaValidation_BadSchema(t *testing.T) {
	inner := &stubTool{name: "broken", schema: json.RawMessage(`{"type": 12}`)}
	if _, err := WithSchemaValidation(inner); err == nil {
		t.Error("expected compile error for invalid schema")
	}
}

func TestSchemaValidation_Delegates(t *testing.T) {
	inner := &stubTool{name: "greet", schema: nameSchema}
	wrapped, _ := WithSchemaValidation(inner)
	svt, ok := wrapped.(*SchemaValidatingTool)
	if !ok {
		t.Fatalf("wrapped type = %T", wrapped)
	}
	if svt.Unwrap() != domain.Tool(inner) || svt.Name() != "greet" || svt.Description() != "stub greet" {
		t.Error("wrapper should delegate identity to the inner tool")
	}
}
