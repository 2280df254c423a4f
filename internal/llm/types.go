package llm

import (
	"context"
	"encoding/json"
)

// LLMClient define la interfaz para generar respuestas con un LLM.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ChatClient ejecuta conversaciones completas, con herramientas y en streaming.
type ChatClient interface {
	LLMClient
	Complete(ctx context.Context, req Request) (Completion, error)
	// Stream invoca onDelta por cada fragmento de texto y devuelve la respuesta acumulada.
	Stream(ctx context.Context, req Request, onDelta func(delta string) error) (Completion, error)
}

// Embedder genera vectores para la búsqueda semántica.
type Embedder interface {
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// Request es una petición de chat completion. Model vacío usa el modelo del cliente.
type Request struct {
	Model    string
	Messages []Message
	Tools    []Tool
}

type Completion struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
}
