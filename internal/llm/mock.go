package llm

import (
	"context"
	"sync"
)

// MockClient permite tests sin llamar a un LLM real. Cada llamada a Complete o Stream
// consume la siguiente respuesta de Completions; la última se repite.
type MockClient struct {
	Response    string
	Completions []Completion
	Err         error
	Embedding   []float32

	mu       sync.Mutex
	calls    int
	Requests []Request
}

func (m *MockClient) Generate(ctx context.Context, prompt string) (string, error) {
	return m.Response, m.Err
}

func (m *MockClient) Complete(ctx context.Context, req Request) (Completion, error) {
	return m.next(req)
}

func (m *MockClient) Stream(ctx context.Context, req Request, onDelta func(delta string) error) (Completion, error) {
	out, err := m.next(req)
	if err != nil {
		return Completion{}, err
	}
	if out.Content != "" && onDelta != nil {
		if err := onDelta(out.Content); err != nil {
			return Completion{}, err
		}
	}
	return out, nil
}

func (m *MockClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Embedding, nil
}

// Calls devuelve cuántas veces se llamó a Complete o Stream.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockClient) next(req Request) (Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	m.calls++
	if m.Err != nil {
		return Completion{}, m.Err
	}
	if len(m.Completions) == 0 {
		return Completion{Content: m.Response}, nil
	}
	i := m.calls - 1
	if i >= len(m.Completions) {
		i = len(m.Completions) - 1
	}
	return m.Completions[i], nil
}
