package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"ki-studio/internal/upstream"
)

var ErrEmptyResponse = errors.New("llm empty response")

// HTTPClient implementa ChatClient y Embedder sobre la API de chat completions.
type HTTPClient struct {
	service    string
	baseURL    string
	apiKey     string
	authHeader string
	query      url.Values
	model      string
	client     *http.Client
	logger     *zap.Logger
}

// NewHTTPClient construye un cliente apuntando a una API compatible con OpenAI.
func NewHTTPClient(baseURL, apiKey, model string, logger *zap.Logger) *HTTPClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		service:    "openai",
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		authHeader: "Authorization",
		model:      model,
		client:     &http.Client{Timeout: 120 * time.Second},
		logger:     logger,
	}
}

// NewAzureClient apunta a un deployment de Azure OpenAI. resource puede ser el nombre
// del recurso o una URL base completa.
func NewAzureClient(resource, apiKey, apiVersion, deployment string, logger *zap.Logger) *HTTPClient {
	base := resource
	if !strings.Contains(resource, "://") {
		base = fmt.Sprintf("https://%s.openai.azure.com", resource)
	}
	c := NewHTTPClient(strings.TrimRight(base, "/")+"/openai/deployments/"+deployment, apiKey, deployment, logger)
	c.service = "azure"
	c.authHeader = "api-key"
	c.query = url.Values{"api-version": []string{apiVersion}}
	return c
}

// Model devuelve el modelo por defecto del cliente.
func (c *HTTPClient) Model() string {
	return c.model
}

func (c *HTTPClient) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := c.Complete(ctx, Request{Messages: []Message{{Role: RoleUser, Content: prompt}}})
	if err != nil {
		return "", err
	}
	if out.Content == "" {
		return "", ErrEmptyResponse
	}
	return out.Content, nil
}

func (c *HTTPClient) Complete(ctx context.Context, req Request) (Completion, error) {
	resp, err := c.post(ctx, "/chat/completions", c.chatBody(req, false))
	if err != nil {
		return Completion{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Completion{}, fmt.Errorf("read response: %w", err)
	}

	var cr chatResponse
	if err := json.Unmarshal(respBody, &cr); err != nil {
		return Completion{}, fmt.Errorf("unmarshal response: %w", err)
	}
	if cr.Error != nil {
		return Completion{}, fmt.Errorf("llm api error: %s", cr.Error.Message)
	}
	if len(cr.Choices) == 0 {
		return Completion{}, ErrEmptyResponse
	}

	choice := cr.Choices[0]
	return Completion{
		Content:      choice.Message.Content,
		ToolCalls:    choice.Message.ToolCalls,
		FinishReason: choice.FinishReason,
	}, nil
}

func (c *HTTPClient) Stream(ctx context.Context, req Request, onDelta func(delta string) error) (Completion, error) {
	resp, err := c.post(ctx, "/chat/completions", c.chatBody(req, true))
	if err != nil {
		return Completion{}, err
	}
	defer resp.Body.Close()

	var (
		content strings.Builder
		out     Completion
		calls   = map[int]*ToolCall{}
	)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return Completion{}, fmt.Errorf("unmarshal stream chunk: %w", err)
		}
		if chunk.Error != nil {
			return Completion{}, fmt.Errorf("llm api error: %s", chunk.Error.Message)
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				content.WriteString(choice.Delta.Content)
				if onDelta != nil {
					if err := onDelta(choice.Delta.Content); err != nil {
						return Completion{}, err
					}
				}
			}
			for _, d := range choice.Delta.ToolCalls {
				mergeToolCallDelta(calls, d)
			}
			if choice.FinishReason != "" {
				out.FinishReason = choice.FinishReason
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return Completion{}, fmt.Errorf("read stream: %w", err)
	}

	out.Content = content.String()
	out.ToolCalls = sortedToolCalls(calls)
	return out, nil
}

func (c *HTTPClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	resp, err := c.post(ctx, "/embeddings", embeddingRequest{Model: c.model, Input: input})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var er embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, fmt.Errorf("unmarshal embedding response: %w", err)
	}
	if len(er.Data) == 0 || len(er.Data[0].Embedding) == 0 {
		return nil, ErrEmptyResponse
	}
	return er.Data[0].Embedding, nil
}

func (c *HTTPClient) chatBody(req Request, stream bool) chatRequest {
	model := req.Model
	if model == "" {
		model = c.model
	}
	return chatRequest{
		Model:    model,
		Messages: req.Messages,
		Tools:    req.Tools,
		Stream:   stream,
	}
}

// post envía el payload y devuelve la respuesta sólo si el status es exitoso.
func (c *HTTPClient) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := c.baseURL + path
	if len(c.query) > 0 {
		endpoint += "?" + c.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.authHeader == "Authorization" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	} else {
		req.Header.Set(c.authHeader, c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		upstream.Failed(c.service)
		return nil, fmt.Errorf("do request: %w", err)
	}
	if err := upstream.Check(c.service, resp, c.logger); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

func mergeToolCallDelta(calls map[int]*ToolCall, d toolCallDelta) {
	tc, ok := calls[d.Index]
	if !ok {
		tc = &ToolCall{Type: "function"}
		calls[d.Index] = tc
	}
	if d.ID != "" {
		tc.ID = d.ID
	}
	if d.Type != "" {
		tc.Type = d.Type
	}
	if d.Function.Name != "" {
		tc.Function.Name = d.Function.Name
	}
	tc.Function.Arguments += d.Function.Arguments
}

func sortedToolCalls(calls map[int]*ToolCall) []ToolCall {
	if len(calls) == 0 {
		return nil
	}
	idx := make([]int, 0, len(calls))
	for i := range calls {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	out := make([]ToolCall, 0, len(idx))
	for _, i := range idx {
		out = append(out, *calls[i])
	}
	return out
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Tools    []Tool    `json:"tools,omitempty"`
	Stream   bool      `json:"stream,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type toolCallDelta struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string          `json:"content"`
			ToolCalls []toolCallDelta `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}
