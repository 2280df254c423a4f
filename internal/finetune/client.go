// Package finetune es un proxy mínimo a la API de finetuning de Black Forest Labs.
package finetune

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"ki-studio/internal/upstream"
)

// Request es el cuerpo de POST /v1/finetune.
type Request struct {
	FileData        string  `json:"file_data" binding:"required"`
	FinetuneComment string  `json:"finetune_comment" binding:"required"`
	TriggerWord     string  `json:"trigger_word"`
	Mode            string  `json:"mode" binding:"omitempty,oneof=general character style product"`
	Iterations      int     `json:"iterations" binding:"omitempty,min=100,max=1000"`
	LearningRate    float64 `json:"learning_rate" binding:"omitempty,gt=0"`
	Captioning      *bool   `json:"captioning"`
	Priority        string  `json:"priority" binding:"omitempty,oneof=speed quality"`
	FinetuneType    string  `json:"finetune_type" binding:"omitempty,oneof=full lora"`
	LoraRank        int     `json:"lora_rank" binding:"omitempty,oneof=16 32"`
}

// Created es la respuesta al crear un finetune.
type Created struct {
	ID         string `json:"id"`
	PollingURL string `json:"polling_url,omitempty"`
}

// Status es el resultado de get_result para un trabajo de finetune.
type Status struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Client habla con https://api.eu1.bfl.ai usando la cabecera X-Key.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 120 * time.Second},
		logger:  logger,
	}
}

func (c *Client) Create(ctx context.Context, req Request) (Created, error) {
	var out Created
	err := c.doJSON(ctx, http.MethodPost, "/v1/finetune", req, &out)
	return out, err
}

// ListIDs devuelve los ids de los finetunes de la cuenta.
func (c *Client) ListIDs(ctx context.Context) ([]string, error) {
	var out struct {
		Finetunes []string `json:"finetunes"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/my_finetunes", nil, &out); err != nil {
		return nil, err
	}
	return out.Finetunes, nil
}

// Details devuelve el detalle crudo de un finetune.
func (c *Client) Details(ctx context.Context, id string) (json.RawMessage, error) {
	var out struct {
		FinetuneDetails json.RawMessage `json:"finetune_details"`
	}
	path := "/v1/finetune_details?" + url.Values{"finetune_id": []string{id}}.Encode()
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.FinetuneDetails, nil
}

func (c *Client) Status(ctx context.Context, id string) (Status, error) {
	var out Status
	path := "/v1/get_result?" + url.Values{"id": []string{id}}.Encode()
	err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	if out.ID == "" {
		out.ID = id
	}
	return out, err
}

func (c *Client) Delete(ctx context.Context, id string) error {
	payload := map[string]string{"finetune_id": id}
	return c.doJSON(ctx, http.MethodPost, "/v1/delete_finetune", payload, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Key", c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		upstream.Failed("bfl-finetune")
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	if err := upstream.Check("bfl-finetune", resp, c.logger); err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
