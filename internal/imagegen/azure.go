package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"ki-studio/internal/upstream"
)

// AzureClient genera imágenes con un deployment de Azure AI Foundry (FLUX).
type AzureClient struct {
	endpoint   string
	deployment string
	apiVersion string
	apiKey     string
	client     *http.Client
	logger     *zap.Logger
}

func NewAzureClient(endpoint, deployment, apiVersion, apiKey string, logger *zap.Logger) *AzureClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AzureClient{
		endpoint:   strings.TrimRight(endpoint, "/"),
		deployment: deployment,
		apiVersion: apiVersion,
		apiKey:     apiKey,
		client:     &http.Client{Timeout: 120 * time.Second},
		logger:     logger,
	}
}

type azureRequest struct {
	Prompt       string `json:"prompt"`
	N            int    `json:"n"`
	Size         string `json:"size"`
	OutputFormat string `json:"output_format"`
}

type azureResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

func (c *AzureClient) Generate(ctx context.Context, prompt string) (Image, error) {
	body, err := json.Marshal(azureRequest{Prompt: prompt, N: 1, Size: "1024x1024", OutputFormat: "jpeg"})
	if err != nil {
		return Image{}, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/openai/deployments/%s/images/generations?%s",
		c.endpoint, url.PathEscape(c.deployment), url.Values{"api-version": []string{c.apiVersion}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Image{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		upstream.Failed("azure-image")
		return Image{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	if err := upstream.Check("azure-image", resp, c.logger); err != nil {
		return Image{}, err
	}

	var ar azureResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return Image{}, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(ar.Data) == 0 || ar.Data[0].B64JSON == "" {
		return Image{}, ErrEmptyImage
	}
	return Image{Base64: ar.Data[0].B64JSON, MediaType: MediaTypeJPEG}, nil
}
