package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"ki-studio/internal/metrics"
	"ki-studio/internal/upstream"
)

const (
	FluxModelPro     = "flux-1.1-pro"
	FluxModelKontext = "flux-kontext"

	defaultPollAttempts = 30
	defaultPollInterval = time.Second

	statusReady  = "Ready"
	statusFailed = "Failed"
)

// IsFluxModel indica si el modelo es uno de los soportados por BFL.
func IsFluxModel(model string) bool {
	return model == FluxModelPro || model == FluxModelKontext
}

// JobFailedError indica que el proveedor marcó el trabajo como fallido.
type JobFailedError struct {
	Payload string
}

func (e *JobFailedError) Error() string {
	return "Flux image generation failed: " + e.Payload
}

// FluxClient genera imágenes con la API asíncrona de Black Forest Labs: crea un
// trabajo y consulta su resultado con un número fijo de intentos.
type FluxClient struct {
	baseURL      string
	apiKey       string
	model        string
	pollAttempts int
	pollInterval time.Duration
	client       *http.Client
	logger       *zap.Logger
}

func NewFluxClient(baseURL, apiKey, model string, logger *zap.Logger) *FluxClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if model == "" {
		model = FluxModelPro
	}
	return &FluxClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		model:        model,
		pollAttempts: defaultPollAttempts,
		pollInterval: defaultPollInterval,
		client:       &http.Client{Timeout: 60 * time.Second},
		logger:       logger,
	}
}

// WithPolling ajusta intentos e intervalo del polling.
func (c *FluxClient) WithPolling(attempts int, interval time.Duration) *FluxClient {
	if attempts > 0 {
		c.pollAttempts = attempts
	}
	if interval >= 0 {
		c.pollInterval = interval
	}
	return c
}

type fluxRequest struct {
	Prompt           string `json:"prompt"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	Steps            int    `json:"steps"`
	PromptUpsampling bool   `json:"prompt_upsampling"`
	Seed             int    `json:"seed"`
	Guidance         int    `json:"guidance"`
	SafetyTolerance  int    `json:"safety_tolerance"`
	OutputFormat     string `json:"output_format"`
}

type fluxResult struct {
	Status string `json:"status"`
	Result *struct {
		Sample string `json:"sample"`
	} `json:"result"`
}

func (c *FluxClient) Generate(ctx context.Context, prompt string) (Image, error) {
	id, err := c.submit(ctx, prompt)
	if err != nil {
		return Image{}, err
	}

	imageURL, err := c.PollImage(ctx, id)
	if err != nil {
		return Image{}, err
	}

	return c.download(ctx, imageURL)
}

func (c *FluxClient) submit(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(fluxRequest{
		Prompt:           prompt,
		Width:            1024,
		Height:           768,
		Steps:            28,
		PromptUpsampling: false,
		Seed:             42,
		Guidance:         3,
		SafetyTolerance:  2,
		OutputFormat:     "jpeg",
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/"+url.PathEscape(c.model), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Key", c.apiKey)

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if created.ID == "" {
		return "", ErrMissingJobID
	}
	return created.ID, nil
}

// PollImage consulta get_result hasta obtener la URL de la imagen. Espera pollInterval
// antes de cada intento salvo el primero, sin backoff. Sólo Ready con sample o Failed
// cortan el ciclo; cualquier otra respuesta, incluso un status HTTP de error, se reintenta.
func (c *FluxClient) PollImage(ctx context.Context, id string) (string, error) {
	endpoint := c.baseURL + "/v1/get_result?" + url.Values{"id": []string{id}}.Encode()

	for attempt := 0; attempt < c.pollAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.pollInterval):
			}
		}
		metrics.IncPollAttempt("flux")

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return "", fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Key", c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			upstream.Failed("flux")
			return "", fmt.Errorf("do request: %w", err)
		}
		metrics.ObserveUpstream("flux", resp.StatusCode)
		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return "", fmt.Errorf("read response: %w", err)
		}

		var res fluxResult
		if err := json.Unmarshal(raw, &res); err != nil {
			if resp.StatusCode >= 400 {
				c.logger.Debug("flux poll error response", zap.String("id", id), zap.Int("status", resp.StatusCode), zap.ByteString("body", raw))
				continue
			}
			return "", fmt.Errorf("unmarshal poll response: %w", err)
		}

		c.logger.Debug("flux poll",
			zap.String("id", id),
			zap.Int("attempt", attempt+1),
			zap.Int("http_status", resp.StatusCode),
			zap.String("status", res.Status),
		)

		switch res.Status {
		case statusReady:
			if res.Result != nil && res.Result.Sample != "" {
				return res.Result.Sample, nil
			}
		case statusFailed:
			return "", &JobFailedError{Payload: string(raw)}
		}
	}
	return "", ErrPollTimeout
}

func (c *FluxClient) download(ctx context.Context, imageURL string) (Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return Image{}, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.do(req)
	if err != nil {
		return Image{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Image{}, fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return Image{}, ErrEmptyImage
	}
	return Image{Base64: base64.StdEncoding.EncodeToString(data), MediaType: MediaTypeJPEG}, nil
}

func (c *FluxClient) do(req *http.Request) (*http.Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		upstream.Failed("flux")
		return nil, fmt.Errorf("do request: %w", err)
	}
	if err := upstream.Check("flux", resp, c.logger); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}
