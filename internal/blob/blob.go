// Package blob sube archivos a un almacenamiento de objetos con API estilo Vercel Blob.
package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"ki-studio/internal/upstream"
)

const apiVersion = "7"

var ErrNotConfigured = errors.New("blob storage not configured")

// Object es el resultado de una subida.
type Object struct {
	URL         string `json:"url"`
	DownloadURL string `json:"downloadUrl,omitempty"`
	Pathname    string `json:"pathname"`
	ContentType string `json:"contentType"`
}

// Uploader es lo que necesitan los servicios para guardar archivos.
type Uploader interface {
	Put(ctx context.Context, pathname, contentType string, body io.Reader) (Object, error)
}

type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *zap.Logger
}

func NewClient(baseURL, token string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
	}
}

// Configured indica si hay token para escribir.
func (c *Client) Configured() bool {
	return c != nil && c.token != ""
}

// Put sube body como objeto público en pathname.
func (c *Client) Put(ctx context.Context, pathname, contentType string, body io.Reader) (Object, error) {
	if !c.Configured() {
		return Object{}, ErrNotConfigured
	}

	endpoint := c.baseURL + "/" + strings.TrimLeft(pathname, "/") + "?access=public"
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, body)
	if err != nil {
		return Object{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("x-api-version", apiVersion)
	req.Header.Set("x-content-type", contentType)
	req.Header.Set("x-add-random-suffix", "0")

	resp, err := c.client.Do(req)
	if err != nil {
		upstream.Failed("blob")
		return Object{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	if err := upstream.Check("blob", resp, c.logger); err != nil {
		return Object{}, err
	}

	var obj Object
	if err := json.NewDecoder(resp.Body).Decode(&obj); err != nil {
		return Object{}, fmt.Errorf("unmarshal response: %w", err)
	}
	if obj.Pathname == "" {
		obj.Pathname = pathname
	}
	if obj.ContentType == "" {
		obj.ContentType = contentType
	}
	return obj, nil
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// NewPathname arma "<prefix>/<ulid>-<nombre saneado>". El ULID mantiene el orden de subida.
func NewPathname(prefix, filename string) string {
	name := unsafeChars.ReplaceAllString(path.Base(filename), "_")
	if name == "" || name == "." || name == "_" {
		name = "file"
	}
	return path.Join(prefix, strings.ToLower(ulid.Make().String())+"-"+name)
}
