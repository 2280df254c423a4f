package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ki-studio/internal/blob"
	"ki-studio/internal/domain"
	"ki-studio/internal/imagegen"
	"ki-studio/internal/metrics"
)

const (
	toolGenerateImage = "generateImage"
	toolPartType      = "tool-" + toolGenerateImage
	stateOutput       = "output-available"
	stateError        = "output-error"
)

var (
	ErrInvalidRequestBody = errors.New("Invalid request body")
	ErrMissingPrompt      = errors.New("Missing prompt")
)

// GeneratedImage es el resultado de una generación, listo para el front end.
type GeneratedImage struct {
	ToolCallID string
	Prompt     string
	Image      string
	MediaType  string
	URL        string
}

// Output devuelve el objeto "output" de la parte tool-generateImage.
func (g GeneratedImage) Output() map[string]any {
	out := map[string]any{"image": g.Image}
	if g.URL != "" {
		out["url"] = g.URL
	}
	return out
}

// Part arma la parte de mensaje con la imagen generada.
func (g GeneratedImage) Part() domain.MessagePart {
	return domain.MessagePart{
		Type:       toolPartType,
		State:      stateOutput,
		ToolCallID: g.ToolCallID,
		Input:      map[string]any{"prompt": g.Prompt},
		Output:     g.Output(),
	}
}

// ImageService genera imágenes y las guarda opcionalmente en blob storage.
type ImageService struct {
	logger    *zap.Logger
	generator imagegen.Generator
	uploader  blob.Uploader
	limiter   RateLimiter
}

// NewImageService acepta uploader y limiter nil: sin blob no hay URL, sin limiter no hay límite.
func NewImageService(logger *zap.Logger, generator imagegen.Generator, uploader blob.Uploader, limiter RateLimiter) *ImageService {
	return &ImageService{
		logger:    logger,
		generator: generator,
		uploader:  uploader,
		limiter:   limiter,
	}
}

// PromptFromMessages toma el texto de la primera parte del último mensaje.
func PromptFromMessages(messages []domain.Message) (string, error) {
	if len(messages) == 0 {
		return "", ErrInvalidRequestBody
	}
	last := messages[len(messages)-1]
	if len(last.Parts) == 0 {
		return "", ErrInvalidRequestBody
	}
	prompt := strings.TrimSpace(last.Parts[0].Text)
	if prompt == "" {
		return "", ErrMissingPrompt
	}
	return prompt, nil
}

// UserLimitKey es la clave de rate limit de un usuario autenticado, compartida por
// /api/image y la herramienta generateImage del chat.
func UserLimitKey(userID string) string {
	return "user:" + userID
}

// IPLimitKey es la clave de rate limit de un llamador anónimo.
func IPLimitKey(ip string) string {
	return "ip:" + ip
}

// Generate genera la imagen para prompt. limitKey identifica al llamador para el rate limit.
func (s *ImageService) Generate(ctx context.Context, limitKey, prompt string) (GeneratedImage, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return GeneratedImage{}, ErrMissingPrompt
	}
	if s.limiter != nil && !s.limiter.Allow(ctx, limitKey) {
		metrics.IncRateLimited("image")
		return GeneratedImage{}, ErrRateLimited
	}

	img, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return GeneratedImage{}, err
	}

	out := GeneratedImage{
		ToolCallID: uuid.NewString(),
		Prompt:     prompt,
		Image:      img.Base64,
		MediaType:  img.MediaType,
	}
	if s.uploader != nil {
		if url, err := s.saveImageToBlob(ctx, img); err != nil {
			s.logger.Warn("save image to blob failed", zap.Error(err))
		} else {
			out.URL = url
		}
	}
	return out, nil
}

func (s *ImageService) saveImageToBlob(ctx context.Context, img imagegen.Image) (string, error) {
	data, err := base64.StdEncoding.DecodeString(img.Base64)
	if err != nil {
		return "", err
	}
	contentType := img.MediaType
	if contentType == "" {
		contentType = imagegen.MediaTypeJPEG
	}
	ext := ".jpg"
	if contentType == "image/png" {
		ext = ".png"
	}
	obj, err := s.uploader.Put(ctx, blob.NewPathname("generated", "image"+ext), contentType, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	return obj.URL, nil
}
