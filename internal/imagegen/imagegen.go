// Package imagegen encapsula los proveedores de generación de imágenes.
package imagegen

import (
	"context"
	"errors"
)

const MediaTypeJPEG = "image/jpeg"

var (
	ErrEmptyImage   = errors.New("provider returned no image")
	ErrMissingJobID = errors.New("no id returned from image provider")
	// ErrPollTimeout se devuelve cuando se agotan los intentos sin una URL de imagen.
	ErrPollTimeout = errors.New("timed out or no image URL returned")
)

// Image es una imagen generada codificada en base64.
type Image struct {
	Base64    string
	MediaType string
}

// Generator genera una imagen a partir de un prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (Image, error)
}
