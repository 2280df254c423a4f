package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"go.uber.org/zap"

	"ki-studio/internal/blob"
	"ki-studio/internal/domain"
	"ki-studio/internal/imagegen"
)

type mockGenerator struct {
	img     imagegen.Image
	err     error
	prompts []string
}

func (m *mockGenerator) Generate(_ context.Context, prompt string) (imagegen.Image, error) {
	m.prompts = append(m.prompts, prompt)
	return m.img, m.err
}

type mockUploader struct {
	pathnames []string
	bodies    []string
	err       error
}

func (m *mockUploader) Put(_ context.Context, pathname, contentType string, body io.Reader) (blob.Object, error) {
	if m.err != nil {
		return blob.Object{}, m.err
	}
	b, _ := io.ReadAll(body)
	m.pathnames = append(m.pathnames, pathname)
	m.bodies = append(m.bodies, string(b))
	return blob.Object{URL: "https://cdn/" + pathname, Pathname: pathname, ContentType: contentType}, nil
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string) bool { return false }

func TestPromptFromMessages(t *testing.T) {
	if _, err := PromptFromMessages(nil); !errors.Is(err, ErrInvalidRequestBody) {
		t.Fatalf("expected ErrInvalidRequestBody, got %v", err)
	}
	if _, err := PromptFromMessages([]domain.Message{{}}); !errors.Is(err, ErrInvalidRequestBody) {
		t.Fatalf("expected ErrInvalidRequestBody for no parts, got %v", err)
	}
	if _, err := PromptFromMessages([]domain.Message{{Parts: textParts("  ")}}); !errors.Is(err, ErrMissingPrompt) {
		t.Fatalf("expected ErrMissingPrompt, got %v", err)
	}
	prompt, err := PromptFromMessages([]domain.Message{
		{Parts: textParts("viejo")},
		{Parts: []domain.MessagePart{{Type: domain.PartText, Text: "un faro"}, {Type: domain.PartText, Text: "ignorado"}}},
	})
	if err != nil || prompt != "un faro" {
		t.Fatalf("unexpected prompt %q %v", prompt, err)
	}
}

func TestImageService_GenerateSavesToBlob(t *testing.T) {
	gen := &mockGenerator{img: imagegen.Image{Base64: "aG9sYQ==", MediaType: imagegen.MediaTypeJPEG}}
	up := &mockUploader{}
	svc := NewImageService(zap.NewNop(), gen, up, nil)

	out, err := svc.Generate(context.Background(), "u1", " un faro ")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out.Prompt != "un faro" || out.Image != "aG9sYQ==" || out.ToolCallID == "" {
		t.Fatalf("unexpected output %+v", out)
	}
	if len(up.bodies) != 1 || up.bodies[0] != "hola" {
		t.Fatalf("expected decoded image uploaded, got %v", up.bodies)
	}
	if !strings.HasPrefix(up.pathnames[0], "generated/") || !strings.HasSuffix(up.pathnames[0], "-image.jpg") {
		t.Fatalf("unexpected pathname %s", up.pathnames[0])
	}
	if out.URL == "" || out.Output()["url"] != out.URL {
		t.Fatalf("expected blob url in output")
	}

	part := out.Part()
	if part.Type != "tool-generateImage" || part.State != "output-available" || part.ToolCallID != out.ToolCallID {
		t.Fatalf("unexpected part %+v", part)
	}
}

func TestImageService_BlobFailureIsNotFatal(t *testing.T) {
	gen := &mockGenerator{img: imagegen.Image{Base64: "aG9sYQ=="}}
	svc := NewImageService(zap.NewNop(), gen, &mockUploader{err: errors.New("blob down")}, nil)

	out, err := svc.Generate(context.Background(), "u1", "x")
	if err != nil {
		t.Fatalf("expected success without blob, got %v", err)
	}
	if out.URL != "" {
		t.Fatalf("expected no url")
	}
	if _, ok := out.Output()["url"]; ok {
		t.Fatalf("url should be omitted from output")
	}
}

func TestImageService_RateLimitedAndErrors(t *testing.T) {
	gen := &mockGenerator{}
	svc := NewImageService(zap.NewNop(), gen, nil, denyLimiter{})
	if _, err := svc.Generate(context.Background(), "u1", "x"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if len(gen.prompts) != 0 {
		t.Fatalf("generator must not be called when rate limited")
	}

	failing := NewImageService(zap.NewNop(), &mockGenerator{err: imagegen.ErrPollTimeout}, nil, nil)
	if _, err := failing.Generate(context.Background(), "u1", "x"); !errors.Is(err, imagegen.ErrPollTimeout) {
		t.Fatalf("expected ErrPollTimeout, got %v", err)
	}
	if _, err := failing.Generate(context.Background(), "u1", " "); !errors.Is(err, ErrMissingPrompt) {
		t.Fatalf("expected ErrMissingPrompt, got %v", err)
	}
}
