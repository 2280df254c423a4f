package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"ki-studio/internal/blob"
)

type concurrentUploader struct {
	mu    sync.Mutex
	calls int
	fail  string
}

func (u *concurrentUploader) Put(_ context.Context, pathname, contentType string, body io.Reader) (blob.Object, error) {
	data, _ := io.ReadAll(body)
	u.mu.Lock()
	u.calls++
	u.mu.Unlock()
	if u.fail != "" && string(data) == u.fail {
		return blob.Object{}, errors.New("blob down")
	}
	return blob.Object{URL: "https://cdn/" + pathname, Pathname: pathname, ContentType: contentType}, nil
}

const (
	pngMagic  = "\x89PNG\r\n\x1a\n"
	jpegMagic = "\xff\xd8\xff\xe0"
	gifMagic  = "GIF89a"
)

func fileInput(name, body string) UploadInput {
	return UploadInput{
		Filename: name,
		Size:     int64(len(body)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}
}

func TestUploadService_Validation(t *testing.T) {
	svc := NewUploadService(zap.NewNop(), &concurrentUploader{})
	ctx := context.Background()

	if _, err := svc.Upload(ctx, "u1", UploadInput{}); !errors.Is(err, ErrNoFile) {
		t.Fatalf("expected ErrNoFile, got %v", err)
	}
	big := fileInput("a.png", "")
	big.Size = MaxUploadSize + 1
	if _, err := svc.Upload(ctx, "u1", big); !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
	if _, err := svc.Upload(ctx, "u1", fileInput("a.gif", gifMagic+"x")); !errors.Is(err, ErrUnsupportedFileType) {
		t.Fatalf("expected ErrUnsupportedFileType, got %v", err)
	}
}

func TestUploadService_UploadPathname(t *testing.T) {
	svc := NewUploadService(zap.NewNop(), &concurrentUploader{})
	obj, err := svc.Upload(context.Background(), "u1", fileInput("foto.png", pngMagic+"png"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.HasPrefix(obj.Pathname, "uploads/u1/") || !strings.HasSuffix(obj.Pathname, "-foto.png") {
		t.Fatalf("unexpected pathname %s", obj.Pathname)
	}
	if obj.ContentType != "image/png" {
		t.Fatalf("unexpected content type %s", obj.ContentType)
	}
}

func TestUploadService_DetectsTypeFromContent(t *testing.T) {
	svc := NewUploadService(zap.NewNop(), &concurrentUploader{})
	ctx := context.Background()

	if _, err := svc.Upload(ctx, "u1", fileInput("disfrazado.png", gifMagic+"not a png")); !errors.Is(err, ErrUnsupportedFileType) {
		t.Fatalf("expected ErrUnsupportedFileType for gif named png, got %v", err)
	}
	obj, err := svc.Upload(ctx, "u1", fileInput("foto.png", jpegMagic+"jpeg"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if obj.ContentType != "image/jpeg" {
		t.Fatalf("expected detected image/jpeg, got %s", obj.ContentType)
	}
}

func TestUploadService_BatchKeepsOrder(t *testing.T) {
	up := &concurrentUploader{}
	svc := NewUploadService(zap.NewNop(), up)

	files := []UploadInput{
		fileInput("1.png", pngMagic+"1"),
		fileInput("2.jpg", jpegMagic+"2"),
		fileInput("3.png", pngMagic+"3"),
		fileInput("4.png", pngMagic+"4"),
		fileInput("5.png", pngMagic+"5"),
	}
	out, err := svc.UploadBatch(context.Background(), "u1", files)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(out) != len(files) || up.calls != len(files) {
		t.Fatalf("expected %d uploads, got %d (calls=%d)", len(files), len(out), up.calls)
	}
	for i, f := range files {
		if !strings.HasSuffix(out[i].Pathname, "-"+f.Filename) {
			t.Fatalf("result %d out of order: %s", i, out[i].Pathname)
		}
	}
}

func TestUploadService_BatchValidatesBeforeUploading(t *testing.T) {
	up := &concurrentUploader{}
	svc := NewUploadService(zap.NewNop(), up)

	_, err := svc.UploadBatch(context.Background(), "u1", []UploadInput{
		fileInput("ok.png", pngMagic+"1"),
		fileInput("bad.txt", "just text"),
	})
	if !errors.Is(err, ErrUnsupportedFileType) {
		t.Fatalf("expected ErrUnsupportedFileType, got %v", err)
	}
	if up.calls != 0 {
		t.Fatalf("nothing should be uploaded when validation fails")
	}

	if _, err := svc.UploadBatch(context.Background(), "u1", nil); !errors.Is(err, ErrNoFile) {
		t.Fatalf("expected ErrNoFile, got %v", err)
	}
}

func TestUploadService_BatchFailsOnAnyUploadError(t *testing.T) {
	svc := NewUploadService(zap.NewNop(), &concurrentUploader{fail: pngMagic + "2"})
	_, err := svc.UploadBatch(context.Background(), "u1", []UploadInput{
		fileInput("1.png", pngMagic+"1"),
		fileInput("2.png", pngMagic+"2"),
	})
	if err == nil {
		t.Fatalf("expected batch failure")
	}
}
