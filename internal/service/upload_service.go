package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ki-studio/internal/blob"
)

const (
	MaxUploadSize     = 5 << 20
	uploadConcurrency = 4
)

var (
	ErrNoFile              = errors.New("No file uploaded")
	ErrFileTooLarge        = errors.New("File size should be less than 5MB")
	ErrUnsupportedFileType = errors.New("File type should be JPEG or PNG")
)

var allowedUploadTypes = []string{"image/jpeg", "image/png"}

// UploadInput describe un archivo recibido. Open debe devolver el contenido desde el
// principio en cada llamada: se abre una vez para detectar el tipo y otra para subirlo.
type UploadInput struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

type UploadService struct {
	logger   *zap.Logger
	uploader blob.Uploader
}

func NewUploadService(logger *zap.Logger, uploader blob.Uploader) *UploadService {
	return &UploadService{logger: logger, uploader: uploader}
}

func (s *UploadService) Upload(ctx context.Context, userID string, in UploadInput) (blob.Object, error) {
	contentType, err := validateUpload(in)
	if err != nil {
		return blob.Object{}, err
	}
	return s.put(ctx, userID, in, contentType)
}

// UploadBatch valida todos los archivos antes de subir y luego sube en paralelo.
// El resultado respeta el orden de entrada; cualquier fallo falla el lote.
func (s *UploadService) UploadBatch(ctx context.Context, userID string, files []UploadInput) ([]blob.Object, error) {
	if len(files) == 0 {
		return nil, ErrNoFile
	}
	contentTypes := make([]string, len(files))
	for i, f := range files {
		ct, err := validateUpload(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Filename, err)
		}
		contentTypes[i] = ct
	}

	out := make([]blob.Object, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for i, f := range files {
		g.Go(func() error {
			obj, err := s.put(gctx, userID, f, contentTypes[i])
			if err != nil {
				return fmt.Errorf("upload %s: %w", f.Filename, err)
			}
			out[i] = obj
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *UploadService) put(ctx context.Context, userID string, in UploadInput, contentType string) (blob.Object, error) {
	rc, err := in.Open()
	if err != nil {
		return blob.Object{}, fmt.Errorf("open file: %w", err)
	}
	defer rc.Close()

	pathname := blob.NewPathname(path.Join("uploads", userID), in.Filename)
	obj, err := s.uploader.Put(ctx, pathname, contentType, io.LimitReader(rc, MaxUploadSize))
	if err != nil {
		return blob.Object{}, err
	}
	s.logger.Debug("file uploaded", zap.String("user_id", userID), zap.String("pathname", obj.Pathname))
	return obj, nil
}

// validateUpload revisa tamaño y tipo. El tipo se detecta por los primeros bytes del
// archivo; el Content-Type del cliente no se usa.
func validateUpload(in UploadInput) (string, error) {
	if in.Open == nil {
		return "", ErrNoFile
	}
	if in.Size > MaxUploadSize {
		return "", ErrFileTooLarge
	}
	rc, err := in.Open()
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer rc.Close()

	mtype, err := mimetype.DetectReader(rc)
	if err != nil {
		return "", fmt.Errorf("detect file type: %w", err)
	}
	for _, allowed := range allowedUploadTypes {
		if mtype.Is(allowed) {
			return allowed, nil
		}
	}
	return "", ErrUnsupportedFileType
}
