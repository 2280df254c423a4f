package http

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ki-studio/internal/blob"
	"ki-studio/internal/service"
)

type FileHandler struct {
	logger    *zap.Logger
	uploadSvc *service.UploadService
}

func NewFileHandler(logger *zap.Logger, uploadSvc *service.UploadService) *FileHandler {
	return &FileHandler{logger: logger, uploadSvc: uploadSvc}
}

// Upload maneja POST /api/files/upload con el campo multipart "file".
func (h *FileHandler) Upload(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": service.ErrNoFile.Error()})
		return
	}

	obj, err := h.uploadSvc.Upload(c.Request.Context(), userID, uploadInput(fh))
	if err != nil {
		h.writeError(c, "upload failed", err)
		return
	}
	c.JSON(http.StatusOK, obj)
}

// UploadBatch maneja POST /api/files/upload/batch con el campo multipart "files" (o "files[]").
func (h *FileHandler) UploadBatch(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": service.ErrNoFile.Error()})
		return
	}
	var inputs []service.UploadInput
	for _, field := range []string{"files", "files[]"} {
		for _, fh := range form.File[field] {
			inputs = append(inputs, uploadInput(fh))
		}
	}

	objs, err := h.uploadSvc.UploadBatch(c.Request.Context(), userID, inputs)
	if err != nil {
		h.writeError(c, "batch upload failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attachments": objs})
}

func (h *FileHandler) writeError(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, service.ErrNoFile),
		errors.Is(err, service.ErrFileTooLarge),
		errors.Is(err, service.ErrUnsupportedFileType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, blob.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		if writeUpstreamError(c, err) {
			return
		}
		h.logger.Error(msg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Upload failed"})
	}
}

func uploadInput(fh *multipart.FileHeader) service.UploadInput {
	return service.UploadInput{
		Filename: fh.Filename,
		Size:     fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}
