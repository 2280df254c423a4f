package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ki-studio/internal/finetune"
	"ki-studio/internal/service"
)

// FinetuneHandler expone el proxy de finetuning. Los cuerpos siguen el formato de la API de BFL.
type FinetuneHandler struct {
	logger      *zap.Logger
	finetuneSvc *service.FinetuneService
}

func NewFinetuneHandler(logger *zap.Logger, finetuneSvc *service.FinetuneService) *FinetuneHandler {
	return &FinetuneHandler{logger: logger, finetuneSvc: finetuneSvc}
}

// List maneja GET /api/finetune.
func (h *FinetuneHandler) List(c *gin.Context) {
	details, err := h.finetuneSvc.List(c.Request.Context())
	if err != nil {
		h.writeError(c, "list finetunes failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"finetunes": details})
}

// Create maneja POST /api/finetune.
func (h *FinetuneHandler) Create(c *gin.Context) {
	var req finetune.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid finetune request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid finetune request"})
		return
	}
	created, err := h.finetuneSvc.Create(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, "create finetune failed", err)
		return
	}
	c.JSON(http.StatusOK, created)
}

// Status maneja GET /api/finetune/status?id=.
func (h *FinetuneHandler) Status(c *gin.Context) {
	status, err := h.finetuneSvc.Status(c.Request.Context(), c.Query("id"))
	if err != nil {
		h.writeError(c, "finetune status failed", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Delete maneja DELETE /api/finetune.
func (h *FinetuneHandler) Delete(c *gin.Context) {
	var req struct {
		FinetuneID string `json:"finetune_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "finetune_id is required"})
		return
	}
	if err := h.finetuneSvc.Delete(c.Request.Context(), req.FinetuneID); err != nil {
		h.writeError(c, "delete finetune failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *FinetuneHandler) writeError(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidFinetune), errors.Is(err, service.ErrIDRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		if writeUpstreamError(c, err) {
			return
		}
		h.logger.Error(msg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "finetune request failed"})
	}
}
