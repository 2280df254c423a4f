package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ki-studio/internal/domain"
	"ki-studio/internal/service"
)

type ImageHandler struct {
	logger   *zap.Logger
	imageSvc *service.ImageService
}

func NewImageHandler(logger *zap.Logger, imageSvc *service.ImageService) *ImageHandler {
	return &ImageHandler{logger: logger, imageSvc: imageSvc}
}

// Generate maneja POST /api/image. El prompt es el texto de la primera parte del último mensaje.
func (h *ImageHandler) Generate(c *gin.Context) {
	var req struct {
		Messages []domain.Message `json:"messages"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": service.ErrInvalidRequestBody.Error()})
		return
	}
	prompt, err := service.PromptFromMessages(req.Messages)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	img, err := h.imageSvc.Generate(c.Request.Context(), rateLimitKey(c), prompt)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingPrompt):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
		default:
			if writeUpstreamError(c, err) {
				return
			}
			h.logger.Error("image generation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":    uuid.NewString(),
		"role":  domain.RoleAssistant,
		"parts": []domain.MessagePart{img.Part()},
	})
}

// rateLimitKey usa el usuario autenticado o, si no hay token, la IP del cliente.
func rateLimitKey(c *gin.Context) string {
	if claims, ok := GetAuthClaims(c); ok && claims.UserID != "" {
		return service.UserLimitKey(claims.UserID)
	}
	return service.IPLimitKey(c.ClientIP())
}
