package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ki-studio/internal/service"
)

// SettingsHandler guarda la apariencia y los widgets minimizados del usuario.
type SettingsHandler struct {
	logger   *zap.Logger
	prefsSvc *service.PreferencesService
}

func NewSettingsHandler(logger *zap.Logger, prefsSvc *service.PreferencesService) *SettingsHandler {
	return &SettingsHandler{logger: logger, prefsSvc: prefsSvc}
}

// Get maneja GET /api/settings.
func (h *SettingsHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	prefs, err := h.prefsSvc.Get(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("get settings failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load settings"})
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// Update maneja PUT /api/settings.
func (h *SettingsHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req struct {
		Theme string `json:"theme" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	prefs, err := h.prefsSvc.SetTheme(c.Request.Context(), userID, req.Theme)
	if err != nil {
		if errors.Is(err, service.ErrInvalidTheme) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("update settings failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save settings"})
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// ToggleWidget maneja POST /api/settings/widgets/:id/toggle.
func (h *SettingsHandler) ToggleWidget(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	widgetID := c.Param("id")
	minimized, err := h.prefsSvc.ToggleWidget(c.Request.Context(), userID, widgetID)
	if err != nil {
		if errors.Is(err, service.ErrWidgetRequired) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("toggle widget failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save settings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"widgetId": widgetID, "minimized": minimized})
}
