package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ki-studio/internal/upstream"
)

// Handlers agrupa los handlers que registra NewRouter.
type Handlers struct {
	User     *UserHandler
	Todo     *TodoHandler
	Project  *ProjectHandler
	Chat     *ChatHandler
	Image    *ImageHandler
	Finetune *FinetuneHandler
	File     *FileHandler
	Settings *SettingsHandler
	Health   *HealthHandler
}

// currentUserID lee el usuario autenticado; responde 401 si no hay claims.
func currentUserID(c *gin.Context) (string, bool) {
	claims, ok := GetAuthClaims(c)
	if !ok || claims.UserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return claims.UserID, true
}

// writeUpstreamError reenvía el status y el body de un proveedor externo.
func writeUpstreamError(c *gin.Context, err error) bool {
	var upErr *upstream.Error
	if !errors.As(err, &upErr) {
		return false
	}
	c.JSON(upErr.Status, gin.H{"error": upErr.Body})
	return true
}
