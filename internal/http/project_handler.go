package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ki-studio/internal/service"
)

type ProjectHandler struct {
	logger     *zap.Logger
	projectSvc *service.ProjectService
}

func NewProjectHandler(logger *zap.Logger, projectSvc *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{logger: logger, projectSvc: projectSvc}
}

// Create maneja POST /api/projects.
func (h *ProjectHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	project, err := h.projectSvc.Create(c.Request.Context(), userID, req.Title)
	if err != nil {
		if errors.Is(err, service.ErrTitleRequired) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("create project failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create project"})
		return
	}
	c.JSON(http.StatusCreated, project)
}

// List maneja GET /api/projects.
func (h *ProjectHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	projects, err := h.projectSvc.List(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list projects failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list projects"})
		return
	}
	c.JSON(http.StatusOK, projects)
}

// Get maneja GET /api/projects/:id.
func (h *ProjectHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	project, err := h.projectSvc.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.writeError(c, "get project failed", err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// Delete maneja DELETE /api/projects/:id.
func (h *ProjectHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.projectSvc.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.writeError(c, "delete project failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ProjectHandler) writeError(c *gin.Context, msg string, err error) {
	if errors.Is(err, service.ErrProjectNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	h.logger.Error(msg, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
