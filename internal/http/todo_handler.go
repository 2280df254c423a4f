package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ki-studio/internal/service"
)

// TodoHandler atiende el widget de tareas. Todas las operaciones quedan acotadas al usuario del token.
type TodoHandler struct {
	logger  *zap.Logger
	todoSvc *service.TodoService
}

func NewTodoHandler(logger *zap.Logger, todoSvc *service.TodoService) *TodoHandler {
	return &TodoHandler{logger: logger, todoSvc: todoSvc}
}

// List maneja GET /api/todos.
func (h *TodoHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	todos, err := h.todoSvc.List(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list todos failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list todos"})
		return
	}
	c.JSON(http.StatusOK, todos)
}

// Create maneja POST /api/todos.
func (h *TodoHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	todo, err := h.todoSvc.Create(c.Request.Context(), userID, req.Text)
	if err != nil {
		h.writeError(c, "create todo failed", err)
		return
	}
	c.JSON(http.StatusOK, todo)
}

// Update maneja PATCH /api/todos.
func (h *TodoHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req struct {
		ID   string  `json:"id"`
		Done *bool   `json:"done"`
		Text *string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	todo, err := h.todoSvc.Update(c.Request.Context(), userID, service.TodoUpdate{
		ID:   req.ID,
		Done: req.Done,
		Text: req.Text,
	})
	if err != nil {
		h.writeError(c, "update todo failed", err)
		return
	}
	c.JSON(http.StatusOK, todo)
}

// Delete maneja DELETE /api/todos.
func (h *TodoHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req struct {
		ID string `json:"id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.todoSvc.Delete(c.Request.Context(), userID, req.ID); err != nil {
		h.writeError(c, "delete todo failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TodoHandler) writeError(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, service.ErrTextRequired), errors.Is(err, service.ErrIDRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrTodoNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Todo not found"})
	default:
		h.logger.Error(msg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
