package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ki-studio/internal/domain"
	"ki-studio/internal/llm"
	"ki-studio/internal/service"
)

// ChatHandler mantiene dependencias para endpoints de chat e historial.
type ChatHandler struct {
	logger  *zap.Logger
	chatSvc *service.ChatService
	models  *llm.Registry
}

// NewChatHandler crea una instancia de ChatHandler con dependencias necesarias.
func NewChatHandler(logger *zap.Logger, chatSvc *service.ChatService, models *llm.Registry) *ChatHandler {
	return &ChatHandler{
		logger:  logger,
		chatSvc: chatSvc,
		models:  models,
	}
}

// PostMessage maneja POST /api/chat y transmite la respuesta como server-sent events.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req struct {
		ID                     string         `json:"id" binding:"required"`
		Message                domain.Message `json:"message"`
		SelectedChatModel      string         `json:"selectedChatModel"`
		SelectedVisibilityType string         `json:"selectedVisibilityType"`
		ProjectID              *string        `json:"projectId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid chat request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.ProjectID != nil {
		if _, err := uuid.Parse(*req.ProjectID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid projectId"})
			return
		}
	}

	stream := &sseWriter{c: c}
	_, err := h.chatSvc.SendMessage(c.Request.Context(), service.SendMessageInput{
		ChatID:     req.ID,
		UserID:     userID,
		Message:    req.Message,
		ModelID:    req.SelectedChatModel,
		Visibility: req.SelectedVisibilityType,
		ProjectID:  req.ProjectID,
	}, stream.Send)
	if err != nil {
		if !stream.started {
			h.writeError(c, "send message failed", err)
			return
		}
		h.logger.Error("chat stream failed", zap.String("chat_id", req.ID), zap.Error(err))
		_ = stream.Send(service.ChatEvent{Type: "error", ErrorText: "could not generate response"})
	}
	stream.Done()
}

// GetChat maneja GET /api/chat/:id.
func (h *ChatHandler) GetChat(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	chat, messages, err := h.chatSvc.GetChat(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.writeError(c, "get chat failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat": chat, "messages": messages})
}

// UpdateVisibility maneja PATCH /api/chat/:id/visibility.
func (h *ChatHandler) UpdateVisibility(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req struct {
		Visibility string `json:"visibility" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	chat, err := h.chatSvc.UpdateVisibility(c.Request.Context(), userID, c.Param("id"), req.Visibility)
	if err != nil {
		h.writeError(c, "update visibility failed", err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

// DeleteChat maneja DELETE /api/chat/:id.
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.chatSvc.DeleteChat(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.writeError(c, "delete chat failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// History maneja GET /api/history?limit=&ending_before=.
func (h *ChatHandler) History(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a number"})
		return
	}
	page, err := h.chatSvc.History(c.Request.Context(), userID, limit, c.Query("ending_before"))
	if err != nil {
		h.writeError(c, "history failed", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// SearchHistory maneja GET /api/history/search?q=&limit=.
func (h *ChatHandler) SearchHistory(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a number"})
		return
	}
	results, err := h.chatSvc.SearchHistory(c.Request.Context(), userID, c.Query("q"), limit)
	if err != nil {
		h.writeError(c, "search history failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// Models maneja GET /api/models con los modelos seleccionables.
func (h *ChatHandler) Models(c *gin.Context) {
	out := []gin.H{}
	for _, m := range h.models.List() {
		out = append(out, gin.H{
			"id":          m.ID,
			"name":        m.Name,
			"description": m.Description,
			"reasoning":   m.Reasoning,
		})
	}
	c.JSON(http.StatusOK, gin.H{"models": out})
}

func (h *ChatHandler) writeError(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, service.ErrIDRequired),
		errors.Is(err, service.ErrInvalidRequestBody),
		errors.Is(err, service.ErrEmptyMessage),
		errors.Is(err, service.ErrInvalidVisibility),
		errors.Is(err, service.ErrMissingQuery):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrChatForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrChatNotFound), errors.Is(err, service.ErrProjectNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrSearchUnavailable), errors.Is(err, service.ErrNoModelConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		if writeUpstreamError(c, err) {
			return
		}
		h.logger.Error(msg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// sseWriter escribe eventos "data: <json>" y envía las cabeceras con el primer evento,
// así los errores previos todavía pueden responderse como JSON.
type sseWriter struct {
	c       *gin.Context
	started bool
}

func (w *sseWriter) Send(ev service.ChatEvent) error {
	if !w.started {
		h := w.c.Writer.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Vercel-AI-UI-Message-Stream", "v1")
		w.c.Status(http.StatusOK)
		w.started = true
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w.c.Writer, "data: %s\n\n", b); err != nil {
		return err
	}
	w.c.Writer.Flush()
	return nil
}

// Done cierra el stream con el marcador [DONE].
func (w *sseWriter) Done() {
	if !w.started {
		return
	}
	_, _ = fmt.Fprint(w.c.Writer, "data: [DONE]\n\n")
	w.c.Writer.Flush()
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
