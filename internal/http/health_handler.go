package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const healthTimeout = 2 * time.Second

// Pinger es cualquier dependencia que puede verificarse, como la base o redis.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapta una función a Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthHandler struct {
	logger *zap.Logger
	db     Pinger
	redis  Pinger
}

// NewHealthHandler acepta redis nil cuando se usa el fallback en memoria.
func NewHealthHandler(logger *zap.Logger, db, redis Pinger) *HealthHandler {
	return &HealthHandler{logger: logger, db: db, redis: redis}
}

// Ping maneja GET /ping.
func (h *HealthHandler) Ping(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

// Health maneja GET /health. Sólo la base es obligatoria; redis caído degrada pero no falla.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	status := http.StatusOK
	body := gin.H{"status": "ok", "db": "ok", "redis": "disabled"}

	if h.db == nil {
		status = http.StatusServiceUnavailable
		body["db"] = "not configured"
	} else if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("health db ping failed", zap.Error(err))
		status = http.StatusServiceUnavailable
		body["db"] = "down"
	}

	if h.redis != nil {
		body["redis"] = "ok"
		if err := h.redis.Ping(ctx); err != nil {
			h.logger.Warn("health redis ping failed", zap.Error(err))
			body["redis"] = "down"
		}
	}

	if status != http.StatusOK {
		body["status"] = "unavailable"
	}
	c.JSON(status, body)
}
