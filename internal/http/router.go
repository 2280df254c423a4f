package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"ki-studio/internal/metrics"
	"ki-studio/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(logger *zap.Logger, jwtSvc *service.JWTService, h Handlers) *gin.Engine {
	r := gin.New()

	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), metrics.Middleware())

	r.GET("/ping", h.Health.Ping)
	r.GET("/health", h.Health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/register", h.User.Register)
	auth.POST("/login", h.User.Login)
	auth.POST("/guest", h.User.Guest)
	auth.POST("/refresh", h.User.RefreshToken)
	auth.POST("/logout", h.User.Logout)
	auth.GET("/session", JWTAuthMiddleware(jwtSvc), h.User.Session)

	// La generación de imágenes es pública; el rate limit usa el usuario o la IP.
	api.POST("/image", OptionalJWTMiddleware(jwtSvc), h.Image.Generate)

	protected := api.Group("", JWTAuthMiddleware(jwtSvc))

	protected.GET("/todos", h.Todo.List)
	protected.POST("/todos", h.Todo.Create)
	protected.PATCH("/todos", h.Todo.Update)
	protected.DELETE("/todos", h.Todo.Delete)

	protected.GET("/projects", h.Project.List)
	protected.POST("/projects", h.Project.Create)
	protected.GET("/projects/:id", h.Project.Get)
	protected.DELETE("/projects/:id", h.Project.Delete)

	protected.POST("/chat", h.Chat.PostMessage)
	protected.GET("/chat/:id", h.Chat.GetChat)
	protected.PATCH("/chat/:id/visibility", h.Chat.UpdateVisibility)
	protected.DELETE("/chat/:id", h.Chat.DeleteChat)
	protected.GET("/history", h.Chat.History)
	protected.GET("/history/search", h.Chat.SearchHistory)
	protected.GET("/models", h.Chat.Models)

	protected.GET("/finetune", h.Finetune.List)
	protected.POST("/finetune", h.Finetune.Create)
	protected.GET("/finetune/status", h.Finetune.Status)
	protected.DELETE("/finetune", h.Finetune.Delete)

	protected.POST("/files/upload", h.File.Upload)
	protected.POST("/files/upload/batch", h.File.UploadBatch)

	protected.GET("/settings", h.Settings.Get)
	protected.PUT("/settings", h.Settings.Update)
	protected.POST("/settings/widgets/:id/toggle", h.Settings.ToggleWidget)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
