package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ki-studio/internal/blob"
	"ki-studio/internal/config"
	"ki-studio/internal/db"
	"ki-studio/internal/finetune"
	apihttp "ki-studio/internal/http"
	"ki-studio/internal/imagegen"
	"ki-studio/internal/llm"
	"ki-studio/internal/repository"
	"ki-studio/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg)
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	userRepo := repository.NewPgUserRepository(pool)
	todoRepo := repository.NewPgTodoRepository(pool)
	projectRepo := repository.NewPgProjectRepository(pool)
	chatRepo := repository.NewPgChatRepository(pool)
	messageRepo := repository.NewPgMessageRepository(pool)
	embeddingRepo := repository.NewPgEmbeddingRepository(pool)
	prefsRepo := repository.NewPgPreferencesRepository(pool)

	var (
		tokenStore  service.RefreshTokenStore
		limiter     service.RateLimiter
		redisClient *redis.Client
		redisPinger apihttp.Pinger
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			tokenStore = service.NewRedisRefreshTokenStore(redisClient)
			limiter = service.NewRedisRateLimiter(redisClient, cfg.GenerationRateWindow, cfg.GenerationRateLimit)
			redisPinger = apihttp.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
		}
		cancel()
	}
	if limiter == nil {
		limiter = service.NewMemoryRateLimiter(cfg.GenerationRateWindow, cfg.GenerationRateLimit)
	}

	jwtSvc := service.NewJWTServiceWithStore(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLMinutes)*time.Minute,
		tokenStore,
	)
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}

	models := newModelRegistry(cfg, logger)
	var embedder llm.Embedder
	if cfg.OpenAIAPIKey != "" {
		embedder = llm.NewHTTPClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.EmbeddingModel, logger)
	} else {
		logger.Warn("embeddings disabled, history search unavailable")
	}

	blobClient := blob.NewClient(cfg.BlobBaseURL, cfg.BlobToken, logger)
	var imageUploader blob.Uploader
	if blobClient.Configured() {
		imageUploader = blobClient
	}

	userSvc := service.NewUserService(logger, userRepo)
	messageSvc := service.NewMessageService(messageRepo)
	contextSvc := service.NewBasicContextService(messageRepo)
	imageSvc := service.NewImageService(logger, newImageGenerator(cfg, logger), imageUploader, limiter)
	projectSvc := service.NewProjectService(projectRepo)
	chatSvc := service.NewChatService(logger, chatRepo, messageSvc, contextSvc, projectSvc, models, imageSvc, embeddingRepo, embedder)
	finetuneSvc := service.NewFinetuneService(logger, finetune.NewClient(cfg.FluxBaseURL, cfg.FluxAPIKey, logger))
	uploadSvc := service.NewUploadService(logger, blobClient)

	handlers := apihttp.Handlers{
		User:     apihttp.NewUserHandler(logger, userSvc, jwtSvc),
		Todo:     apihttp.NewTodoHandler(logger, service.NewTodoService(todoRepo)),
		Project:  apihttp.NewProjectHandler(logger, projectSvc),
		Chat:     apihttp.NewChatHandler(logger, chatSvc, models),
		Image:    apihttp.NewImageHandler(logger, imageSvc),
		Finetune: apihttp.NewFinetuneHandler(logger, finetuneSvc),
		File:     apihttp.NewFileHandler(logger, uploadSvc),
		Settings: apihttp.NewSettingsHandler(logger, service.NewPreferencesService(prefsRepo)),
		Health:   apihttp.NewHealthHandler(logger, apihttp.PingFunc(func(ctx context.Context) error { return db.Ping(ctx, pool) }), redisPinger),
	}
	router := apihttp.NewRouter(logger, jwtSvc, handlers)

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Vercel-AI-UI-Message-Stream"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           corsHandler(router),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	chatSvc.Wait()
}

func newLogger(cfg *config.Config) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Debug || cfg.IsDevelopment() {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return logger
}

// newModelRegistry registra chat-model sobre OpenAI y los modelos de Azure cuando hay recurso configurado.
func newModelRegistry(cfg *config.Config, logger *zap.Logger) *llm.Registry {
	models := []llm.Model{{
		ID:          llm.ModelChat,
		Name:        "Chat model",
		Description: "Primary model for all-purpose chat",
		Client:      llm.NewHTTPClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.ChatModel, logger),
	}}

	if cfg.AzureBaseURL != "" {
		reasoning := llm.NewAzureClient(cfg.AzureBaseURL, cfg.AzureAPIKey, cfg.AzureAPIVersion, cfg.ReasoningModel, logger)
		title := llm.NewAzureClient(cfg.AzureBaseURL, cfg.AzureAPIKey, cfg.AzureAPIVersion, cfg.TitleModel, logger)
		models = append(models,
			llm.Model{
				ID:          llm.ModelChatReasoning,
				Name:        "Reasoning model",
				Description: "Uses advanced reasoning",
				Reasoning:   true,
				Client:      reasoning,
			},
			llm.Model{ID: llm.ModelTitle, Name: "Title model", Client: title},
			llm.Model{ID: llm.ModelArtifact, Name: "Artifact model", Client: title},
		)
	} else {
		logger.Warn("azure resource not configured, only chat-model available")
	}
	return llm.NewRegistry(llm.ModelChat, models...)
}

func newImageGenerator(cfg *config.Config, logger *zap.Logger) imagegen.Generator {
	if cfg.ImageProvider == "flux" {
		return imagegen.NewFluxClient(cfg.FluxBaseURL, cfg.FluxAPIKey, cfg.FluxModel, logger)
	}
	return imagegen.NewAzureClient(cfg.ImageAzureEndpoint, cfg.ImageAzureDeployment, cfg.AzureAPIVersion, cfg.ImageAzureAPIKey, logger)
}
