package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	AppEnv      string `env:"APP_ENV" envDefault:"development"`
	Debug       bool   `env:"DEBUG" envDefault:"false"`
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret            string `env:"AUTH_SECRET"`
	JWTAccessTTLMinutes  int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"15"`
	JWTRefreshTTLMinutes int    `env:"JWT_REFRESH_TTL_MINUTES" envDefault:"43200"`

	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	AzureAPIKey     string `env:"AZURE_API_KEY"`
	AzureBaseURL    string `env:"AZURE_RESOURCE_NAME"`
	AzureAPIVersion string `env:"AZURE_API_VERSION" envDefault:"2025-04-01-preview"`
	ChatModel       string `env:"CHAT_MODEL" envDefault:"gpt-4o"`
	ReasoningModel  string `env:"REASONING_MODEL" envDefault:"gpt-5-mini"`
	TitleModel      string `env:"TITLE_MODEL" envDefault:"gpt-5-mini"`
	EmbeddingModel  string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`

	ImageProvider        string `env:"IMAGE_PROVIDER" envDefault:"azure"`
	ImageAzureEndpoint   string `env:"IMAGE_AZURE_ENDPOINT" envDefault:"https://ki-studio.services.ai.azure.com"`
	ImageAzureDeployment string `env:"IMAGE_AZURE_DEPLOYMENT" envDefault:"FLUX-1.1-pro"`
	ImageAzureAPIKey     string `env:"IMAGE_AZURE_API_KEY"`
	FluxAPIKey           string `env:"FLUX_API_KEY"`
	FluxBaseURL          string `env:"FLUX_BASE_URL" envDefault:"https://api.eu1.bfl.ai"`
	FluxModel            string `env:"FLUX_MODEL" envDefault:"flux-1.1-pro"`

	BlobToken   string `env:"BLOB_READ_WRITE_TOKEN"`
	BlobBaseURL string `env:"BLOB_BASE_URL" envDefault:"https://blob.vercel-storage.com"`

	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS"`

	GenerationRateLimit  int           `env:"GENERATION_RATE_LIMIT" envDefault:"20"`
	GenerationRateWindow time.Duration `env:"GENERATION_RATE_WINDOW" envDefault:"1h"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsDevelopment indica si el servicio corre en modo desarrollo.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(strings.TrimSpace(c.AppEnv), "development")
}

// AllowedOrigins separa CORS_ALLOWED_ORIGINS en una lista limpia.
func (c *Config) AllowedOrigins() []string {
	if strings.TrimSpace(c.CORSAllowedOrigins) == "" {
		return nil
	}
	parts := strings.Split(c.CORSAllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
