package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string `env:"PORT" envDefault:"8080"`
	Env  string `env:"ENV" envDefault:"development"`

	// Redis (key-value store)
	RedisURL string `env:"REDIS_URL,required,notEmpty"`

	// JWT
	JWTSecret string `env:"JWT_SECRET,required,notEmpty"`

	// GLM upstream
	GLMAPIKey       string        `env:"GLM_API_KEY,required,notEmpty"`
	GLMAPIURL       string        `env:"GLM_API_URL" envDefault:"https://open.bigmodel.cn/api/paas/v4/chat/completions"`
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"120s"`

	// GitHub OAuth
	GitHubClientID     string `env:"GITHUB_CLIENT_ID,required,notEmpty"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET,required,notEmpty"`
	GitHubCallbackURL  string `env:"GITHUB_CALLBACK_URL"`

	// Frontend
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	// Persistence worker
	SaveQueueSize int `env:"SAVE_QUEUE_SIZE" envDefault:"64"`
	SaveWorkers   int `env:"SAVE_WORKERS" envDefault:"2"`
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.GitHubCallbackURL == "" {
		cfg.GitHubCallbackURL = fmt.Sprintf("http://localhost:%s/api/v1/auth/callback", cfg.Port)
	}

	return cfg, nil
}
