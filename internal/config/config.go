package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	// browser origins allowed to call the API; empty disables CORS
	CORSAllowOrigins []string `env:"CORS_ALLOW_ORIGINS" envSeparator:","`

	// DSN demo:
	// app:apppass@tcp(127.0.0.1:3306)/llm_bridge?charset=utf8mb4&parseTime=true&loc=Local
	DBDriver string `env:"DB_DRIVER" envDefault:"mysql"`
	DBDSN    string `env:"DB_DSN" envDefault:"app:apppass@tcp(127.0.0.1:3306)/llm_bridge?charset=utf8mb4&parseTime=true&loc=Local"`

	JWTSecret        string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	ProfileSecretKey string `env:"PROFILE_SECRET_KEY"`

	RedisAddr       string        `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	RedisDB         int           `env:"REDIS_DB" envDefault:"0"`
	ProfileCacheTTL time.Duration `env:"PROFILE_CACHE_TTL" envDefault:"5m"`

	// rabbitMQ; an empty URL turns usage events off
	RabbitURL   string `env:"RABBIT_URL"`
	RabbitQueue string `env:"RABBIT_QUEUE" envDefault:"usage_events"`

	AnthropicBaseURL string `env:"ANTHROPIC_BASE_URL"`
	DefaultMaxTokens int64  `env:"DEFAULT_MAX_TOKENS" envDefault:"4096"`

	// empty leaves the ollama route unregistered
	OllamaBaseURL string `env:"OLLAMA_BASE_URL"`

	UploadMaxBytes    int64  `env:"UPLOAD_MAX_BYTES" envDefault:"10485760"`
	UploadTempDir     string `env:"UPLOAD_TEMP_DIR"`
	IngestConcurrency int    `env:"INGEST_CONCURRENCY" envDefault:"4"`

	WorkerConcurrency int `env:"WORKER_CONCURRENCY" envDefault:"2"`

	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads an optional .env file, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	if c.DefaultMaxTokens <= 0 {
		c.DefaultMaxTokens = 4096
	}
	if c.IngestConcurrency <= 0 {
		c.IngestConcurrency = 4
	}
	if c.WorkerConcurrency <= 0 {
		c.WorkerConcurrency = 2
	}
	if c.WorkerConcurrency > 50 {
		c.WorkerConcurrency = 50
	}
}
