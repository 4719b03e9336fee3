package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // DISPLAY_TIMEZONE в минимальных образах без zoneinfo

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

// secretsDir - каталог Docker Secrets.
var secretsDir = "/run/secrets"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config содержит конфигурацию веб-клиента StoryLens.
type Config struct {
	Port        string `envconfig:"SERVER_PORT" default:"8080"`
	Env         string `envconfig:"ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`

	// Бэкенд генерации
	APIBaseURL    string        `envconfig:"API_BASE_URL" default:"http://localhost:8000" validate:"required,http_url"`
	APITimeout    time.Duration `envconfig:"API_TIMEOUT" default:"30s" validate:"gt=0"`
	APIRetryCount int           `envconfig:"API_RETRY_COUNT" default:"1" validate:"gte=0,lte=5"`

	// Кэш и хранилища
	CacheTTL         time.Duration `envconfig:"CACHE_TTL" default:"1m" validate:"gte=0"`
	RedisURL         string        `envconfig:"REDIS_URL"`
	RabbitMQURL      string        `envconfig:"RABBITMQ_URL"`
	StoryEventsQueue string        `envconfig:"STORY_EVENTS_QUEUE" default:"story_events"`

	// Веб
	SessionTTL         time.Duration `envconfig:"SESSION_TTL" default:"24h" validate:"gt=0"`
	DisplayTimezone    string        `envconfig:"DISPLAY_TIMEZONE" default:"UTC"`
	ReadOnly           bool          `envconfig:"READ_ONLY" default:"false"`
	UploadRateLimit    uint          `envconfig:"UPLOAD_RATE_LIMIT" default:"10" validate:"gt=0"`
	CORSAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS"`
	TemplatesDebug     bool          `envconfig:"TEMPLATES_DEBUG" default:"false"`
	TemplatesDir       string        `envconfig:"TEMPLATES_DIR" default:"internal/web/templates"`

	// Секрет подписи flash-cookie: файл flash_secret, иначе FLASH_SECRET
	FlashSecretEnv string `envconfig:"FLASH_SECRET"`
	FlashSecret    string `ignored:"true"`

	Location *time.Location `ignored:"true"`
}

// IsProduction - окружение production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Load читает .env (если есть), переменные окружения и секреты.
func Load() (*Config, error) {
	// .env необязателен
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	loc, err := time.LoadLocation(cfg.DisplayTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid DISPLAY_TIMEZONE %q: %w", cfg.DisplayTimezone, err)
	}
	cfg.Location = loc

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg.FlashSecret, err = ReadSecret("flash_secret")
	if err != nil {
		switch {
		case cfg.FlashSecretEnv != "":
			cfg.FlashSecret = cfg.FlashSecretEnv
		case !cfg.IsProduction():
			// В разработке cookie живут до перезапуска
			cfg.FlashSecret = uuid.NewString()
		default:
			return nil, fmt.Errorf("flash secret is required in production: %w", err)
		}
	}
	return &cfg, nil
}

// LogSummary пишет конфигурацию без секретов.
func (c *Config) LogSummary(logger *zap.Logger) {
	logger.Info("Configuration loaded",
		zap.String("env", c.Env),
		zap.String("port", c.Port),
		zap.String("logLevel", c.LogLevel),
		zap.String("apiBaseURL", c.APIBaseURL),
		zap.Duration("apiTimeout", c.APITimeout),
		zap.Int("apiRetryCount", c.APIRetryCount),
		zap.Duration("cacheTTL", c.CacheTTL),
		zap.Bool("redis", c.RedisURL != ""),
		zap.Bool("rabbitmq", c.RabbitMQURL != ""),
		zap.String("storyEventsQueue", c.StoryEventsQueue),
		zap.Duration("sessionTTL", c.SessionTTL),
		zap.String("displayTimezone", c.DisplayTimezone),
		zap.Bool("readOnly", c.ReadOnly),
		zap.Uint("uploadRateLimit", c.UploadRateLimit),
		zap.Strings("corsAllowedOrigins", c.CORSAllowedOrigins),
		zap.Bool("templatesDebug", c.TemplatesDebug),
		zap.String("templatesDir", c.TemplatesDir),
	)
}

// CLIConfig - конфигурация storyctl.
type CLIConfig struct {
	APIBaseURL      string        `envconfig:"API_BASE_URL" default:"http://localhost:8000" validate:"required,http_url"`
	APITimeout      time.Duration `envconfig:"API_TIMEOUT" default:"30s" validate:"gt=0"`
	APIRetryCount   int           `envconfig:"API_RETRY_COUNT" default:"1" validate:"gte=0,lte=5"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"warn"`
	PlayerCommand   string        `envconfig:"PLAYER_COMMAND"`
	DisplayTimezone string        `envconfig:"DISPLAY_TIMEZONE" default:"Local"`

	Location *time.Location `ignored:"true"`
}

// LoadCLI читает конфигурацию storyctl.
func LoadCLI() (*CLIConfig, error) {
	_ = godotenv.Load()

	var cfg CLIConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	loc, err := time.LoadLocation(cfg.DisplayTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid DISPLAY_TIMEZONE %q: %w", cfg.DisplayTimezone, err)
	}
	cfg.Location = loc
	return &cfg, nil
}

// ReadSecret читает секрет из файла Docker Secrets.
func ReadSecret(secretName string) (string, error) {
	filePath := filepath.Join(secretsDir, secretName)
	secretBytes, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", filePath, err)
	}
	secret := strings.TrimSpace(string(secretBytes))
	if secret == "" {
		return "", errors.New("secret file " + filePath + " is empty")
	}
	return secret, nil
}
