package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPAddr           = ":8080"
	defaultDatabaseURL        = "commonwealth.db"
	defaultRedisURL           = "redis://localhost:6379/0"
	defaultJWTSecret          = "change-me-jwt-secret"
	defaultInternalToken      = "change-me-internal-token"
	defaultEmailFrom          = "no-reply@commonwealth.im"
	defaultServerURL          = "http://localhost:8080"
	defaultLogoURL            = "https://commonwealth.im/static/img/logo.png"
	defaultWebhookTimeout     = "10s"
	defaultDigestPageSize     = "500"
	defaultDigestDailySpec    = "0 13 * * *"
	defaultDigestWeeklySpec   = "0 13 * * 1"
	defaultLogLevel           = "info"
	defaultPostmarkBaseURL    = "https://api.postmarkapp.com"
	defaultDeliveryQueueLimit = "64"
)

type Config struct {
	AppEnv   string
	HTTPAddr string
	LogLevel string

	DatabaseURL string
	RedisURL    string

	JWTSecret     string
	InternalToken string

	PostmarkToken   string
	PostmarkBaseURL string
	EmailFrom       string
	ServerURL       string

	FeedbackWebhookURL string
	DefaultLogoURL     string
	WebhookTimeout     time.Duration
	TelegramBotToken   string

	CORSAllowedOrigins []string

	DigestPageSize    int
	DigestDailySpec   string
	DigestWeeklySpec  string
	DeliveryQueueSize int
}

// IsProduction reports whether deliveries should reach real third-party endpoints.
func (c *Config) IsProduction() bool {
	return isProdLike(c.AppEnv)
}

// Load reads the process environment, optionally seeded from a .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load .env file", "error", err)
	}

	cfg := &Config{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("NODE_ENV"))
	}
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.HTTPAddr = strings.TrimSpace(getEnv("HTTP_ADDR", defaultHTTPAddr))
	cfg.LogLevel = strings.TrimSpace(getEnv("LOG_LEVEL", defaultLogLevel))
	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", defaultDatabaseURL))
	cfg.RedisURL = strings.TrimSpace(getEnv("REDIS_URL", defaultRedisURL))
	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))
	cfg.InternalToken = strings.TrimSpace(getEnv("INTERNAL_TOKEN", defaultInternalToken))
	cfg.PostmarkToken = strings.TrimSpace(os.Getenv("POSTMARK_SERVER_TOKEN"))
	cfg.PostmarkBaseURL = strings.TrimRight(strings.TrimSpace(getEnv("POSTMARK_BASE_URL", defaultPostmarkBaseURL)), "/")
	cfg.EmailFrom = strings.TrimSpace(getEnv("EMAIL_FROM", defaultEmailFrom))
	cfg.ServerURL = strings.TrimRight(strings.TrimSpace(getEnv("SERVER_URL", defaultServerURL)), "/")
	cfg.FeedbackWebhookURL = strings.TrimSpace(os.Getenv("FEEDBACK_WEBHOOK_URL"))
	cfg.DefaultLogoURL = strings.TrimSpace(getEnv("DEFAULT_LOGO_URL", defaultLogoURL))
	cfg.TelegramBotToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	cfg.CORSAllowedOrigins = splitList(os.Getenv("CORS_ALLOWED_ORIGINS"))
	cfg.DigestDailySpec = strings.TrimSpace(getEnv("DIGEST_DAILY_SCHEDULE", defaultDigestDailySpec))
	cfg.DigestWeeklySpec = strings.TrimSpace(getEnv("DIGEST_WEEKLY_SCHEDULE", defaultDigestWeeklySpec))

	var err error
	cfg.WebhookTimeout, err = parseDurationEnv("WEBHOOK_TIMEOUT", defaultWebhookTimeout)
	if err != nil {
		return nil, err
	}

	cfg.DigestPageSize, err = parseIntEnv("DIGEST_PAGE_SIZE", defaultDigestPageSize)
	if err != nil {
		return nil, err
	}

	cfg.DeliveryQueueSize, err = parseIntEnv("DELIVERY_CONCURRENCY", defaultDeliveryQueueLimit)
	if err != nil {
		return nil, err
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR must not be empty")
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if cfg.WebhookTimeout <= 0 {
		return fmt.Errorf("WEBHOOK_TIMEOUT must be > 0")
	}
	if cfg.DigestPageSize <= 0 {
		return fmt.Errorf("DIGEST_PAGE_SIZE must be > 0")
	}
	if cfg.DeliveryQueueSize <= 0 {
		return fmt.Errorf("DELIVERY_CONCURRENCY must be > 0")
	}
	if cfg.DigestDailySpec == "" || cfg.DigestWeeklySpec == "" {
		return fmt.Errorf("DIGEST_DAILY_SCHEDULE and DIGEST_WEEKLY_SCHEDULE must not be empty")
	}

	if isProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in production JWT_SECRET must be set and not default")
		}
		if isEmptyOrDefault(cfg.InternalToken, defaultInternalToken) {
			return fmt.Errorf("in production INTERNAL_TOKEN must be set and not default")
		}
		if cfg.PostmarkToken == "" {
			return fmt.Errorf("in production POSTMARK_SERVER_TOKEN must be set")
		}
	}

	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseIntEnv(name, fallback string) (int, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
