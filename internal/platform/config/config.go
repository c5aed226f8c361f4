package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/ulule/limiter/v3"

	"backoffice/internal/domain/settlement"
)

type Config struct {
	Addr                 string
	Environment          string
	DatabaseURL          string
	RunMigrations        bool
	MigrationsDir        string
	JWTSecret            string
	CORSAllowedOrigins   []string
	MaxBodyBytes         int64
	RateLimit            string
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	ReportCacheTTL       time.Duration
	SplitPolicy          string
	ClampNegativePercent bool
	PercentScale         int32
	PeriodMode           string
	TelegramBotToken     string
	TelegramChatID       int64
	DigestInterval       time.Duration
	EmailEnabled         bool
	EmailFrom            string
	DigestEmailTo        string
	SMTPHost             string
	SMTPPort             int
	SMTPUser             string
	SMTPPassword         string
	SMTPUseTLS           bool
	MetricsEnabled       bool
}

// Load reads .env when present, then the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("dotenv load failed", "err", err)
	}
	return Config{
		Addr:                 getEnv("APP_ADDR", ":8080"),
		Environment:          getEnv("APP_ENV", "development"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		RunMigrations:        getEnvBool("RUN_MIGRATIONS", true),
		MigrationsDir:        getEnv("MIGRATIONS_DIR", "migrations"),
		JWTSecret:            getEnv("JWT_SECRET", ""),
		CORSAllowedOrigins:   getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		MaxBodyBytes:         int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		RateLimit:            getEnv("RATE_LIMIT", "120-M"),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		ReportCacheTTL:       getEnvDuration("REPORT_CACHE_TTL", 10*time.Minute),
		SplitPolicy:          getEnv("SPLIT_POLICY", settlement.SplitEqual),
		ClampNegativePercent: getEnvBool("CLAMP_NEGATIVE_PERCENT", false),
		PercentScale:         int32(getEnvInt("PERCENT_SCALE", int(settlement.DefaultPercentScale))),
		PeriodMode:           getEnv("PERIOD_MODE", settlement.PeriodModeSemimonthly),
		TelegramBotToken:     getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:       getEnvInt64("TELEGRAM_CHAT_ID", 0),
		DigestInterval:       getEnvDuration("DIGEST_INTERVAL", 24*time.Hour),
		EmailEnabled:         getEnvBool("EMAIL_ENABLED", false),
		EmailFrom:            getEnv("EMAIL_FROM", "no-reply@example.com"),
		DigestEmailTo:        getEnv("DIGEST_EMAIL_TO", ""),
		SMTPHost:             getEnv("SMTP_HOST", ""),
		SMTPPort:             getEnvInt("SMTP_PORT", 587),
		SMTPUser:             getEnv("SMTP_USER", ""),
		SMTPPassword:         getEnv("SMTP_PASSWORD", ""),
		SMTPUseTLS:           getEnvBool("SMTP_USE_TLS", true),
		MetricsEnabled:       getEnvBool("METRICS_ENABLED", true),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt64(key string, fallback int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Calculator builds the compensation calculator the settings describe.
func (c Config) Calculator() (settlement.Calculator, error) {
	return settlement.NewCalculator(c.SplitPolicy, c.ClampNegativePercent, c.PercentScale)
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Environment == "production" && strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if _, err := limiter.NewRateFromFormatted(c.RateLimit); err != nil {
		return fmt.Errorf("RATE_LIMIT is invalid: %w", err)
	}
	if _, err := c.Calculator(); err != nil {
		return fmt.Errorf("SPLIT_POLICY/PERCENT_SCALE: %w", err)
	}
	if _, err := settlement.PeriodsFor(c.PeriodMode, 1, 2000); err != nil {
		return fmt.Errorf("PERIOD_MODE: %w", err)
	}
	if c.TelegramBotToken != "" && c.TelegramChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID must be set when TELEGRAM_BOT_TOKEN is set")
	}
	if c.EmailEnabled && c.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST must be set when EMAIL_ENABLED is true")
	}
	return nil
}
