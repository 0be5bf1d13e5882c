package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ストアの種類
const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Store
	DatabaseURL  string
	StoreBackend string

	// Server
	ServerPort string
	BaseURL    string
	StaticDir  string

	// Blog
	BlogAuthor   string
	BlogTitle    string
	FeedMaxItems int

	// CORS
	CORSAllowedOrigin string

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral   int
	RateLimitSubscribe int

	// Mail
	MailTransport   string
	MailFrom        string
	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string
	MailRelayURL    string
	MailRelayToken  string
	MailSendTimeout time.Duration

	// Notification
	NotifyWorkers       int
	NotifyQueueSize     int
	NotifyMaxConcurrent int
	NotifyQueueKey      string

	// Redis（設定時は通知キューをRedisで共有する）
	RedisAddress  string
	RedisPassword string
	RedisDB       int

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定、または値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.StoreBackend = getEnvString("STORE_BACKEND", StoreBackendPostgres)
	if cfg.StoreBackend != StoreBackendPostgres && cfg.StoreBackend != StoreBackendMemory {
		return nil, fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StoreBackendPostgres, StoreBackendMemory, cfg.StoreBackend)
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" && cfg.StoreBackend == StoreBackendPostgres {
		return nil, fmt.Errorf("required environment variables are not set: %v", []string{"DATABASE_URL"})
	}

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:"+cfg.ServerPort)
	cfg.StaticDir = getEnvString("STATIC_DIR", "")

	cfg.BlogAuthor = getEnvString("BLOG_AUTHOR", "Likheet Shetty")
	cfg.BlogTitle = getEnvString("BLOG_TITLE", cfg.BlogAuthor+"'s Blog")
	cfg.FeedMaxItems = getEnvInt("FEED_MAX_ITEMS", 20)

	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSubscribe = getEnvInt("RATE_LIMIT_SUBSCRIBE", 10)

	cfg.MailTransport = getEnvString("MAIL_TRANSPORT", "log")
	cfg.MailFrom = getEnvString("MAIL_FROM", "")
	cfg.SMTPHost = getEnvString("SMTP_HOST", "")
	cfg.SMTPPort = getEnvInt("SMTP_PORT", 587)
	cfg.SMTPUsername = getEnvString("SMTP_USERNAME", "")
	cfg.SMTPPassword = getEnvString("SMTP_PASSWORD", "")
	cfg.MailRelayURL = getEnvString("MAIL_RELAY_URL", "")
	cfg.MailRelayToken = getEnvString("MAIL_RELAY_TOKEN", "")
	cfg.MailSendTimeout = getEnvDuration("MAIL_SEND_TIMEOUT", 15*time.Second)

	switch cfg.MailTransport {
	case "smtp":
		if cfg.SMTPHost == "" || cfg.MailFrom == "" {
			return nil, fmt.Errorf("MAIL_TRANSPORT=smtp requires SMTP_HOST and MAIL_FROM")
		}
	case "http":
		if cfg.MailRelayURL == "" {
			return nil, fmt.Errorf("MAIL_TRANSPORT=http requires MAIL_RELAY_URL")
		}
	case "log":
	default:
		return nil, fmt.Errorf("MAIL_TRANSPORT must be smtp, http or log, got %q", cfg.MailTransport)
	}

	cfg.NotifyWorkers = getEnvInt("NOTIFY_WORKERS", 2)
	cfg.NotifyQueueSize = getEnvInt("NOTIFY_QUEUE_SIZE", 100)
	cfg.NotifyMaxConcurrent = getEnvInt("NOTIFY_MAX_CONCURRENT", 5)
	cfg.NotifyQueueKey = getEnvString("NOTIFY_QUEUE_KEY", "folio:notifications")

	cfg.RedisAddress = getEnvString("REDIS_ADDRESS", "")
	cfg.RedisPassword = getEnvString("REDIS_PASSWORD", "")
	cfg.RedisDB = getEnvInt("REDIS_DB", 0)

	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

// UseRedisQueue は通知キューをRedisで共有するかを返す。
func (c *Config) UseRedisQueue() bool {
	return c.RedisAddress != ""
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
