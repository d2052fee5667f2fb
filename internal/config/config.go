package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
// リクエストごとの再検証は行わない。
type Config struct {
	// Environment
	AppEnv string

	// Database
	DatabaseURL string

	// Session
	SessionSecret          string
	SessionCleanupInterval time.Duration

	// Billing
	ProProductID     string
	PolarAPIURL      string
	PolarAccessToken string
	PolarSuccessURL  string

	// Rate Limit
	RedisURL                 string
	RateLimitAuthenticated   int
	RateLimitUnauthenticated int
	RateLimitWindow          time.Duration
	TrustedProxyHeaders      []string

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// IsDevelopment は開発モードで起動しているかを返す。
// 開発モードではエラー詳細をレスポンスに含める。
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定、または値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.ProProductID = os.Getenv("POLAR_PRO_PRODUCT_ID")
	if cfg.ProProductID == "" {
		missing = append(missing, "POLAR_PRO_PRODUCT_ID")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.AppEnv = getEnvString("APP_ENV", "production")
	cfg.SessionCleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", time.Hour)
	cfg.PolarAPIURL = getEnvString("POLAR_API_URL", "https://sandbox-api.polar.sh")
	cfg.PolarAccessToken = getEnvString("POLAR_ACCESS_TOKEN", "")
	cfg.PolarSuccessURL = getEnvString("POLAR_SUCCESS_URL", "")
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.RateLimitAuthenticated = getEnvInt("RATE_LIMIT_AUTHENTICATED", 100)
	cfg.RateLimitUnauthenticated = getEnvInt("RATE_LIMIT_UNAUTHENTICATED", 20)
	cfg.RateLimitWindow = getEnvDuration("RATE_LIMIT_WINDOW", time.Minute)
	cfg.TrustedProxyHeaders = getEnvList("TRUSTED_PROXY_HEADERS", []string{"CF-Connecting-IP", "X-Forwarded-For", "X-Real-IP"})
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3001")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate は起動時に1回だけ値の整合性を検証する。
func (c *Config) validate() error {
	var problems []string

	if c.RateLimitAuthenticated <= 0 {
		problems = append(problems, "RATE_LIMIT_AUTHENTICATED must be positive")
	}
	if c.RateLimitUnauthenticated <= 0 {
		problems = append(problems, "RATE_LIMIT_UNAUTHENTICATED must be positive")
	}
	if c.RateLimitWindow <= 0 {
		problems = append(problems, "RATE_LIMIT_WINDOW must be positive")
	}
	if c.RedisURL != "" {
		// レート制限の初回使用時ではなく起動時に失敗させるため、接続時と同じパーサーで検証する
		if _, err := redis.ParseURL(c.RedisURL); err != nil {
			problems = append(problems, fmt.Sprintf("REDIS_URL is invalid: %v", err))
		}
	}
	if c.AppEnv != "development" && c.AppEnv != "production" && c.AppEnv != "test" {
		problems = append(problems, "APP_ENV must be one of development, production, test")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
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

// getEnvList はカンマ区切りの環境変数を読み込む。空要素は除外する。
func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
