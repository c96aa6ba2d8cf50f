// Package config は環境変数からのアプリケーション設定読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Webhook
	WebhookSecret string

	// Email (SES)
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	EmailSource        string
	SupportEmail       string
	VerifyBaseURL      string

	// Web Push (VAPID)
	WebPushPublicKey  string
	WebPushPrivateKey string

	// Realtime (Pusher互換API)
	PusherHost   string
	PusherAppID  string
	PusherKey    string
	PusherSecret string

	// Profile Directory
	DirectoryBaseURL string

	// Dispatch
	DispatchTimeout       time.Duration
	DispatchMaxConcurrent int
	IPFSGatewayBaseURL    string
	SiteBaseURL           string
	DefaultImageURL       string

	// Rate Limit
	RateLimitGeneral int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.WebhookSecret = os.Getenv("WEBHOOK_SECRET")
	if cfg.WebhookSecret == "" {
		missing = append(missing, "WEBHOOK_SECRET")
	}

	cfg.AWSAccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
	if cfg.AWSAccessKeyID == "" {
		missing = append(missing, "AWS_ACCESS_KEY_ID")
	}

	cfg.AWSSecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	if cfg.AWSSecretAccessKey == "" {
		missing = append(missing, "AWS_SECRET_ACCESS_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.AWSRegion = getEnvString("AWS_REGION", "us-east-1")
	cfg.EmailSource = getEnvString("EMAIL_SOURCE", "DAO Notifier <notify@inbox.example.zone>")
	cfg.SupportEmail = getEnvString("SUPPORT_EMAIL", "support@example.zone")
	cfg.VerifyBaseURL = getEnvString("VERIFY_BASE_URL", "https://example.zone/inbox/verify")

	// 未設定の場合、プッシュ送信は起動時に無効化される
	cfg.WebPushPublicKey = os.Getenv("WEB_PUSH_PUBLIC_KEY")
	cfg.WebPushPrivateKey = os.Getenv("WEB_PUSH_PRIVATE_KEY")

	// 未設定の場合、リアルタイム通知は起動時に無効化される
	cfg.PusherHost = os.Getenv("PUSHER_HOST")
	cfg.PusherAppID = os.Getenv("PUSHER_APP_ID")
	cfg.PusherKey = os.Getenv("PUSHER_APP_KEY")
	cfg.PusherSecret = os.Getenv("PUSHER_SECRET")

	// 未設定の場合、ディレクトリ展開は単一アイデンティティにフォールバックする
	cfg.DirectoryBaseURL = os.Getenv("DIRECTORY_BASE_URL")

	cfg.DispatchTimeout = getEnvDuration("DISPATCH_TIMEOUT", 10*time.Second)
	cfg.DispatchMaxConcurrent = getEnvInt("DISPATCH_MAX_CONCURRENT", 10)
	cfg.IPFSGatewayBaseURL = getEnvString("IPFS_GATEWAY_BASE_URL", "https://nftstorage.link/ipfs/")
	cfg.SiteBaseURL = getEnvString("SITE_BASE_URL", "https://example.zone")
	cfg.DefaultImageURL = getEnvString("DEFAULT_IMAGE_URL", "https://example.zone/logo.png")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "*")

	return cfg, nil
}

// RealtimeEnabled はリアルタイム通知の設定が揃っているかを返す。
func (c *Config) RealtimeEnabled() bool {
	return c.PusherHost != "" && c.PusherAppID != "" && c.PusherKey != "" && c.PusherSecret != ""
}

// WebPushEnabled はWebプッシュの鍵ペアが設定されているかを返す。
func (c *Config) WebPushEnabled() bool {
	return c.WebPushPublicKey != "" && c.WebPushPrivateKey != ""
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
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
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
